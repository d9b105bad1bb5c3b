package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileConfigProvider serves configuration from a local file, reloading it
// on change and fanning out snapshots to subscribers.
type FileConfigProvider struct {
	path        string
	logger      *slog.Logger
	mu          sync.RWMutex
	snapshot    *Config
	subscribers []chan *Config
	watcher     *fsnotify.Watcher
	cancel      context.CancelFunc
}

// NewFileConfigProvider creates a provider watching the specified file. The
// initial load must succeed; later reload failures keep the last good
// snapshot.
func NewFileConfigProvider(path string, logger *slog.Logger) (*FileConfigProvider, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &FileConfigProvider{
		path:    absPath,
		logger:  logger,
		watcher: watcher,
		cancel:  cancel,
	}

	if err := p.load(); err != nil {
		cancel()
		_ = watcher.Close()
		return nil, err
	}

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		cancel()
		_ = watcher.Close()
		return nil, fmt.Errorf("watch directory: %w", err)
	}

	go p.watchLoop(ctx)
	return p, nil
}

// Snapshot returns the current configuration. The returned value must be
// treated as immutable.
func (p *FileConfigProvider) Snapshot() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// Subscribe returns a channel that receives configuration updates, starting
// with the current snapshot.
func (p *FileConfigProvider) Subscribe() <-chan *Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan *Config, 1)
	p.subscribers = append(p.subscribers, ch)
	ch <- p.snapshot
	return ch
}

// Close stops the watcher and cleans up resources.
func (p *FileConfigProvider) Close() error {
	p.cancel()
	return p.watcher.Close()
}

func (p *FileConfigProvider) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer
	const debounce = 100 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Chmod) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounce, func() {
					if err := p.load(); err != nil {
						p.logger.Error("config reload failed, keeping previous snapshot", "path", p.path, "error", err)
						return
					}
					p.logger.Info("configuration reloaded", "path", p.path)
				})
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (p *FileConfigProvider) load() error {
	cfg, err := Load(p.path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.snapshot = cfg
	subscribers := make([]chan *Config, len(p.subscribers))
	copy(subscribers, p.subscribers)
	p.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- cfg:
		default:
			// Skip if channel is full (slow consumer)
		}
	}
	return nil
}
