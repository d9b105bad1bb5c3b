package authz

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"strings"
	"sync"

	//nolint:staticcheck // OPA v1 migration pending
	"github.com/open-policy-agent/opa/ast"
	//nolint:staticcheck // OPA v1 migration pending
	"github.com/open-policy-agent/opa/rego"

	"github.com/wardenai/warden-oss/pkg/domain"
)

// allowlistModule is the embedded Rego policy backing the OPA evaluator.
// It decides only allowlist membership; dry-run downgrades and reason
// strings are applied by the shared verdict path so the two evaluators
// cannot drift apart.
const allowlistModule = `package warden.authz

import rego.v1

default allow := false

allow if {
	some t in input.allowed_tools
	t == input.tool
}
`

const (
	engineEntrypoint     = "warden/authz/allow"
	defaultCacheCapacity = 1024
)

// EngineOptions control OPA engine construction.
type EngineOptions struct {
	// CacheMaxEntries bounds the decision cache size (LRU). Zero selects
	// the default size; negative disables caching entirely.
	CacheMaxEntries int
}

// Engine evaluates tool-allowlist decisions using an embedded OPA
// instance. Outcomes and reason strings are identical to Direct's.
type Engine struct {
	prepared rego.PreparedEvalQuery
	cache    *verdictCache
}

// NewEngine parses and compiles the embedded module. Compilation failure
// is a startup-time ConfigError.
func NewEngine(ctx context.Context, opts EngineOptions) (*Engine, error) {
	module, err := ast.ParseModuleWithOpts("warden_authz.rego", allowlistModule, ast.ParserOptions{RegoVersion: ast.RegoV1})
	if err != nil {
		return nil, &domain.ConfigError{Section: "authz", Err: fmt.Errorf("parse rego module: %w", err)}
	}

	query := "data." + strings.ReplaceAll(engineEntrypoint, "/", ".")
	prepared, err := rego.New(
		rego.Query(query),
		rego.ParsedModule(module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, &domain.ConfigError{Section: "authz", Err: fmt.Errorf("compile rego module: %w", err)}
	}

	maxEntries := opts.CacheMaxEntries
	switch {
	case maxEntries == 0:
		maxEntries = defaultCacheCapacity
	case maxEntries < 0:
		maxEntries = 0
	}

	var cache *verdictCache
	if maxEntries > 0 {
		cache = newVerdictCache(maxEntries)
	}

	return &Engine{prepared: prepared, cache: cache}, nil
}

// Evaluate runs the membership query through OPA and converts the result
// with the shared verdict path.
func (e *Engine) Evaluate(ctx context.Context, p domain.Principal, tool string, snap domain.PolicySnapshot) (Verdict, error) {
	key, cacheable := e.cacheKey(p, tool, snap)
	if cacheable {
		if cached, ok := e.cache.Get(key); ok {
			return cached, nil
		}
	}

	input := map[string]any{
		"tool":          tool,
		"allowed_tools": append([]string(nil), p.AllowedTools...),
	}

	results, err := e.prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Verdict{}, fmt.Errorf("opa decision: %w", err)
	}

	allowed := false
	if len(results) > 0 && len(results[0].Expressions) > 0 {
		if b, ok := results[0].Expressions[0].Value.(bool); ok {
			allowed = b
		}
	}

	verdict := verdictFor(allowed, p, tool, snap)
	if cacheable {
		e.cache.Add(key, verdict)
	}
	return verdict, nil
}

// FlushCache clears all cached verdicts. Safe to call concurrently.
func (e *Engine) FlushCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

// cacheKey hashes the decision inputs. The policy version is included so
// that a toggle invalidates prior entries; requests holding an older
// snapshot simply miss.
func (e *Engine) cacheKey(p domain.Principal, tool string, snap domain.PolicySnapshot) (string, bool) {
	if e.cache == nil || p.ID == "" || tool == "" {
		return "", false
	}

	h := sha256.New()
	writeField(h, p.ID)
	writeField(h, tool)

	tools := append([]string(nil), p.AllowedTools...)
	sort.Strings(tools)
	writeField(h, strings.Join(tools, ","))

	if pol, ok := snap.Lookup(domain.RuleToolAllowlist); ok {
		writeField(h, fmt.Sprintf("%s:%d:%t:%t", pol.Name, pol.Version, pol.Enabled, pol.DryRun))
	}

	return hex.EncodeToString(h.Sum(nil)), true
}

func writeField(h hash.Hash, value string) {
	h.Write([]byte(value))
	h.Write([]byte{0})
}

type verdictCache struct {
	mu      sync.Mutex
	max     int
	order   *list.List
	entries map[string]*list.Element
}

type cacheItem struct {
	key   string
	value Verdict
}

func newVerdictCache(capacity int) *verdictCache {
	return &verdictCache{
		max:     capacity,
		order:   list.New(),
		entries: make(map[string]*list.Element, capacity),
	}
}

func (c *verdictCache) Get(key string) (Verdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return Verdict{}, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(cacheItem).value, true
}

func (c *verdictCache) Add(key string, value Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value = cacheItem{key: key, value: value}
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(cacheItem{key: key, value: value})
	c.entries[key] = elem

	if c.order.Len() <= c.max {
		return
	}

	tail := c.order.Back()
	if tail != nil {
		c.order.Remove(tail)
		delete(c.entries, tail.Value.(cacheItem).key)
	}
}

func (c *verdictCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element, c.max)
}
