package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/wardenai/warden-oss/pkg/domain"
	"github.com/wardenai/warden-oss/pkg/policy/rag"
)

// MemoryStore is an in-memory Store ranking chunks by token overlap with
// the query. Suitable for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []Chunk
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Index stores a document's content as a single chunk and returns the
// chunk id. Callers must only index accepted documents.
func (s *MemoryStore) Index(_ context.Context, doc domain.Document) (string, error) {
	if doc.Verdict == domain.VerdictRejected {
		return "", domain.Validation("document", domain.ErrDocumentRejected)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.chunks = append(s.chunks, Chunk{
		ID:      id,
		Content: doc.Content,
		Source:  doc.Source,
		Trust:   rag.TrustLevel(doc.Source),
	})
	return id, nil
}

// Search ranks stored chunks by the fraction of query tokens they contain
// and returns the top k with a positive score.
func (s *MemoryStore) Search(_ context.Context, query string, k int, sources []string) ([]Chunk, error) {
	terms := tokenize(query)
	if len(terms) == 0 || k <= 0 {
		return nil, nil
	}

	allowed := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		allowed[src] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Chunk
	for _, c := range s.chunks {
		if len(allowed) > 0 {
			if _, ok := allowed[c.Source]; !ok {
				continue
			}
		}
		if score := overlap(terms, tokenize(c.Content)); score > 0 {
			c.Score = score
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func tokenize(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()")
		if len(f) > 2 {
			tokens[f] = struct{}{}
		}
	}
	return tokens
}

func overlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for t := range query {
		if _, ok := chunk[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
