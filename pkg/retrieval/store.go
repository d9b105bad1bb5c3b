// Package retrieval provides the chunk store the gateway searches after a
// query clears screening. Results carry provenance so downstream checks
// can reason about source trust.
package retrieval

import (
	"context"

	"github.com/wardenai/warden-oss/pkg/domain"
)

// Chunk is a unit of retrievable text with its provenance.
type Chunk struct {
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	Source   string  `json:"source"`
	Trust    string  `json:"trust"`
	Score    float64 `json:"score"`
	Document string  `json:"document_id,omitempty"`
}

// Store searches indexed chunks. Implementations only see queries that
// already cleared screening; they do not re-screen.
type Store interface {
	// Search returns up to k chunks relevant to the query, restricted to
	// the given sources when non-empty, best match first.
	Search(ctx context.Context, query string, k int, sources []string) ([]Chunk, error)

	// Index adds a screened document's content to the store.
	Index(ctx context.Context, doc domain.Document) (string, error)
}
