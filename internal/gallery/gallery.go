// Package gallery holds the enrolled identity embeddings the matcher
// compares probes against. Entries are replaced in bulk by roster sync or
// enrollment; the recognition path only ever reads snapshots.
package gallery

import "context"

// EmbeddingDim is the expected length of enrolled face embeddings.
const EmbeddingDim = 512

// Entry is one enrolled identity: a stable identity key (the HR image_id),
// a human-readable display name, and the face embedding.
type Entry struct {
	ID        string
	Name      string
	Embedding []float32
}

// Store provides read-snapshot and bulk-replace access to the gallery.
// There is deliberately no per-entry write path.
type Store interface {
	// ReadAll returns a snapshot of every enrolled entry.
	ReadAll(ctx context.Context) ([]Entry, error)
	// ReplaceAll atomically swaps the whole gallery for the given entries.
	ReplaceAll(ctx context.Context, entries []Entry) error
	// Count returns the number of enrolled entries.
	Count(ctx context.Context) (int, error)
}
