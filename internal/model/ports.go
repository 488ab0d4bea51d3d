package model

import (
	"context"
	"time"
)

// ── Port Interfaces ──
// These interfaces decouple the window cache and coordinator from concrete
// implementations (SQLite archive, Redis blob and pub/sub).

// Archive answers interval queries for a logged variable.
type Archive interface {
	// Query returns the samples logged for source in [start, end], ordered
	// by timestamp ascending. An empty result means "no data" and is not an error.
	Query(ctx context.Context, source string, start, end time.Time, agg Aggregation) ([]Point, error)
}

// ArchiveWriter logs observed samples into the archive.
type ArchiveWriter interface {
	// Insert logs a single sample synchronously.
	Insert(ctx context.Context, source string, p Point) error

	// Close releases underlying resources.
	Close() error
}

// BlobStore holds the single persisted cache blob.
type BlobStore interface {
	// Load returns the stored blob. Returns nil, nil if nothing is stored.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the stored blob wholesale.
	Save(ctx context.Context, data []byte) error

	// Delete removes the stored blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context) error
}

// Subscriber registers interest in change notifications for a source.
// Both calls are idempotent.
type Subscriber interface {
	Subscribe(ctx context.Context, source string) error
	Unsubscribe(ctx context.Context, source string) error
}

// VariableDirectory resolves source ids against the host platform.
type VariableDirectory interface {
	// Exists reports whether source names a known variable.
	Exists(ctx context.Context, source string) (bool, error)

	// Formatted returns the display text of the variable's current value.
	// ok is false when the variable does not exist.
	Formatted(ctx context.Context, source string) (text string, ok bool, err error)
}
