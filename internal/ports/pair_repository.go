package ports

import (
	"context"

	"github.com/bft-labs/threadmirror/internal/domain"
)

// PairRepository handles durable storage of the tracked pair store.
type PairRepository interface {
	// Load reads the durable image into a store of the given capacity.
	// A missing or empty image yields an empty store and nil error.
	// A corrupt image yields an empty store and an error wrapping
	// domain.ErrCorruptState; callers log it and carry on.
	Load(ctx context.Context, capacity int) (*domain.PairStore, error)

	// Save writes the full ordered image, replacing the previous one atomically.
	Save(ctx context.Context, store *domain.PairStore) error
}
