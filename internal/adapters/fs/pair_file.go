package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bft-labs/threadmirror/internal/domain"
)

const (
	pairFileName = "tracked.json"
	imageVersion = 1
)

// pairImage is the on-disk form of the tracked pair store.
type pairImage struct {
	Version  int                  `json:"version"`
	Capacity int                  `json:"capacity"`
	Pairs    []domain.TrackedPair `json:"pairs"`
}

// PairFileRepository implements ports.PairRepository using a JSON file.
type PairFileRepository struct {
	dir string
}

// NewPairFileRepository creates a new PairFileRepository for the given directory.
func NewPairFileRepository(dir string) *PairFileRepository {
	return &PairFileRepository{dir: dir}
}

// Load reads the tracked pairs from disk.
// Missing or zero-length files yield an empty store and nil error.
// Unparsable files yield an empty store and an error wrapping domain.ErrCorruptState.
func (r *PairFileRepository) Load(ctx context.Context, capacity int) (*domain.PairStore, error) {
	data, err := os.ReadFile(r.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.NewPairStore(capacity), nil
		}
		return domain.NewPairStore(capacity), fmt.Errorf("read %s: %w", r.Path(), err)
	}
	if len(data) == 0 {
		return domain.NewPairStore(capacity), nil
	}

	var img pairImage
	if err := json.Unmarshal(data, &img); err != nil {
		return domain.NewPairStore(capacity), fmt.Errorf("%w: %s: %v", domain.ErrCorruptState, r.Path(), err)
	}
	if img.Version != imageVersion {
		return domain.NewPairStore(capacity), fmt.Errorf("%w: %s: unsupported version %d", domain.ErrCorruptState, r.Path(), img.Version)
	}

	// RestorePairStore keeps the newest pairs when the capacity shrank
	return domain.RestorePairStore(capacity, img.Pairs), nil
}

// Save persists the store atomically.
// Writes to a temp file, syncs it, then renames over the previous image.
func (r *PairFileRepository) Save(ctx context.Context, store *domain.PairStore) error {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(pairImage{
		Version:  imageVersion,
		Capacity: store.Cap(),
		Pairs:    store.Snapshot(),
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.dir, pairFileName+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, r.Path()); err != nil {
		return err
	}
	store.MarkClean()
	return nil
}

// Path returns the full path to the state file.
func (r *PairFileRepository) Path() string {
	return filepath.Join(r.dir, pairFileName)
}
