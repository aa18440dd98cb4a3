package lifecycle

import (
	"context"
	"log/slog"

	"github.com/sadopc/godudb/internal/scanner"
)

// Source is an opened scan root.
type Source struct {
	FS scanner.FS
	// Root is the canonical path handed to the walker, in FS terms.
	Root string
	// Location is what gets recorded as the scan's root path. Opening it
	// again must yield the same Root.
	Location string
	// Close releases connections held by FS, if any.
	Close func() error
}

func (s Source) close(log *slog.Logger) {
	if s.Close == nil {
		return
	}
	if err := s.Close(); err != nil {
		log.Warn("close scan source", "root", s.Location, "err", err)
	}
}

// OpenFunc resolves a user-supplied root into a Source.
type OpenFunc func(ctx context.Context, root string) (Source, error)

// OpenLocal resolves root on the local filesystem.
func OpenLocal(_ context.Context, root string) (Source, error) {
	canon, err := scanner.Canonical(root)
	if err != nil {
		return Source{}, err
	}
	return Source{FS: scanner.OSFS{}, Root: canon, Location: canon}, nil
}
