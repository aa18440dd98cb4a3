package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

const (
	// DefaultFanOutThreshold is the child count above which a directory's
	// children are processed in parallel.
	DefaultFanOutThreshold = 100
	// DefaultBatchSize is the number of entries a streaming sink buffers
	// before forwarding them.
	DefaultBatchSize = 1000
)

// Options configures the walker behavior.
type Options struct {
	// ShowHidden includes hidden files/directories (starting with .)
	ShowHidden bool
	// FollowSymlinks follows symbolic links (default: false). Each real
	// directory is descended at most once.
	FollowSymlinks bool
	// Exclude is a list of child names to skip entirely.
	Exclude []string
	// Concurrency bounds the goroutines spawned for fan-out (0 = auto)
	Concurrency int
	// FanOutThreshold overrides DefaultFanOutThreshold (0 = default)
	FanOutThreshold int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		ShowHidden:      true,
		FollowSymlinks:  false,
		Exclude:         []string{},
		Concurrency:     0,
		FanOutThreshold: DefaultFanOutThreshold,
	}
}

func (o Options) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return runtime.GOMAXPROCS(0) * 3
}

func (o Options) threshold() int {
	if o.FanOutThreshold > 0 {
		return o.FanOutThreshold
	}
	return DefaultFanOutThreshold
}

// FS is the filesystem capability the walker consumes. Paths are absolute
// and use the separator of the implementation.
type FS interface {
	// Stat returns metadata, following symlinks.
	Stat(name string) (fs.FileInfo, error)
	// Lstat returns metadata without following symlinks.
	Lstat(name string) (fs.FileInfo, error)
	// ReadDir lists the immediate children of a directory.
	ReadDir(name string) ([]fs.DirEntry, error)
	// RealPath resolves symlinks in name.
	RealPath(name string) (string, error)
	Join(elem ...string) string
	Dir(name string) string
	Base(name string) string
}

// OSFS is the local filesystem.
type OSFS struct{}

var _ FS = OSFS{}

func (OSFS) Stat(name string) (fs.FileInfo, error)      { return os.Stat(name) }
func (OSFS) Lstat(name string) (fs.FileInfo, error)     { return os.Lstat(name) }
func (OSFS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }
func (OSFS) RealPath(name string) (string, error)       { return filepath.EvalSymlinks(name) }
func (OSFS) Join(elem ...string) string                 { return filepath.Join(elem...) }
func (OSFS) Dir(name string) string                     { return filepath.Dir(name) }
func (OSFS) Base(name string) string                    { return filepath.Base(name) }

// Canonical resolves a local root path to an absolute, symlink-free
// directory path.
func Canonical(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	// Use Stat (not Lstat) so symlinked directories like /tmp -> /private/tmp work
	info, err := os.Stat(absPath)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", &os.PathError{Op: "scan", Path: absPath, Err: os.ErrInvalid}
	}
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = resolved
	}
	return absPath, nil
}
