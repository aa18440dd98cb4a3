package scanner

import (
	"errors"
	"io/fs"
	"path"
	"strings"
	"sync"
	"testing/fstest"
)

// memFS adapts an fstest.MapFS rooted at root to the FS interface and lets
// tests observe or break individual listings.
type memFS struct {
	root string
	m    fstest.MapFS

	mu          sync.Mutex
	readDirs    map[string]int
	failReadDir map[string]bool
	failInfo    map[string]bool
	onReadDir   func(name string)
}

func newMemFS(root string, files map[string]int) *memFS {
	m := fstest.MapFS{}
	for p, size := range files {
		if strings.HasSuffix(p, "/") {
			m[strings.TrimSuffix(p, "/")] = &fstest.MapFile{Mode: fs.ModeDir | 0o755}
			continue
		}
		m[p] = &fstest.MapFile{Data: make([]byte, size)}
	}
	return &memFS{
		root:        root,
		m:           m,
		readDirs:    make(map[string]int),
		failReadDir: make(map[string]bool),
		failInfo:    make(map[string]bool),
	}
}

func (f *memFS) rel(name string) string {
	if name == f.root {
		return "."
	}
	return strings.TrimPrefix(name, f.root+"/")
}

func (f *memFS) Stat(name string) (fs.FileInfo, error)  { return fs.Stat(f.m, f.rel(name)) }
func (f *memFS) Lstat(name string) (fs.FileInfo, error) { return fs.Stat(f.m, f.rel(name)) }
func (f *memFS) RealPath(name string) (string, error)   { return name, nil }
func (f *memFS) Join(elem ...string) string             { return path.Join(elem...) }
func (f *memFS) Dir(name string) string                 { return path.Dir(name) }
func (f *memFS) Base(name string) string                { return path.Base(name) }

func (f *memFS) ReadDir(name string) ([]fs.DirEntry, error) {
	f.mu.Lock()
	f.readDirs[name]++
	fail := f.failReadDir[name]
	hook := f.onReadDir
	f.mu.Unlock()

	if hook != nil {
		hook(name)
	}
	if fail {
		return nil, fs.ErrPermission
	}
	entries, err := fs.ReadDir(f.m, f.rel(name))
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		if f.failInfo[path.Join(name, e.Name())] {
			entries[i] = brokenEntry{e}
		}
	}
	return entries, nil
}

func (f *memFS) listed(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readDirs[name]
}

type brokenEntry struct{ fs.DirEntry }

func (brokenEntry) Info() (fs.FileInfo, error) { return nil, errors.New("metadata unavailable") }
