package model

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	maxInt64 = int64(^uint64(0) >> 1)
	minInt64 = -maxInt64 - 1
)

// NodeFlag represents special node attributes.
type NodeFlag uint8

const (
	FlagNone NodeFlag = 0
	// FlagPartial marks directories that were never persisted by the walker
	// (paused scans) and were synthesized to hold their persisted children.
	FlagPartial NodeFlag = 1 << iota
)

// FileNode is a leaf of a tree rebuilt from persisted entries.
type FileNode struct {
	Name   string
	Size   int64
	Mtime  time.Time
	Flag   NodeFlag
	Parent *DirNode
}

// DirNode is a directory with children.
type DirNode struct {
	FileNode
	Children  []TreeNode
	ItemCount int64 // Total recursive item count
	path      string
}

// TreeNode is the interface satisfied by both FileNode and DirNode.
type TreeNode interface {
	GetName() string
	GetSize() int64
	GetMtime() time.Time
	GetFlag() NodeFlag
	IsDir() bool
}

func (f *FileNode) GetName() string     { return f.Name }
func (f *FileNode) GetSize() int64      { return f.Size }
func (f *FileNode) GetMtime() time.Time { return f.Mtime }
func (f *FileNode) GetFlag() NodeFlag   { return f.Flag }
func (f *FileNode) IsDir() bool         { return false }

func (d *DirNode) IsDir() bool { return true }

// Path returns the absolute path the directory was built from.
func (d *DirNode) Path() string { return d.path }

// BuildTree rebuilds the directory tree rooted at root from a scan's
// persisted entries. Entries may arrive in any order. Directories missing
// from the set (a paused scan never persists incomplete directories) are
// synthesized with FlagPartial and their size is recomputed from children.
func BuildTree(root string, entries []Entry) (*DirNode, error) {
	dirs := make(map[string]*DirNode)
	rootNode := &DirNode{FileNode: FileNode{Name: root, Flag: FlagPartial}, path: root}
	dirs[root] = rootNode

	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		if e.Path == root {
			rootNode.Size = e.Size
			rootNode.Mtime = e.ModTime
			rootNode.Flag = FlagNone
			continue
		}
		dirs[e.Path] = &DirNode{
			FileNode: FileNode{Name: e.Name, Size: e.Size, Mtime: e.ModTime},
			path:     e.Path,
		}
	}

	prefix := root
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var lookup func(p string) (*DirNode, error)
	lookup = func(p string) (*DirNode, error) {
		if d, ok := dirs[p]; ok {
			return d, nil
		}
		if !strings.HasPrefix(p, prefix) {
			return nil, fmt.Errorf("path %q is outside scan root %q", p, root)
		}
		parent := path.Dir(p)
		pd, err := lookup(parent)
		if err != nil {
			return nil, err
		}
		d := &DirNode{FileNode: FileNode{Name: path.Base(p), Flag: FlagPartial, Parent: pd}, path: p}
		pd.Children = append(pd.Children, d)
		dirs[p] = d
		return d, nil
	}

	// Attach persisted directories first so synthesized ancestors are only
	// created for genuinely missing levels.
	for _, e := range entries {
		if !e.IsDir || e.Path == root {
			continue
		}
		d := dirs[e.Path]
		pd, err := lookup(e.ParentPath)
		if err != nil {
			return nil, err
		}
		d.Parent = pd
		pd.Children = append(pd.Children, d)
	}
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		pd, err := lookup(e.ParentPath)
		if err != nil {
			return nil, err
		}
		pd.Children = append(pd.Children, &FileNode{Name: e.Name, Size: e.Size, Mtime: e.ModTime, Parent: pd})
	}

	rootNode.finalize()
	return rootNode, nil
}

// Sort orders the children of d and of every directory below it.
func (d *DirNode) Sort(cfg SortConfig) {
	SortChildren(d.Children, cfg)
	for _, c := range d.Children {
		if cd, ok := c.(*DirNode); ok {
			cd.Sort(cfg)
		}
	}
}

// finalize computes item counts bottom-up and recomputes the size of
// synthesized directories.
func (d *DirNode) finalize() {
	var size, count int64
	for _, c := range d.Children {
		if cd, ok := c.(*DirNode); ok {
			cd.finalize()
			count = saturatingAddInt64(count, cd.ItemCount)
		}
		size = saturatingAddInt64(size, c.GetSize())
		count = saturatingAddInt64(count, 1)
	}
	d.ItemCount = count
	if d.Flag&FlagPartial != 0 {
		d.Size = size
	}
}

func saturatingAddInt64(a, b int64) int64 {
	if b > 0 && a > maxInt64-b {
		return maxInt64
	}
	if b < 0 && a < minInt64-b {
		return minInt64
	}
	return a + b
}
