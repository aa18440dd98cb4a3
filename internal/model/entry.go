package model

import "time"

// Entry is one visited filesystem node as emitted by the walker.
//
// Directories carry no intrinsic size: a directory's Size is the sum of its
// immediate children's sizes at the moment it is emitted. Entries are never
// mutated after creation.
type Entry struct {
	Path       string    // Absolute path
	Name       string    // Base name; the scan root uses its full path
	ParentPath string    // Empty for the scan root
	Size       int64     // Bytes (files: length, dirs: sum of children)
	IsDir      bool      //
	ModTime    time.Time // Zero when metadata was unreadable
	Depth      int       // Distance from the scan root
}

// IsRoot reports whether the entry is the root of its scan.
func (e Entry) IsRoot() bool {
	return e.Depth == 0
}

// Stats holds the aggregate counters of a scan.
type Stats struct {
	TotalSize  int64
	TotalFiles int64
	TotalDirs  int64
}

// Add returns the element-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		TotalSize:  saturatingAddInt64(s.TotalSize, o.TotalSize),
		TotalFiles: s.TotalFiles + o.TotalFiles,
		TotalDirs:  s.TotalDirs + o.TotalDirs,
	}
}

// Entries returns the number of nodes the counters describe.
func (s Stats) Entries() int64 {
	return s.TotalFiles + s.TotalDirs
}
