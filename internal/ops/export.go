package ops

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sadopc/godudb/internal/model"
)

// ncdu-compatible JSON format:
// [1, 0, {"progname":"godudb","progver":"1.0","timestamp":1234567890},
//   [{"name":"/path","asize":123},
//     {"name":"file1","asize":10,"mtime":1700000000},
//     [{"name":"subdir","asize":30},
//       {"name":"file2","asize":5}
//     ]
//   ]
// ]
//
// Directory sizes are the recursive total. Directories a paused scan never
// finished are exported with read_error set, the way ncdu marks a
// directory whose listing is incomplete.

const progname = "godudb"

type ncduHeader struct {
	Progname  string `json:"progname"`
	Progver   string `json:"progver"`
	Timestamp int64  `json:"timestamp"`
}

type ncduEntry struct {
	Name  string `json:"name"`
	Asize int64  `json:"asize"`
	Dsize int64  `json:"dsize,omitempty"`
	Mtime int64  `json:"mtime,omitempty"`
	Err   bool   `json:"read_error,omitempty"`
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, avoiding verbose per-call checks.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) WriteString(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, s)
}

func (ew *errWriter) Write(data []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(data)
	if err != nil {
		ew.err = err
	}
	return n, err
}

func (ew *errWriter) writeEntry(e ncduEntry) {
	if ew.err != nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		ew.err = err
		return
	}
	_, _ = ew.Write(data)
}

// ExportJSON writes the tree as ncdu-compatible JSON to path, or to stdout
// when path is "-". File targets are written to a temp file first and
// atomically renamed on success, so a partial file is never left behind.
func ExportJSON(root *model.DirNode, path string, version string) (retErr error) {
	if path == "-" {
		return WriteJSON(os.Stdout, root, version)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".godudb-export-*.tmp")
	if err != nil {
		return fmt.Errorf("cannot create export file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := WriteJSON(tmp, root, version); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		// On Windows, Rename cannot replace an existing destination.
		if runtime.GOOS != "windows" {
			return err
		}
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return fmt.Errorf("cannot replace export file %s: %w", path, err)
		}
		if err := os.Rename(tmpPath, path); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON streams the tree to out.
func WriteJSON(out io.Writer, root *model.DirNode, version string) error {
	bw := bufio.NewWriterSize(out, 64*1024)
	ew := &errWriter{w: bw}

	ew.WriteString("[1, 0, ")
	if version == "" {
		version = "dev"
	}
	header := ncduHeader{
		Progname:  progname,
		Progver:   version,
		Timestamp: time.Now().Unix(),
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return err
	}
	_, _ = ew.Write(headerJSON)
	ew.WriteString(",\n")

	writeDir(ew, root)

	ew.WriteString("\n]\n")
	if ew.err != nil {
		return ew.err
	}
	return bw.Flush()
}

func writeDir(ew *errWriter, dir *model.DirNode) {
	if ew.err != nil {
		return
	}

	ew.WriteString("[")
	ew.writeEntry(toNcdu(&dir.FileNode))

	for _, child := range dir.Children {
		if ew.err != nil {
			return
		}
		ew.WriteString(",\n")

		switch c := child.(type) {
		case *model.DirNode:
			writeDir(ew, c)
		case *model.FileNode:
			ew.writeEntry(toNcdu(c))
		}
	}

	ew.WriteString("]")
}

func toNcdu(n *model.FileNode) ncduEntry {
	e := ncduEntry{
		Name:  n.Name,
		Asize: n.Size,
		Err:   n.Flag&model.FlagPartial != 0,
	}
	if !n.Mtime.IsZero() {
		e.Mtime = n.Mtime.Unix()
	}
	return e
}
