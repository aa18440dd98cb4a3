package ops

import (
	"encoding/json"
	"fmt"
	"os"
	pathpkg "path"
	"strings"
	"time"

	"github.com/sadopc/godudb/internal/model"
)

// Imported is an ncdu export flattened into scan entries.
type Imported struct {
	Root    string
	Entries []model.Entry
	Stats   model.Stats
}

// ImportJSON reads an ncdu-compatible JSON export. Directory sizes are
// recomputed from their children, so exports from tools that record a
// directory's own inode size import with the same totals as a scan.
func ImportJSON(path string) (*Imported, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open import file: %w", err)
	}

	// Parse the top-level array: [version, minor, header, rootDir]
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("invalid ncdu format: expected at least 4 elements, got %d", len(raw))
	}

	imp := &Imported{}
	if _, err := imp.parseDir(raw[3], "", 0); err != nil {
		return nil, fmt.Errorf("cannot parse root directory: %w", err)
	}
	return imp, nil
}

// parseDir flattens one directory array and returns its total size.
func (imp *Imported) parseDir(data json.RawMessage, parent string, depth int) (int64, error) {
	// A directory is an array: [{dir_entry}, child1, child2, ...]
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return 0, fmt.Errorf("directory is not an array: %w", err)
	}
	if len(elements) == 0 {
		return 0, fmt.Errorf("empty directory array")
	}

	var entry ncduEntry
	if err := json.Unmarshal(elements[0], &entry); err != nil {
		return 0, fmt.Errorf("cannot parse directory entry: %w", err)
	}
	dirPath, name, err := entryPath(parent, entry.Name, depth)
	if err != nil {
		return 0, err
	}
	if depth == 0 {
		imp.Root = dirPath
	}

	var size int64
	for i := 1; i < len(elements); i++ {
		child := trimLeadingWhitespace(elements[i])
		if len(child) == 0 {
			continue
		}

		switch child[0] {
		case '[':
			s, err := imp.parseDir(child, dirPath, depth+1)
			if err != nil {
				return 0, err
			}
			size += s
		case '{':
			var fileEntry ncduEntry
			if err := json.Unmarshal(child, &fileEntry); err != nil {
				return 0, fmt.Errorf("cannot parse file entry: %w", err)
			}
			filePath, fileName, err := entryPath(dirPath, fileEntry.Name, depth+1)
			if err != nil {
				return 0, err
			}
			imp.Entries = append(imp.Entries, model.Entry{
				Path:       filePath,
				Name:       fileName,
				ParentPath: dirPath,
				Size:       fileEntry.Asize,
				ModTime:    unixTime(fileEntry.Mtime),
				Depth:      depth + 1,
			})
			imp.Stats = imp.Stats.Add(model.Stats{TotalSize: fileEntry.Asize, TotalFiles: 1})
			size += fileEntry.Asize
		default:
			return 0, fmt.Errorf("unexpected child element at index %d in %s", i, dirPath)
		}
	}

	imp.Entries = append(imp.Entries, model.Entry{
		Path:       dirPath,
		Name:       name,
		ParentPath: parent,
		Size:       size,
		IsDir:      true,
		ModTime:    unixTime(entry.Mtime),
		Depth:      depth,
	})
	imp.Stats = imp.Stats.Add(model.Stats{TotalDirs: 1})
	return size, nil
}

// entryPath validates an entry name and joins it onto parent. The root's
// name is its full path.
func entryPath(parent, name string, depth int) (string, string, error) {
	if depth == 0 {
		if !pathpkg.IsAbs(name) {
			return "", "", fmt.Errorf("root name %q is not an absolute path", name)
		}
		clean := pathpkg.Clean(name)
		return clean, clean, nil
	}
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid entry name %q in %s", name, parent)
	}
	return pathpkg.Join(parent, name), name, nil
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func trimLeadingWhitespace(data []byte) []byte {
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return data[i:]
		}
	}
	return nil
}
