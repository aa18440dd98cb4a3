package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// SortField defines what to sort by.
type SortField int

const (
	SortBySize SortField = iota
	SortByName
	SortByMtime
)

// ParseSortField maps a CLI value to a SortField.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(s) {
	case "", "size":
		return SortBySize, nil
	case "name":
		return SortByName, nil
	case "mtime", "time":
		return SortByMtime, nil
	default:
		return 0, fmt.Errorf("unknown sort field %q (want size, name or mtime)", s)
	}
}

// SortOrder defines ascending or descending.
type SortOrder int

const (
	SortDesc SortOrder = iota
	SortAsc
)

// SortConfig holds sort preferences.
type SortConfig struct {
	Field SortField
	Order SortOrder
	// DirsFirst keeps directories before files regardless of sort.
	DirsFirst bool
}

// DefaultSort returns the default sort config (size descending).
func DefaultSort() SortConfig {
	return SortConfig{Field: SortBySize, Order: SortDesc}
}

// SortFor returns the natural order for field: names ascending, sizes and
// times largest or newest first.
func SortFor(field SortField) SortConfig {
	cfg := SortConfig{Field: field, Order: SortDesc}
	if field == SortByName {
		cfg.Order = SortAsc
	}
	return cfg
}

// SortEntries sorts entries in place according to cfg.
func SortEntries(entries []Entry, cfg SortConfig) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]

		if cfg.DirsFirst && a.IsDir != b.IsDir {
			return a.IsDir
		}

		// For descending order, swap a and b so the same less-than
		// comparisons produce the reverse result. This preserves
		// strict weak ordering (equal items return false, not true).
		if cfg.Order == SortDesc {
			a, b = b, a
		}

		switch cfg.Field {
		case SortByName:
			return natural.Less(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case SortByMtime:
			return a.ModTime.Before(b.ModTime)
		default:
			return a.Size < b.Size
		}
	})
}

// SortChildren sorts tree children in place according to cfg.
func SortChildren(children []TreeNode, cfg SortConfig) {
	sort.SliceStable(children, func(i, j int) bool {
		a, b := children[i], children[j]

		if cfg.DirsFirst && a.IsDir() != b.IsDir() {
			return a.IsDir()
		}
		if cfg.Order == SortDesc {
			a, b = b, a
		}

		switch cfg.Field {
		case SortByName:
			return natural.Less(strings.ToLower(a.GetName()), strings.ToLower(b.GetName()))
		case SortByMtime:
			return a.GetMtime().Before(b.GetMtime())
		default:
			return a.GetSize() < b.GetSize()
		}
	})
}
