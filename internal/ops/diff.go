package ops

import (
	"math"
	"sort"

	"github.com/sadopc/godudb/internal/model"
)

// Change is the size difference of one child present in either scan.
type Change struct {
	Name    string
	IsDir   bool
	Before  int64
	After   int64
	Added   bool
	Removed bool
}

// Delta returns After - Before.
func (c Change) Delta() int64 {
	return c.After - c.Before
}

// DiffChildren pairs the immediate children of the same directory in two
// scans by name and returns those whose size changed, largest absolute
// change first. A name that switched between file and directory is
// reported as removed and added.
func DiffChildren(before, after []model.Entry) []Change {
	type key struct {
		name string
		dir  bool
	}
	changes := make(map[key]*Change, len(before)+len(after))
	for _, e := range before {
		changes[key{e.Name, e.IsDir}] = &Change{Name: e.Name, IsDir: e.IsDir, Before: e.Size, Removed: true}
	}
	for _, e := range after {
		k := key{e.Name, e.IsDir}
		if c, ok := changes[k]; ok {
			c.After = e.Size
			c.Removed = false
			continue
		}
		changes[k] = &Change{Name: e.Name, IsDir: e.IsDir, After: e.Size, Added: true}
	}

	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if c.Delta() == 0 && !c.Added && !c.Removed {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := absInt64(out[i].Delta()), absInt64(out[j].Delta())
		if ai != aj {
			return ai > aj
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].IsDir
	})
	return out
}

func absInt64(v int64) int64 {
	if v == math.MinInt64 {
		return math.MaxInt64
	}
	if v < 0 {
		return -v
	}
	return v
}
