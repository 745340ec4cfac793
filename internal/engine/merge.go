package engine

import (
	"sort"

	"github.com/varalys/auditkit/internal/types"
)

// Merge collapses findings sharing a (category, location, title) key into the
// highest-severity instance (first seen wins ties), then orders the result by
// severity descending, category enumeration order, location and title. It
// returns the merged slice and the number of entries removed.
func Merge(fs []types.Finding) ([]types.Finding, int) {
	index := make(map[types.Key]int, len(fs))
	out := make([]types.Finding, 0, len(fs))
	for _, f := range fs {
		k := f.Key()
		if i, seen := index[k]; seen {
			if f.Severity.Rank() > out[i].Severity.Rank() {
				out[i] = f
			}
			continue
		}
		index[k] = len(out)
		out = append(out, f)
	}
	Sort(out)
	return out, len(fs) - len(out)
}

// Sort orders findings in report order. The sort is stable so equal keys keep
// their collection order.
func Sort(fs []types.Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.Category.Index() != b.Category.Index() {
			return a.Category.Index() < b.Category.Index()
		}
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		return a.Title < b.Title
	})
}
