// Package sortutil provides the orderings used when presenting symbols.
package sortutil

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/albertocavalcante/rfls/internal/robot/index"
)

// ByName sorts a slice of elements using a function that extracts the name.
// Names compare by their normalized form, so case does not split groups.
func ByName[S ~[]E, E any](s S, getName func(E) string) {
	slices.SortStableFunc(s, func(a, b E) int {
		return cmp.Compare(index.NormalizeName(getName(a)), index.NormalizeName(getName(b)))
	})
}

// ByLocation sorts elements by file path, then line, then column.
func ByLocation[S ~[]E, E any](s S, getLoc func(E) index.Location) {
	slices.SortFunc(s, func(a, b E) int {
		return CompareLocations(getLoc(a), getLoc(b))
	})
}

// Locations sorts locations in reading order.
func Locations(locs []index.Location) {
	slices.SortFunc(locs, CompareLocations)
}

// CompareLocations orders by file, line, then column.
func CompareLocations(a, b index.Location) int {
	return cmp.Or(
		cmp.Compare(a.File, b.File),
		cmp.Compare(a.Line, b.Line),
		cmp.Compare(a.Column, b.Column),
	)
}

// originRank orders user keywords before library keywords before built-ins.
func originRank(d index.KeywordDefinition) int {
	switch d.Origin.(type) {
	case index.User:
		return 0
	case index.Library:
		return 1
	default:
		return 2
	}
}

// Keywords sorts keyword definitions by origin, then name.
func Keywords(defs []index.KeywordDefinition) {
	slices.SortStableFunc(defs, func(a, b index.KeywordDefinition) int {
		return cmp.Or(
			cmp.Compare(originRank(a), originRank(b)),
			cmp.Compare(index.NormalizeName(a.Name), index.NormalizeName(b.Name)),
		)
	})
}

// CompletionSortKey returns a key that lists user keywords first.
func CompletionSortKey(d index.KeywordDefinition) string {
	return fmt.Sprintf("%d_%s", originRank(d), index.NormalizeName(d.Name))
}
