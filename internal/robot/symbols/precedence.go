package symbols

import "github.com/albertocavalcante/rfls/internal/robot/index"

// rank orders origins for precedence: lower wins.
func rank(o index.Origin) int {
	switch o.(type) {
	case index.User:
		return 0
	case index.Library:
		return 1
	case index.Builtin:
		return 2
	}
	return 3
}

// PreferUser narrows defs to the definitions of the highest-precedence origin
// present: user keywords over library keywords over built-ins. Order within
// the kept origin is preserved.
func PreferUser(defs []index.KeywordDefinition) []index.KeywordDefinition {
	if len(defs) == 0 {
		return nil
	}
	best := rank(defs[0].Origin)
	for _, d := range defs[1:] {
		best = min(best, rank(d.Origin))
	}

	var result []index.KeywordDefinition
	for _, d := range defs {
		if rank(d.Origin) == best {
			result = append(result, d)
		}
	}
	return result
}

// Best returns the first definition after precedence is applied.
func Best(defs []index.KeywordDefinition) (index.KeywordDefinition, bool) {
	preferred := PreferUser(defs)
	if len(preferred) == 0 {
		return index.KeywordDefinition{}, false
	}
	return preferred[0], true
}
