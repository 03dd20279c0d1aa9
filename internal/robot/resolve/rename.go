package resolve

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/albertocavalcante/rfls/internal/robot/index"
	"github.com/albertocavalcante/rfls/internal/robot/syntax"
)

// Edit replaces the text of a single-line range.
type Edit struct {
	Location index.Location
	NewText  string
}

// Rename returns the edits that rename every workspace declaration and usage
// of name to newName. Library and built-in keywords cannot be renamed.
func (r *Resolver) Rename(ctx context.Context, name string, kind index.SymbolKind, newName string) ([]Edit, error) {
	switch kind {
	case index.KindKeyword:
		return r.renameKeyword(ctx, name, newName)
	case index.KindVariable:
		return r.renameVariable(ctx, name, newName)
	case index.KindTestCase:
		return r.renameTestCase(name, newName)
	}
	return nil, fmt.Errorf("rename %s: %w", kind, ErrNotFound)
}

// validCellName reports whether s can be written as a single cell.
func validCellName(s string) bool {
	if strings.TrimSpace(s) != s || s == "" {
		return false
	}
	return len(syntax.SplitCells(s)) == 1 && !strings.ContainsAny(s, "\r\n")
}

func (r *Resolver) renameKeyword(ctx context.Context, name, newName string) ([]Edit, error) {
	if !validCellName(newName) {
		return nil, fmt.Errorf("rename keyword to %q: %w", newName, ErrInvalidName)
	}
	defs := r.Keywords(name)
	if len(defs) == 0 {
		return nil, fmt.Errorf("rename keyword %q: %w", name, ErrNotFound)
	}

	var edits []Edit
	for _, d := range defs {
		u, ok := d.Origin.(index.User)
		if !ok {
			continue
		}
		edits = append(edits, Edit{Location: headerRange(u.Loc, d.Name), NewText: newName})
	}
	if len(edits) == 0 {
		return nil, fmt.Errorf("rename keyword %q: %w", name, ErrNotRenamable)
	}

	usages, err := r.FindUsages(ctx, name, index.KindKeyword, false)
	if err != nil {
		return nil, err
	}
	for _, loc := range usages {
		edits = append(edits, Edit{Location: loc, NewText: newName})
	}
	return sortEdits(edits), nil
}

func (r *Resolver) renameVariable(ctx context.Context, name, newName string) ([]Edit, error) {
	_, body, ok := index.SplitVariable(name)
	if !ok {
		return nil, fmt.Errorf("rename variable %q: %w", name, ErrNotFound)
	}
	newBody := strings.TrimSpace(newName)
	if _, b, ok := index.SplitVariable(newBody); ok {
		newBody = b
	}
	if newBody == "" || strings.ContainsAny(newBody, "{}") || !validCellName(newBody) {
		return nil, fmt.Errorf("rename variable to %q: %w", newName, ErrInvalidName)
	}

	decls := r.table.LookupVariable(name)
	if len(decls) == 0 {
		return nil, fmt.Errorf("rename variable %q: %w", name, ErrNotFound)
	}

	var edits []Edit
	for _, d := range decls {
		sigil, _, _ := index.SplitVariable(d.Name)
		loc := d.Location
		loc.EndLine = loc.Line
		edits = append(edits, Edit{Location: loc, NewText: string(sigil) + "{" + newBody + "}"})
	}

	// Usages are verbatim, so every sigil form is searched.
	for _, sigil := range []byte{'$', '@', '&'} {
		token := string(sigil) + "{" + body + "}"
		usages, err := r.FindUsages(ctx, token, index.KindVariable, false)
		if err != nil {
			return nil, err
		}
		for _, loc := range usages {
			edits = append(edits, Edit{Location: loc, NewText: string(sigil) + "{" + newBody + "}"})
		}
	}
	return sortEdits(edits), nil
}

func (r *Resolver) renameTestCase(name, newName string) ([]Edit, error) {
	if !validCellName(newName) {
		return nil, fmt.Errorf("rename test case to %q: %w", newName, ErrInvalidName)
	}
	defs := r.table.LookupTestCase(name)
	if len(defs) == 0 {
		return nil, fmt.Errorf("rename test case %q: %w", name, ErrNotFound)
	}
	var edits []Edit
	for _, d := range defs {
		edits = append(edits, Edit{Location: headerRange(d.Location, d.Name), NewText: newName})
	}
	return sortEdits(edits), nil
}

// headerRange narrows a definition location to the name on its header line.
func headerRange(loc index.Location, name string) index.Location {
	return index.Location{File: loc.File, Line: loc.Line, EndLine: loc.Line, Column: 0, EndColumn: len(name)}
}

// sortEdits orders edits by file and position and drops duplicates.
func sortEdits(edits []Edit) []Edit {
	slices.SortFunc(edits, func(a, b Edit) int {
		return cmp.Or(
			strings.Compare(a.Location.File, b.Location.File),
			cmp.Compare(a.Location.Line, b.Location.Line),
			cmp.Compare(a.Location.Column, b.Location.Column),
		)
	})
	return slices.CompactFunc(edits, func(a, b Edit) bool {
		return a.Location == b.Location
	})
}

// EditsByFile groups edits by the file they apply to.
func EditsByFile(edits []Edit) map[string][]Edit {
	byFile := make(map[string][]Edit)
	for _, e := range edits {
		byFile[e.Location.File] = append(byFile[e.Location.File], e)
	}
	return byFile
}

// ApplyEdits applies single-line edits to text. Edits must not overlap.
func ApplyEdits(text string, edits []Edit) (string, error) {
	lines := strings.SplitAfter(text, "\n")
	sorted := slices.Clone(edits)
	// Apply from the end so earlier offsets stay valid.
	slices.SortFunc(sorted, func(a, b Edit) int {
		return cmp.Or(
			cmp.Compare(b.Location.Line, a.Location.Line),
			cmp.Compare(b.Location.Column, a.Location.Column),
		)
	})

	for _, e := range sorted {
		i := e.Location.Line - 1
		if i < 0 || i >= len(lines) {
			return "", fmt.Errorf("edit line %d out of range", e.Location.Line)
		}
		line := lines[i]
		content := strings.TrimRight(line, "\r\n")
		if e.Location.Column < 0 || e.Location.EndColumn > len(content) || e.Location.Column > e.Location.EndColumn {
			return "", fmt.Errorf("edit %d:%d-%d out of range", e.Location.Line, e.Location.Column, e.Location.EndColumn)
		}
		lines[i] = line[:e.Location.Column] + e.NewText + line[e.Location.EndColumn:]
	}
	return strings.Join(lines, ""), nil
}
