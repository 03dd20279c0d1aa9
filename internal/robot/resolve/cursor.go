package resolve

import (
	"regexp"
	"strings"

	"github.com/albertocavalcante/rfls/internal/robot/index"
	"github.com/albertocavalcante/rfls/internal/robot/syntax"
)

// variableToken matches a variable reference inside a cell.
var variableToken = regexp.MustCompile(`[$@&%]\{[^{}]+\}`)

// controlWords are body cells that open or close control structures.
var controlWords = map[string]bool{
	"for": true, "end": true, "if": true, "else": true, "else if": true,
	"while": true, "try": true, "except": true, "finally": true,
	"return": true, "break": true, "continue": true, "var": true,
}

// keywordSettings are settings-section keys whose value is a keyword call.
var keywordSettings = map[string]bool{
	"suite setup": true, "suite teardown": true,
	"test setup": true, "test teardown": true,
	"task setup": true, "task teardown": true,
	"test template": true, "task template": true,
}

// Target is the symbol under a cursor.
type Target struct {
	Name string
	Kind index.SymbolKind

	// Range covers the name in the document.
	Range index.Location

	// Declaration is set when the cursor is on a definition header or a
	// variables-section assignment.
	Declaration bool
}

// SymbolAt returns the symbol at a 0-based line and byte column of the
// document text. Returned locations are 1-based like every Location.
func SymbolAt(file, text string, line, col int) (Target, bool) {
	lines := syntax.SplitLines(text)
	if line < 0 || line >= len(lines) {
		return Target{}, false
	}
	sec, ok := syntax.SectionAt(syntax.SegmentLines(lines), line)
	if !ok || line == sec.StartLine {
		return Target{}, false
	}

	src := lines[line]
	cells := syntax.CellSpans(src)
	at := -1
	for i, c := range cells {
		if col >= c.Start && col <= c.End {
			at = i
			break
		}
	}
	if at < 0 || syntax.IsComment(src) {
		return Target{}, false
	}
	cell := cells[at]
	rng := func(start, end int) index.Location {
		return index.Location{File: file, Line: line + 1, EndLine: line + 1, Column: start, EndColumn: end}
	}

	for _, m := range variableToken.FindAllStringIndex(cell.Text, -1) {
		start, end := cell.Start+m[0], cell.Start+m[1]
		if col >= start && col <= end {
			name := cell.Text[m[0]:m[1]]
			decl := !syntax.IsIndented(src) && at == 0 && sec.Kind == syntax.SectionVariables
			return Target{Name: name, Kind: index.KindVariable, Range: rng(start, end), Declaration: decl}, true
		}
	}

	switch sec.Kind {
	case syntax.SectionSettings:
		if at == 0 || !keywordSettings[index.NormalizeName(cells[0].Text)] {
			return Target{}, false
		}
		return keywordTarget(cell, rng), true

	case syntax.SectionTestCases, syntax.SectionKeywords:
		if !syntax.IsIndented(src) {
			name := strings.TrimSpace(src)
			start := strings.Index(src, name)
			kind := index.KindKeyword
			if sec.Kind == syntax.SectionTestCases {
				kind = index.KindTestCase
			}
			return Target{Name: name, Kind: kind, Range: rng(start, start+len(name)), Declaration: true}, true
		}
		if m := settingPattern.FindStringSubmatch(cells[0].Text); m != nil {
			if at == 0 || nonCallSettings[strings.ToLower(m[1])] {
				return Target{}, false
			}
			return keywordTarget(cell, rng), true
		}
		if cell.Text == "..." || controlWords[strings.ToLower(cell.Text)] {
			return Target{}, false
		}
		return keywordTarget(cell, rng), true
	}
	return Target{}, false
}

// keywordTarget builds a keyword target from a call cell, leaving a Gherkin
// prefix out of the range.
func keywordTarget(cell syntax.Cell, rng func(start, end int) index.Location) Target {
	name := cell.Text
	start := cell.Start
	if bare, ok := StripGherkin(name); ok {
		start += len(name) - len(bare)
		name = bare
	}
	return Target{Name: name, Kind: index.KindKeyword, Range: rng(start, start+len(name))}
}
