package resolve

import (
	"context"
	"log"
	"regexp"
	"strings"

	"github.com/albertocavalcante/rfls/internal/robot/index"
	"github.com/albertocavalcante/rfls/internal/robot/syntax"
)

// nonCallSettings are body metadata whose values are never keyword calls.
var nonCallSettings = map[string]bool{
	"documentation": true,
	"tags":          true,
	"arguments":     true,
	"timeout":       true,
	"return":        true,
}

// KeywordPattern returns a pattern matching a whole cell that calls the
// keyword name. Case is ignored, any whitespace run matches the name's
// internal spaces, and a Gherkin prefix or "Library." qualifier may precede
// the name. The name itself is captured as the first group.
func KeywordPattern(name string) *regexp.Regexp {
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)^(?:(?:given|when|then|and|but)\s+)?(?:[^.\s][^.]*\.)*(` +
		strings.Join(words, `\s+`) + `)$`)
}

// FindUsages returns where name is used across the resolver's documents,
// restricted to test case and keyword sections. Keywords match by cell with
// the language's name rules; variables match their token verbatim. With
// includeDeclaration the symbol table's definitions come first.
//
// Unreadable documents are logged and skipped. The error is non-nil only when
// ctx ends before the scan completes; the usages found so far are returned.
func (r *Resolver) FindUsages(ctx context.Context, name string, kind index.SymbolKind, includeDeclaration bool) ([]index.Location, error) {
	if index.NormalizeName(name) == "" {
		return nil, nil
	}
	decls := r.Definitions(name, kind)

	var result []index.Location
	if includeDeclaration {
		result = append(result, decls...)
	}

	var match func(file string, lineNo int, line string) []index.Location
	switch kind {
	case index.KindKeyword:
		if bare, ok := StripGherkin(name); ok && len(r.table.LookupKeyword(name)) == 0 {
			name = bare
		}
		pattern := KeywordPattern(name)
		match = func(file string, lineNo int, line string) []index.Location {
			return keywordUsages(pattern, file, lineNo, line)
		}
	case index.KindVariable:
		token := strings.TrimSpace(name)
		if !index.IsVariable(token) {
			return result, nil
		}
		match = func(file string, lineNo int, line string) []index.Location {
			return variableUsages(token, file, lineNo, line)
		}
	default:
		// Test cases are never called.
		return result, nil
	}

	isDecl := make(map[index.Location]bool, len(decls))
	for _, d := range decls {
		isDecl[d] = true
		isDecl[startOf(d)] = true
	}

	if r.docs == nil {
		return result, nil
	}
	for _, file := range r.docs.Documents() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		text, err := r.docs.ReadDocument(file)
		if err != nil {
			log.Printf("usages: skipping %s: %v", file, err)
			continue
		}
		for _, loc := range scanDocument(file, text, match) {
			if isDecl[loc] || isDecl[startOf(loc)] {
				continue
			}
			result = append(result, loc)
		}
	}
	return result, nil
}

// startOf reduces a location to its first line and column so that a
// declaration spanning a body still matches a usage at its start.
func startOf(l index.Location) index.Location {
	return index.Location{File: l.File, Line: l.Line, Column: l.Column}
}

func scanDocument(file, text string, match func(string, int, string) []index.Location) []index.Location {
	lines := syntax.SplitLines(text)
	sections := syntax.SegmentLines(lines)

	var result []index.Location
	for _, s := range sections {
		if s.Kind != syntax.SectionTestCases && s.Kind != syntax.SectionKeywords {
			continue
		}
		for i := s.StartLine + 1; i < s.EndLine; i++ {
			line := lines[i]
			if syntax.IsBlank(line) || syntax.IsComment(line) {
				continue
			}
			result = append(result, match(file, i+1, line)...)
		}
	}
	return result
}

// keywordUsages returns the cells of an indented body line that call the
// keyword matched by pattern. Definition headers are not calls.
func keywordUsages(pattern *regexp.Regexp, file string, lineNo int, line string) []index.Location {
	if !syntax.IsIndented(line) {
		return nil
	}
	cells := syntax.CellSpans(line)
	if len(cells) == 0 {
		return nil
	}
	if m := settingPattern.FindStringSubmatch(cells[0].Text); m != nil {
		if nonCallSettings[strings.ToLower(m[1])] {
			return nil
		}
		cells = cells[1:]
	}

	var result []index.Location
	for _, c := range cells {
		m := pattern.FindStringSubmatchIndex(c.Text)
		if m == nil {
			continue
		}
		result = append(result, index.Location{
			File:      file,
			Line:      lineNo,
			EndLine:   lineNo,
			Column:    c.Start + m[2],
			EndColumn: c.Start + m[3],
		})
	}
	return result
}

// variableUsages returns every verbatim occurrence of token in line.
func variableUsages(token, file string, lineNo int, line string) []index.Location {
	var result []index.Location
	offset := 0
	for {
		i := strings.Index(line[offset:], token)
		if i < 0 {
			return result
		}
		col := offset + i
		result = append(result, index.Location{
			File:      file,
			Line:      lineNo,
			EndLine:   lineNo,
			Column:    col,
			EndColumn: col + len(token),
		})
		offset = col + len(token)
	}
}

// settingPattern matches a metadata cell such as "[Setup]".
var settingPattern = regexp.MustCompile(`^\[\s*([^\]]+?)\s*\]$`)
