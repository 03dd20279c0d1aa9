package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/albertocavalcante/rfls/internal/robot/index"
	"github.com/albertocavalcante/rfls/internal/robot/resolve"
	"github.com/albertocavalcante/rfls/internal/robot/sortutil"
	"github.com/albertocavalcante/rfls/internal/robot/syntax"
)

func (s *Server) handleCompletion(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.CompletionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("parsing completion params: %w", err)
	}

	path := pathFromURI(p.TextDocument.URI)
	if path == "" {
		return nil, nil
	}
	ix := s.indexerFor(ctx, path)
	if ix == nil {
		return nil, nil
	}
	text, err := s.overlay.Read(path)
	if err != nil {
		return nil, nil
	}

	line, col := int(p.Position.Line), int(p.Position.Character)
	lines := syntax.SplitLines(text)
	if line >= len(lines) {
		return nil, nil
	}
	src := lines[line]
	col = min(col, len(src))

	sec, ok := syntax.SectionAt(syntax.SegmentLines(lines), line)
	if !ok || line == sec.StartLine {
		return nil, nil
	}

	prefix, start := cellPrefix(src, col)
	log.Printf("completion: %s @ %d:%d prefix=%q", path, line, col, prefix)

	var items []protocol.CompletionItem
	if varStart := openVariable(prefix); varStart >= 0 {
		rng := protocol.Range{Start: position(line, start+varStart), End: position(line, col)}
		items = variableCompletions(ix.Table().AllVariables(), prefix[varStart:], rng)
	} else if keywordPosition(sec.Kind, src, start) {
		kwStart := start
		if bare, ok := resolve.StripGherkin(prefix); ok {
			kwStart += len(prefix) - len(bare)
			prefix = bare
		}
		rng := protocol.Range{Start: position(line, kwStart), End: position(line, col)}
		items = keywordCompletions(ix.Table().AllKeywords(), prefix, rng)
	}

	return &protocol.CompletionList{
		IsIncomplete: false,
		Items:        items,
	}, nil
}

// cellPrefix returns the text of the current cell up to col and where the
// cell starts.
func cellPrefix(line string, col int) (string, int) {
	start := 0
	for i := 0; i < col; i++ {
		if line[i] == '\t' || (line[i] == ' ' && i+1 < len(line) && line[i+1] == ' ') {
			start = i + 1
		}
	}
	for start < col && (line[start] == ' ' || line[start] == '\t') {
		start++
	}
	return line[start:col], start
}

// openVariable returns the offset of an unterminated variable reference
// at the end of prefix, or -1.
func openVariable(prefix string) int {
	open := strings.LastIndex(prefix, "{")
	if open < 1 || strings.Contains(prefix[open:], "}") {
		return -1
	}
	switch prefix[open-1] {
	case '$', '@', '&', '%':
		return open - 1
	}
	return -1
}

// keywordPosition reports whether a cell starting at start holds a keyword call.
func keywordPosition(kind syntax.SectionKind, line string, start int) bool {
	switch kind {
	case syntax.SectionTestCases, syntax.SectionKeywords:
		return syntax.IsIndented(line) && start > 0
	case syntax.SectionSettings:
		return start > 0
	}
	return false
}

func keywordCompletions(defs []index.KeywordDefinition, prefix string, rng protocol.Range) []protocol.CompletionItem {
	want := index.NormalizeName(prefix)
	seen := make(map[string]bool)

	var items []protocol.CompletionItem
	for _, d := range defs {
		key := index.NormalizeName(d.LibraryName() + "." + d.Name)
		if seen[key] || !strings.HasPrefix(index.NormalizeName(d.Name), want) {
			continue
		}
		seen[key] = true

		detail := "user keyword"
		if lib := d.LibraryName(); lib != "" {
			detail = lib
		}
		item := protocol.CompletionItem{
			Label:    d.Name,
			Kind:     protocol.CompletionItemKindFunction,
			Detail:   detail,
			TextEdit: &protocol.TextEdit{Range: rng, NewText: d.Name},
			SortText: sortutil.CompletionSortKey(d),
		}
		if sig := d.Signature(); sig != d.Name || d.Doc != "" {
			item.Documentation = protocol.MarkupContent{
				Kind:  protocol.Markdown,
				Value: "```robotframework\n" + sig + "\n```\n\n" + d.Doc,
			}
		}
		items = append(items, item)
	}
	return items
}

func variableCompletions(defs []index.VariableDefinition, prefix string, rng protocol.Range) []protocol.CompletionItem {
	want := index.NormalizeName(prefix[2:])
	seen := make(map[string]bool)

	var items []protocol.CompletionItem
	for _, d := range defs {
		key := index.VariableKey(d.Name)
		if seen[key] || !strings.HasPrefix(key, want) {
			continue
		}
		seen[key] = true

		// Keep the sigil the user typed.
		name := prefix[:1] + d.Name[1:]
		items = append(items, protocol.CompletionItem{
			Label:    name,
			Kind:     protocol.CompletionItemKindVariable,
			Detail:   d.Value,
			TextEdit: &protocol.TextEdit{Range: rng, NewText: name},
		})
	}
	return items
}
