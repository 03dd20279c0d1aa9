package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/albertocavalcante/rfls/internal/robot/index"
	"github.com/albertocavalcante/rfls/internal/robot/resolve"
	"github.com/albertocavalcante/rfls/internal/robot/symbols"
	"github.com/albertocavalcante/rfls/internal/workspace"
)

// cursor is the resolved context of a position request.
type cursor struct {
	ix     *workspace.Indexer
	path   string
	text   string
	target resolve.Target
}

// cursorAt finds the symbol under a position. ok is false when there is none
// or the document belongs to no root.
func (s *Server) cursorAt(ctx context.Context, docURI protocol.DocumentURI, pos protocol.Position) (cursor, bool) {
	path := pathFromURI(docURI)
	if path == "" {
		return cursor{}, false
	}
	ix := s.indexerFor(ctx, path)
	if ix == nil {
		return cursor{}, false
	}
	text, err := s.overlay.Read(path)
	if err != nil {
		log.Printf("cursor: %v", err)
		return cursor{}, false
	}
	target, ok := resolve.SymbolAt(path, text, int(pos.Line), int(pos.Character))
	if !ok {
		return cursor{}, false
	}
	return cursor{ix: ix, path: path, text: text, target: target}, true
}

// --- Hover ---

func (s *Server) handleHover(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.HoverParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	c, ok := s.cursorAt(ctx, p.TextDocument.URI, p.Position)
	if !ok {
		return nil, nil
	}

	log.Printf("hover: %s @ %d:%d -> %s %q", c.path, p.Position.Line, p.Position.Character, c.target.Kind, c.target.Name)

	var markdown string
	res := c.ix.Resolver()
	switch c.target.Kind {
	case index.KindKeyword:
		defs := symbols.PreferUser(res.Keywords(c.target.Name))
		if len(defs) > 0 {
			markdown = formatKeywordHover(defs[0], c.ix.Root(), len(defs))
		}
	case index.KindVariable:
		if defs := res.Table().LookupVariable(c.target.Name); len(defs) > 0 {
			markdown = formatVariableHover(defs[0], c.ix.Root(), len(defs))
		}
	case index.KindTestCase:
		if defs := res.Table().LookupTestCase(c.target.Name); len(defs) > 0 {
			markdown = formatTestCaseHover(defs[0])
		}
	}

	if markdown == "" {
		return nil, nil
	}

	rng := nameRange(c.target.Range)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: markdown,
		},
		Range: &rng,
	}, nil
}

// formatKeywordHover formats a keyword signature and its origin as Markdown.
func formatKeywordHover(def index.KeywordDefinition, root string, count int) string {
	var b strings.Builder
	b.WriteString("```robotframework\n")
	b.WriteString(def.Signature())
	b.WriteString("\n```\n")

	if def.Doc != "" {
		b.WriteString("\n")
		b.WriteString(def.Doc)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch o := def.Origin.(type) {
	case index.User:
		fmt.Fprintf(&b, "Keyword in `%s:%d`", relPath(root, o.Loc.File), o.Loc.Line)
	case index.Library:
		fmt.Fprintf(&b, "Library keyword from `%s`", o.Name)
	case index.Builtin:
		fmt.Fprintf(&b, "Built-in keyword from `%s`", o.Name)
	}
	if count > 1 {
		fmt.Fprintf(&b, " (%d definitions)", count)
	}
	return b.String()
}

func formatVariableHover(def index.VariableDefinition, root string, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", def.Name)
	if def.Value != "" {
		fmt.Fprintf(&b, " = `%s`", def.Value)
	}
	fmt.Fprintf(&b, "\n\n%s variable", def.Scope)
	if def.Owner != "" {
		fmt.Fprintf(&b, " of `%s`", def.Owner)
	}
	fmt.Fprintf(&b, " in `%s:%d`", relPath(root, def.Location.File), def.Location.Line)
	if count > 1 {
		fmt.Fprintf(&b, " (%d definitions)", count)
	}
	return b.String()
}

func formatTestCaseHover(def index.TestCaseDefinition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", def.Name)
	if def.Doc != "" {
		b.WriteString("\n")
		b.WriteString(def.Doc)
		b.WriteString("\n")
	}
	if len(def.Tags) > 0 {
		fmt.Fprintf(&b, "\nTags: `%s`\n", strings.Join(def.Tags, "`, `"))
	}
	return b.String()
}

// relPath returns path relative to root when it lies below it.
func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// --- Definition ---

func (s *Server) handleDefinition(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DefinitionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	c, ok := s.cursorAt(ctx, p.TextDocument.URI, p.Position)
	if !ok {
		return nil, nil
	}

	log.Printf("definition: %s @ %d:%d -> %s %q", c.path, p.Position.Line, p.Position.Character, c.target.Kind, c.target.Name)

	res := c.ix.Resolver()
	var locs []index.Location
	if c.target.Kind == index.KindKeyword {
		for _, d := range symbols.PreferUser(res.Keywords(c.target.Name)) {
			locs = append(locs, d.Location())
		}
	} else {
		locs = res.Definitions(c.target.Name, c.target.Kind)
	}

	result := toLocations(locs)
	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

// --- References ---

func (s *Server) handleReferences(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.ReferenceParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	c, ok := s.cursorAt(ctx, p.TextDocument.URI, p.Position)
	if !ok {
		return nil, nil
	}

	log.Printf("references: %s @ %d:%d -> %s %q", c.path, p.Position.Line, p.Position.Character, c.target.Kind, c.target.Name)

	usages, err := c.ix.Resolver().FindUsages(ctx, c.target.Name, c.target.Kind, p.Context.IncludeDeclaration)
	if err != nil {
		log.Printf("references: %v", err)
	}
	refs := toLocations(usages)

	log.Printf("references: found %d references to %q", len(refs), c.target.Name)
	return refs, nil
}
