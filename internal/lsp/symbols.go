package lsp

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/albertocavalcante/rfls/internal/robot/index"
	"github.com/albertocavalcante/rfls/internal/robot/sortutil"
)

// maxWorkspaceSymbols caps workspace/symbol results.
const maxWorkspaceSymbols = 500

func (s *Server) handleDocumentSymbol(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DocumentSymbolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	path := pathFromURI(p.TextDocument.URI)
	if path == "" {
		return []protocol.DocumentSymbol{}, nil
	}
	text, err := s.overlay.Read(path)
	if err != nil {
		log.Printf("documentSymbol: %v", err)
		return []protocol.DocumentSymbol{}, nil
	}

	log.Printf("documentSymbol: %s", path)
	return documentSymbols(index.Extract(path, text)), nil
}

// documentSymbols lists tests and keywords with their local variables as
// children, followed by the suite variables.
func documentSymbols(defs *index.FileDefinitions) []protocol.DocumentSymbol {
	locals := make(map[string][]protocol.DocumentSymbol)
	var suiteVars []protocol.DocumentSymbol
	for _, v := range defs.Variables {
		sym := protocol.DocumentSymbol{
			Name:           v.Name,
			Detail:         v.Value,
			Kind:           protocol.SymbolKindVariable,
			Range:          spanRange(v.Location),
			SelectionRange: nameRange(v.Location),
		}
		if v.Owner == "" {
			suiteVars = append(suiteVars, sym)
			continue
		}
		locals[index.NormalizeName(v.Owner)] = append(locals[index.NormalizeName(v.Owner)], sym)
	}

	symbols := []protocol.DocumentSymbol{}
	for _, tc := range defs.TestCases {
		symbols = append(symbols, protocol.DocumentSymbol{
			Name:           tc.Name,
			Detail:         strings.Join(tc.Tags, ", "),
			Kind:           protocol.SymbolKindMethod,
			Range:          spanRange(tc.Location),
			SelectionRange: nameRange(tc.Location),
			Children:       locals[index.NormalizeName(tc.Name)],
		})
	}
	for _, kw := range defs.Keywords {
		loc := kw.Location()
		symbols = append(symbols, protocol.DocumentSymbol{
			Name:           kw.Name,
			Detail:         kw.Signature(),
			Kind:           protocol.SymbolKindFunction,
			Range:          spanRange(loc),
			SelectionRange: nameRange(loc),
			Children:       locals[index.NormalizeName(kw.Name)],
		})
	}
	return append(symbols, suiteVars...)
}

func (s *Server) handleWorkspaceSymbol(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.WorkspaceSymbolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	query := index.NormalizeName(p.Query)
	log.Printf("workspace/symbol: %q", query)

	var result []protocol.SymbolInformation
	add := func(name string, kind protocol.SymbolKind, loc index.Location, root string) {
		if query != "" && !strings.Contains(index.NormalizeName(name), query) {
			return
		}
		pl, ok := toLocation(loc)
		if !ok {
			return
		}
		result = append(result, protocol.SymbolInformation{
			Name:          name,
			Kind:          kind,
			Location:      pl,
			ContainerName: relPath(root, loc.File),
		})
	}

	for _, ix := range s.registry.Indexers() {
		table := ix.Table()
		for _, kw := range table.UserKeywords() {
			add(kw.Name, protocol.SymbolKindFunction, kw.Location(), ix.Root())
		}
		for _, tc := range table.AllTestCases() {
			add(tc.Name, protocol.SymbolKindMethod, tc.Location, ix.Root())
		}
		for _, v := range table.AllVariables() {
			if v.Owner == "" {
				add(v.Name, protocol.SymbolKindVariable, v.Location, ix.Root())
			}
		}
	}

	sortutil.ByName(result, func(si protocol.SymbolInformation) string { return si.Name })
	if len(result) > maxWorkspaceSymbols {
		result = result[:maxWorkspaceSymbols]
	}
	return result, nil
}
