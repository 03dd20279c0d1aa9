package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"go.lsp.dev/protocol"

	"github.com/albertocavalcante/rfls/internal/robot/index"
	"github.com/albertocavalcante/rfls/internal/robot/resolve"
)

// handlePrepareRename validates that a symbol at the given position can be renamed.
// Returns a Range if the symbol can be renamed, or nil if not.
func (s *Server) handlePrepareRename(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.PrepareRenameParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	c, ok := s.cursorAt(ctx, p.TextDocument.URI, p.Position)
	if !ok {
		return nil, nil
	}

	log.Printf("prepareRename: %s %q at %d:%d", c.target.Kind, c.target.Name, p.Position.Line, p.Position.Character)

	if c.target.Kind == index.KindKeyword && !hasUserKeyword(c.ix.Resolver().Keywords(c.target.Name)) {
		log.Printf("prepareRename: %q has no user definition, cannot rename", c.target.Name)
		return nil, &ResponseError{Code: CodeRequestFailed, Message: "only user keywords can be renamed"}
	}

	rng := nameRange(c.target.Range)
	return &rng, nil
}

func hasUserKeyword(defs []index.KeywordDefinition) bool {
	for _, d := range defs {
		if _, ok := d.Origin.(index.User); ok {
			return true
		}
	}
	return false
}

// handleRename returns a WorkspaceEdit renaming every declaration and usage
// of the symbol at the given position.
func (s *Server) handleRename(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.RenameParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	c, ok := s.cursorAt(ctx, p.TextDocument.URI, p.Position)
	if !ok {
		return nil, nil
	}

	log.Printf("rename: %s %q to %q", c.target.Kind, c.target.Name, p.NewName)

	edits, err := c.ix.Resolver().Rename(ctx, c.target.Name, c.target.Kind, p.NewName)
	switch {
	case errors.Is(err, resolve.ErrNotFound):
		return nil, nil
	case errors.Is(err, resolve.ErrInvalidName):
		return nil, &ResponseError{Code: CodeInvalidParams, Message: err.Error()}
	case err != nil:
		return nil, &ResponseError{Code: CodeRequestFailed, Message: err.Error()}
	}

	changes := make(map[protocol.DocumentURI][]protocol.TextEdit)
	for file, fileEdits := range resolve.EditsByFile(edits) {
		docURI := fileURI(file)
		for _, e := range fileEdits {
			changes[docURI] = append(changes[docURI], protocol.TextEdit{
				Range:   nameRange(e.Location),
				NewText: e.NewText,
			})
		}
	}

	return &protocol.WorkspaceEdit{
		Changes: changes,
	}, nil
}
