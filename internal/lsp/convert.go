package lsp

import (
	"path/filepath"
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/albertocavalcante/rfls/internal/robot/index"
)

// pathFromURI returns the file path of a file:// URI, or "" for other schemes.
func pathFromURI(u protocol.DocumentURI) string {
	if !strings.HasPrefix(string(u), uri.FileScheme+"://") {
		return ""
	}
	return filepath.Clean(uri.URI(u).Filename())
}

// fileURI returns the file:// URI of path.
func fileURI(path string) protocol.DocumentURI {
	return protocol.DocumentURI(uri.File(path))
}

func position(line, col int) protocol.Position {
	return protocol.Position{Line: uint32(max(line, 0)), Character: uint32(max(col, 0))}
}

// nameRange returns the range of the name on the first line of loc.
func nameRange(loc index.Location) protocol.Range {
	end := loc.EndColumn
	if end < loc.Column {
		end = loc.Column
	}
	return protocol.Range{
		Start: position(loc.Line-1, loc.Column),
		End:   position(loc.Line-1, end),
	}
}

// spanRange returns the range of every line of loc.
func spanRange(loc index.Location) protocol.Range {
	if loc.EndLine <= loc.Line {
		return nameRange(loc)
	}
	return protocol.Range{
		Start: position(loc.Line-1, loc.Column),
		End:   position(loc.EndLine, 0),
	}
}

// toLocation converts a navigable location. Synthetic and empty locations
// are not navigable.
func toLocation(loc index.Location) (protocol.Location, bool) {
	if loc.IsZero() || loc.IsSynthetic() || loc.File == "" {
		return protocol.Location{}, false
	}
	return protocol.Location{URI: fileURI(loc.File), Range: nameRange(loc)}, true
}

func toLocations(locs []index.Location) []protocol.Location {
	out := make([]protocol.Location, 0, len(locs))
	for _, l := range locs {
		if pl, ok := toLocation(l); ok {
			out = append(out, pl)
		}
	}
	return out
}
