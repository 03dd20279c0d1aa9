package rfquery

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/albertocavalcante/rfls/internal/cli"
	"github.com/albertocavalcante/rfls/internal/robot/index"
)

// styles renders terminal output. The zero value prints plain text.
type styles struct {
	enabled bool
	path    lipgloss.Style
	name    lipgloss.Style
	detail  lipgloss.Style
	added   lipgloss.Style
	removed lipgloss.Style
	header  lipgloss.Style
}

// newStyles enables color only when w is a terminal.
func newStyles(w io.Writer, want bool) styles {
	if !want || os.Getenv("NO_COLOR") != "" {
		return styles{}
	}
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return styles{}
	}
	return styles{
		enabled: true,
		path:    lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
		name:    lipgloss.NewStyle().Bold(true),
		detail:  lipgloss.NewStyle().Faint(true),
		added:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		removed: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
	}
}

func (s styles) render(st lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return st.Render(text)
}

// diff colors a unified diff line by line.
func (s styles) diff(text string) string {
	if !s.enabled {
		return text
	}
	lines := strings.SplitAfter(text, "\n")
	for i, line := range lines {
		body := strings.TrimSuffix(line, "\n")
		nl := line[len(body):]
		switch {
		case strings.HasPrefix(body, "+++"), strings.HasPrefix(body, "---"):
			lines[i] = s.header.Render(body) + nl
		case strings.HasPrefix(body, "@@"):
			lines[i] = s.detail.Render(body) + nl
		case strings.HasPrefix(body, "+"):
			lines[i] = s.added.Render(body) + nl
		case strings.HasPrefix(body, "-"):
			lines[i] = s.removed.Render(body) + nl
		}
	}
	return strings.Join(lines, "")
}

// locationJSON is the JSON form of a location; paths are relative to the root.
type locationJSON struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	EndLine   int    `json:"end_line,omitempty"`
	Column    int    `json:"column"`
	EndColumn int    `json:"end_column,omitempty"`
}

// symbolJSON is one definition in JSON output.
type symbolJSON struct {
	Kind      string        `json:"kind"`
	Name      string        `json:"name"`
	Library   string        `json:"library,omitempty"`
	Signature string        `json:"signature,omitempty"`
	Value     string        `json:"value,omitempty"`
	Scope     string        `json:"scope,omitempty"`
	Owner     string        `json:"owner,omitempty"`
	Tags      []string      `json:"tags,omitempty"`
	Doc       string        `json:"doc,omitempty"`
	Location  *locationJSON `json:"location,omitempty"`
}

// printer writes results relative to a workspace root.
type printer struct {
	w      io.Writer
	root   string
	json   bool
	styles styles
}

func (p printer) rel(file string) string {
	if strings.HasPrefix(file, index.BuiltinScheme) {
		return file
	}
	if r, err := filepath.Rel(p.root, file); err == nil && !strings.HasPrefix(r, "..") {
		return filepath.ToSlash(r)
	}
	return file
}

func (p printer) location(loc index.Location) *locationJSON {
	if loc.IsZero() {
		return nil
	}
	return &locationJSON{
		File:      p.rel(loc.File),
		Line:      loc.Line,
		EndLine:   loc.EndLine,
		Column:    loc.Column,
		EndColumn: loc.EndColumn,
	}
}

// position formats a location as file:line:col with a 1-based column.
func (p printer) position(loc index.Location) string {
	if loc.IsSynthetic() {
		return p.styles.render(p.styles.path, loc.File)
	}
	return fmt.Sprintf("%s:%d:%d", p.styles.render(p.styles.path, p.rel(loc.File)), loc.Line, loc.Column+1)
}

func (p printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) keyword(d index.KeywordDefinition) symbolJSON {
	return symbolJSON{
		Kind:      index.KindKeyword.String(),
		Name:      d.Name,
		Library:   d.LibraryName(),
		Signature: d.Signature(),
		Doc:       d.Doc,
		Location:  p.location(d.Location()),
	}
}

func (p printer) variable(d index.VariableDefinition) symbolJSON {
	return symbolJSON{
		Kind:     index.KindVariable.String(),
		Name:     d.Name,
		Value:    d.Value,
		Scope:    d.Scope.String(),
		Owner:    d.Owner,
		Location: p.location(d.Location),
	}
}

func (p printer) testCase(d index.TestCaseDefinition) symbolJSON {
	return symbolJSON{
		Kind:     index.KindTestCase.String(),
		Name:     d.Name,
		Tags:     d.Tags,
		Doc:      d.Doc,
		Location: p.location(d.Location),
	}
}

// symbols prints definitions, one per line in text mode.
func (p printer) symbols(syms []symbolJSON, locs []index.Location) error {
	if p.json {
		if syms == nil {
			syms = []symbolJSON{}
		}
		return p.encode(syms)
	}
	for i, s := range syms {
		line := p.position(locs[i]) + "  " + p.styles.render(p.styles.name, s.Name)
		var extra []string
		switch {
		case s.Library != "":
			extra = append(extra, "library "+s.Library)
		case s.Kind == index.KindVariable.String():
			if s.Owner != "" {
				extra = append(extra, s.Scope+" in "+s.Owner)
			} else {
				extra = append(extra, s.Scope)
			}
			if s.Value != "" {
				extra = append(extra, "= "+s.Value)
			}
		case len(s.Tags) > 0:
			extra = append(extra, "tags "+strings.Join(s.Tags, ", "))
		}
		if len(extra) > 0 {
			line += "  " + p.styles.render(p.styles.detail, strings.Join(extra, " "))
		}
		cli.Writeln(p.w, line)
	}
	return nil
}

// locations prints bare positions.
func (p printer) locations(locs []index.Location) error {
	if p.json {
		out := make([]*locationJSON, 0, len(locs))
		for _, l := range locs {
			out = append(out, p.location(l))
		}
		return p.encode(out)
	}
	for _, l := range locs {
		cli.Writeln(p.w, p.position(l))
	}
	return nil
}
