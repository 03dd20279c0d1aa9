package index

import (
	"regexp"
	"slices"
	"strings"

	"github.com/albertocavalcante/rfls/internal/robot/filekind"
	"github.com/albertocavalcante/rfls/internal/robot/syntax"
)

// settingPattern matches a metadata cell such as "[Documentation]".
var settingPattern = regexp.MustCompile(`^\[\s*([^\]]+?)\s*\]$`)

// Extract parses document text and returns its definitions.
// Extraction never fails; malformed lines and unknown headers are skipped.
func Extract(path, text string) *FileDefinitions {
	return ExtractLines(path, syntax.SplitLines(text))
}

// ExtractLines is Extract for a document already split into lines.
func ExtractLines(path string, lines []string) *FileDefinitions {
	out := &FileDefinitions{Path: path, Kind: filekind.FromPath(path)}
	sections := syntax.SegmentLines(lines)

	st := scanState{file: path}
	next := 0
	for i, line := range lines {
		var em emission
		if st.section != syntax.SectionNone && i >= st.end {
			st, em = enter(st, syntax.Section{})
			out.add(em)
		}
		if next < len(sections) && sections[next].StartLine == i {
			st, em = enter(st, sections[next])
			out.add(em)
			next++
			continue
		}
		st, em = step(st, i+1, line)
		out.add(em)
	}
	out.add(finish(st))

	return out
}

// scanState is the extractor state carried from one line to the next.
type scanState struct {
	file    string
	section syntax.SectionKind
	end     int

	// current is the test case or keyword in progress, nil when none is.
	current *pending

	// variable is the variables-section assignment in progress.
	variable *VariableDefinition

	// lastSetting is the metadata key a "..." line continues.
	lastSetting string
}

// pending is a test case or keyword whose body is still being read.
type pending struct {
	section syntax.SectionKind
	name    string
	line    int
	endLine int

	doc     []string
	tags    []string
	args    []ArgumentSpec
	argVars []VariableDefinition
	locals  []VariableDefinition
}

// clone copies p so a transition never writes through the previous state.
func (p *pending) clone() *pending {
	c := *p
	c.doc = slices.Clone(p.doc)
	c.tags = slices.Clone(p.tags)
	c.args = slices.Clone(p.args)
	c.argVars = slices.Clone(p.argVars)
	c.locals = slices.Clone(p.locals)
	return &c
}

// emission is what a transition hands back for the caller to record.
type emission struct {
	keyword *KeywordDefinition
	test    *TestCaseDefinition
	vars    []VariableDefinition
	imports []Import
}

func (f *FileDefinitions) add(em emission) {
	if em.keyword != nil {
		f.Keywords = append(f.Keywords, *em.keyword)
	}
	if em.test != nil {
		f.TestCases = append(f.TestCases, *em.test)
	}
	f.Variables = append(f.Variables, em.vars...)
	f.Imports = append(f.Imports, em.imports...)
}

// enter finalizes whatever is in progress and switches to section s.
// The zero Section leaves all sections.
func enter(st scanState, s syntax.Section) (scanState, emission) {
	em := finish(st)
	return scanState{file: st.file, section: s.Kind, end: s.EndLine}, em
}

// finish finalizes the definition in progress, if any.
func finish(st scanState) emission {
	var em emission
	if st.variable != nil {
		em.vars = append(em.vars, *st.variable)
	}

	p := st.current
	if p == nil || p.name == "" {
		return em
	}

	loc := Location{File: st.file, Line: p.line, EndLine: p.endLine, EndColumn: len(p.name)}
	switch p.section {
	case syntax.SectionTestCases:
		em.test = &TestCaseDefinition{
			Name:     p.name,
			Doc:      strings.Join(p.doc, "\n"),
			Tags:     p.tags,
			Location: loc,
		}
	case syntax.SectionKeywords:
		em.keyword = &KeywordDefinition{
			Name:   p.name,
			Doc:    strings.Join(p.doc, "\n"),
			Args:   p.args,
			Origin: User{Loc: loc},
		}
		em.vars = append(em.vars, p.argVars...)
	}
	em.vars = append(em.vars, p.locals...)
	return em
}

// step processes one body line. lineNo is 1-based.
func step(st scanState, lineNo int, line string) (scanState, emission) {
	switch st.section {
	case syntax.SectionSettings:
		return st, stepSettings(st, lineNo, line)
	case syntax.SectionVariables:
		return stepVariables(st, lineNo, line)
	case syntax.SectionTestCases, syntax.SectionKeywords:
		return stepBody(st, lineNo, line)
	}
	return st, emission{}
}

func stepSettings(st scanState, lineNo int, line string) emission {
	if syntax.IsIndented(line) || syntax.IsComment(line) {
		return emission{}
	}
	cells := syntax.SplitCells(line)
	if len(cells) < 2 {
		return emission{}
	}

	var kind ImportKind
	switch strings.ToLower(cells[0]) {
	case "library":
		kind = ImportLibrary
	case "resource":
		kind = ImportResource
	case "variables":
		kind = ImportVariables
	default:
		return emission{}
	}
	return emission{imports: []Import{{Kind: kind, Name: cells[1], Args: cells[2:], Line: lineNo}}}
}

func stepVariables(st scanState, lineNo int, line string) (scanState, emission) {
	if syntax.IsBlank(line) || syntax.IsComment(line) {
		return st, emission{}
	}
	cells := syntax.CellSpans(line)

	if cells[0].Text == "..." {
		if st.variable != nil {
			v := *st.variable
			v.Value = joinValue(v.Value, cells[1:])
			v.Location.EndLine = lineNo
			st.variable = &v
		}
		return st, emission{}
	}
	if syntax.IsIndented(line) {
		return st, emission{}
	}

	var em emission
	if st.variable != nil {
		em.vars = append(em.vars, *st.variable)
		st.variable = nil
	}

	name := assignmentName(cells[0].Text)
	if !isAssignable(name) {
		return st, em
	}

	var value string
	if len(cells) > 1 {
		value = strings.TrimSpace(line[cells[1].Start:])
	}
	st.variable = &VariableDefinition{
		Name:  name,
		Value: value,
		Scope: ScopeSuite,
		Location: Location{
			File:      st.file,
			Line:      lineNo,
			EndLine:   lineNo,
			Column:    cells[0].Start,
			EndColumn: cells[0].Start + len(name),
		},
	}
	return st, em
}

func stepBody(st scanState, lineNo int, line string) (scanState, emission) {
	if syntax.IsBlank(line) || syntax.IsComment(line) {
		return st, emission{}
	}

	if !syntax.IsIndented(line) {
		em := finish(st)
		st.variable = nil
		st.lastSetting = ""
		st.current = &pending{
			section: st.section,
			name:    strings.TrimSpace(line),
			line:    lineNo,
			endLine: lineNo,
		}
		return st, em
	}

	if st.current == nil {
		return st, emission{}
	}
	p := st.current.clone()
	st.current = p
	p.endLine = lineNo

	cells := syntax.CellSpans(line)
	first := cells[0].Text

	if first == "..." {
		continueSetting(p, st.lastSetting, st.file, lineNo, cells[1:])
		return st, emission{}
	}

	if m := settingPattern.FindStringSubmatch(first); m != nil {
		st.lastSetting = ""
		rest := cells[1:]
		if len(rest) == 0 {
			// "[Key]" without a value carries no information.
			return st, emission{}
		}
		key := strings.ToLower(m[1])
		switch {
		case key == "documentation":
			p.doc = []string{joinCells(rest, " ")}
			st.lastSetting = key
		case key == "tags" && p.section == syntax.SectionTestCases:
			p.tags = addTags(nil, rest)
			st.lastSetting = key
		case key == "arguments" && p.section == syntax.SectionKeywords:
			p.args, p.argVars = nil, nil
			addArguments(p, st.file, lineNo, rest)
			st.lastSetting = key
		}
		return st, emission{}
	}

	st.lastSetting = ""
	p.locals = append(p.locals, localAssignments(p, st.file, lineNo, cells)...)
	return st, emission{}
}

// continueSetting extends the metadata set by the previous line.
func continueSetting(p *pending, key, file string, lineNo int, cells []syntax.Cell) {
	if len(cells) == 0 {
		return
	}
	switch key {
	case "documentation":
		p.doc = append(p.doc, joinCells(cells, " "))
	case "tags":
		p.tags = addTags(p.tags, cells)
	case "arguments":
		addArguments(p, file, lineNo, cells)
	}
}

func addArguments(p *pending, file string, lineNo int, cells []syntax.Cell) {
	for _, c := range cells {
		spec := ParseArgument(c.Text)
		if spec.Name == "" {
			continue
		}
		p.args = append(p.args, spec)

		namePart, _, _ := strings.Cut(c.Text, "=")
		namePart = strings.TrimSpace(namePart)
		if !isAssignable(namePart) {
			continue
		}
		p.argVars = append(p.argVars, VariableDefinition{
			Name:  namePart,
			Value: spec.Default,
			Scope: ScopeKeyword,
			Owner: p.name,
			Location: Location{
				File:      file,
				Line:      lineNo,
				EndLine:   lineNo,
				Column:    c.Start,
				EndColumn: c.Start + len(namePart),
			},
		})
	}
}

// localAssignments returns the variables assigned by a body line, either
// "${a}    ${b}=    Keyword" or "VAR    ${a}    value".
func localAssignments(p *pending, file string, lineNo int, cells []syntax.Cell) []VariableDefinition {
	scope := ScopeKeyword
	if p.section == syntax.SectionTestCases {
		scope = ScopeTest
	}

	newVar := func(c syntax.Cell, name, value string, scope Scope) VariableDefinition {
		col := c.Start + strings.Index(c.Text, name)
		return VariableDefinition{
			Name:     name,
			Value:    value,
			Scope:    scope,
			Owner:    p.name,
			Location: Location{File: file, Line: lineNo, EndLine: lineNo, Column: col, EndColumn: col + len(name)},
		}
	}

	if strings.EqualFold(cells[0].Text, "VAR") {
		if len(cells) < 2 {
			return nil
		}
		name := assignmentName(cells[1].Text)
		if !isAssignable(name) {
			return nil
		}
		var values []syntax.Cell
		for _, c := range cells[2:] {
			if s, ok := strings.CutPrefix(strings.ToLower(c.Text), "scope="); ok {
				scope = parseScope(s, scope)
				continue
			}
			values = append(values, c)
		}
		return []VariableDefinition{newVar(cells[1], name, joinCells(values, "    "), scope)}
	}

	var vars []VariableDefinition
	for i, c := range cells {
		name := assignmentName(c.Text)
		if !isAssignable(name) {
			break
		}
		// A lone variable cell is a call argument, not an assignment.
		if i == len(cells)-1 && !strings.HasSuffix(strings.TrimSpace(c.Text), "=") {
			break
		}
		vars = append(vars, newVar(c, name, "", scope))
	}
	if len(vars) == 0 {
		return nil
	}

	value := joinCells(cells[len(vars):], "    ")
	for i := range vars {
		vars[i].Value = value
	}
	return vars
}

func parseScope(s string, fallback Scope) Scope {
	switch strings.ToLower(s) {
	case "local":
		return fallback
	case "test", "task":
		return ScopeTest
	case "suite", "suites":
		return ScopeSuite
	case "global":
		return ScopeGlobal
	}
	return fallback
}

// assignmentName strips the optional trailing '=' of an assignment target.
func assignmentName(cell string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cell), "="))
}

// addTags adds whitespace-separated tags, keeping the first spelling of each.
func addTags(tags []string, cells []syntax.Cell) []string {
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		seen[NormalizeName(t)] = true
	}
	for _, c := range cells {
		for _, tag := range strings.Fields(c.Text) {
			key := NormalizeName(tag)
			if seen[key] {
				continue
			}
			seen[key] = true
			tags = append(tags, tag)
		}
	}
	return tags
}

func joinCells(cells []syntax.Cell, sep string) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = c.Text
	}
	return strings.Join(parts, sep)
}

func joinValue(value string, cells []syntax.Cell) string {
	more := joinCells(cells, "    ")
	switch {
	case more == "":
		return value
	case value == "":
		return more
	}
	return value + "    " + more
}
