package syntax

import "strings"

// SectionKind identifies the kind of a document section.
type SectionKind int

const (
	// SectionNone marks lines outside any recognized section.
	SectionNone SectionKind = iota
	SectionSettings
	SectionVariables
	SectionTestCases
	SectionKeywords
)

// String returns a lowercase name for the section kind.
func (k SectionKind) String() string {
	switch k {
	case SectionSettings:
		return "settings"
	case SectionVariables:
		return "variables"
	case SectionTestCases:
		return "testcases"
	case SectionKeywords:
		return "keywords"
	default:
		return "none"
	}
}

// Section is a half-open range of lines [StartLine, EndLine) belonging to one
// section. StartLine is the header line; lines are 0-based.
type Section struct {
	Kind      SectionKind
	StartLine int
	EndLine   int
}

// Contains reports whether line is a body line of the section (the header excluded).
func (s Section) Contains(line int) bool {
	return line > s.StartLine && line < s.EndLine
}

// LastLine returns the last line of the section, the one just before the next header.
func (s Section) LastLine() int {
	return s.EndLine - 1
}

// ParseHeader reports whether line is a section header and, if so, which kind.
// A header that is not recognized returns (SectionNone, true).
func ParseHeader(line string) (SectionKind, bool) {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 3 || !strings.HasPrefix(trimmed, "***") || !strings.HasSuffix(trimmed, "***") {
		return SectionNone, false
	}

	title := strings.ToLower(strings.TrimSpace(strings.Trim(trimmed, "*")))
	switch {
	case strings.Contains(title, "setting"):
		return SectionSettings, true
	case strings.Contains(title, "variable"):
		return SectionVariables, true
	case strings.Contains(title, "test case"), strings.Contains(title, "task"):
		return SectionTestCases, true
	case strings.Contains(title, "keyword"):
		return SectionKeywords, true
	}
	return SectionNone, true
}

// Segment splits document text into recognized sections.
func Segment(text string) []Section {
	return SegmentLines(SplitLines(text))
}

// SegmentLines splits already-split lines into recognized sections.
// Unrecognized headers close the current section without opening a new one;
// content before the first header belongs to no section.
func SegmentLines(lines []string) []Section {
	var sections []Section
	open := -1

	for i, line := range lines {
		kind, ok := ParseHeader(line)
		if !ok {
			continue
		}
		if open >= 0 {
			sections[open].EndLine = i
			open = -1
		}
		if kind == SectionNone {
			continue
		}
		sections = append(sections, Section{Kind: kind, StartLine: i})
		open = len(sections) - 1
	}

	if open >= 0 {
		sections[open].EndLine = len(lines)
	}
	return sections
}

// SectionAt returns the section containing line, header included.
func SectionAt(sections []Section, line int) (Section, bool) {
	for _, s := range sections {
		if line >= s.StartLine && line < s.EndLine {
			return s, true
		}
	}
	return Section{}, false
}
