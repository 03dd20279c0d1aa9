package syntax

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		line     string
		want     SectionKind
		isHeader bool
	}{
		{"*** Settings ***", SectionSettings, true},
		{"*** Setting ***", SectionSettings, true},
		{"***Variables***", SectionVariables, true},
		{"*** Test Cases ***", SectionTestCases, true},
		{"*** test case ***", SectionTestCases, true},
		{"*** Tasks ***", SectionTestCases, true},
		{"*** Keywords ***", SectionKeywords, true},
		{"  ***** Keywords *****  ", SectionKeywords, true},
		{"*** Comments ***", SectionNone, true},
		{"*** Settings", SectionNone, false},
		{"Settings ***", SectionNone, false},
		{"** Settings **", SectionNone, false},
		{"Log    ***", SectionNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, isHeader := ParseHeader(tt.line)
			if got != tt.want || isHeader != tt.isHeader {
				t.Errorf("ParseHeader(%q) = (%v, %v), want (%v, %v)", tt.line, got, isHeader, tt.want, tt.isHeader)
			}
		})
	}
}

func TestSegment(t *testing.T) {
	doc := `preamble ignored
*** Settings ***
Library    Collections

*** Variables ***
${X}    1
*** Comments ***
anything
*** Test Cases ***
T1
    Log    ${X}
*** Keywords ***
My Keyword
    No Operation`

	got := Segment(doc)
	want := []Section{
		{Kind: SectionSettings, StartLine: 1, EndLine: 4},
		{Kind: SectionVariables, StartLine: 4, EndLine: 6},
		{Kind: SectionTestCases, StartLine: 8, EndLine: 11},
		{Kind: SectionKeywords, StartLine: 11, EndLine: 14},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Segment mismatch (-want +got):\n%s", diff)
	}
}

func TestSegment_NoHeaders(t *testing.T) {
	if got := Segment("Log    hello\n"); len(got) != 0 {
		t.Errorf("Segment() = %v, want no sections", got)
	}
}

func TestSectionAt(t *testing.T) {
	sections := []Section{
		{Kind: SectionVariables, StartLine: 0, EndLine: 3},
		{Kind: SectionKeywords, StartLine: 5, EndLine: 9},
	}

	if s, ok := SectionAt(sections, 1); !ok || s.Kind != SectionVariables {
		t.Errorf("SectionAt(1) = %v, %v", s, ok)
	}
	if _, ok := SectionAt(sections, 4); ok {
		t.Error("SectionAt(4) should fall between sections")
	}
	if s, ok := SectionAt(sections, 8); !ok || s.Kind != SectionKeywords {
		t.Errorf("SectionAt(8) = %v, %v", s, ok)
	}
	if !sections[1].Contains(6) || sections[1].Contains(5) || sections[1].LastLine() != 8 {
		t.Error("Contains/LastLine gave an unexpected answer")
	}
}
