package syntax

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitCells(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{name: "empty", line: "", want: nil},
		{name: "whitespace only", line: "   \t  ", want: nil},
		{name: "single cell", line: "Log", want: []string{"Log"}},
		{name: "two spaces", line: "Log  hello", want: []string{"Log", "hello"}},
		{name: "four spaces", line: "Log    hello", want: []string{"Log", "hello"}},
		{name: "tab", line: "Log\thello", want: []string{"Log", "hello"}},
		{name: "single space kept", line: "Should Be Equal    ${a}    ${b}", want: []string{"Should Be Equal", "${a}", "${b}"}},
		{name: "indented", line: "    Log    hello world", want: []string{"Log", "hello world"}},
		{name: "space before tab", line: "My Keyword \targ", want: []string{"My Keyword", "arg"}},
		{name: "trailing separator", line: "Log    hi    ", want: []string{"Log", "hi"}},
		{name: "crlf", line: "Log    hi\r", want: []string{"Log", "hi"}},
		{name: "mixed separators", line: "a \t  b\t\tc", want: []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitCells(tt.line)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SplitCells(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestCellSpans(t *testing.T) {
	got := CellSpans("    Log    hello world")
	want := []Cell{
		{Text: "Log", Start: 4, End: 7},
		{Text: "hello world", Start: 11, End: 22},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CellSpans mismatch (-want +got):\n%s", diff)
	}
}

func TestLinePredicates(t *testing.T) {
	if !IsIndented("  Log") || !IsIndented("\tLog") || IsIndented("Log") || IsIndented("") {
		t.Error("IsIndented gave an unexpected answer")
	}
	if !IsBlank("") || !IsBlank(" \t ") || IsBlank(" x ") {
		t.Error("IsBlank gave an unexpected answer")
	}
	if !IsComment("  # note") || !IsComment("#") || IsComment("Log  # trailing") {
		t.Error("IsComment gave an unexpected answer")
	}
}

func TestSplitLines(t *testing.T) {
	got := SplitLines("a\r\nb\n\nc\n")
	want := []string{"a", "b", "", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SplitLines mismatch (-want +got):\n%s", diff)
	}
	if got := SplitLines(""); got != nil {
		t.Errorf("SplitLines(\"\") = %v, want nil", got)
	}
}
