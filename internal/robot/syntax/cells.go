// Package syntax provides the line-level building blocks of Robot Framework
// documents: splitting lines into cells and segmenting a document into sections.
package syntax

import "strings"

// Cell is a single cell of a line together with its byte offsets.
type Cell struct {
	// Text is the trimmed cell content.
	Text string

	// Start is the byte offset of the first character of Text in the line.
	Start int

	// End is the byte offset just past the last character of Text.
	End int
}

// SplitCells splits a line into its trimmed, non-empty cells.
// A tab or a run of two or more spaces separates cells; a single space
// stays part of the cell.
func SplitCells(line string) []string {
	spans := CellSpans(line)
	if len(spans) == 0 {
		return nil
	}
	cells := make([]string, len(spans))
	for i, c := range spans {
		cells[i] = c.Text
	}
	return cells
}

// CellSpans is like SplitCells but also reports where each cell sits in the line.
func CellSpans(line string) []Cell {
	line = strings.TrimRight(line, "\r\n")

	var cells []Cell
	n := len(line)
	i := 0
	for i < n {
		for i < n && isSpace(line[i]) {
			i++
		}
		if i >= n {
			break
		}

		start := i
		for i < n && !isSeparatorAt(line, i) {
			i++
		}

		text := strings.TrimRight(line[start:i], " ")
		if text == "" {
			continue
		}
		cells = append(cells, Cell{Text: text, Start: start, End: start + len(text)})
	}
	return cells
}

// IsIndented reports whether the line starts with whitespace.
func IsIndented(line string) bool {
	return len(line) > 0 && isSpace(line[0])
}

// IsBlank reports whether the line holds nothing but whitespace.
func IsBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// IsComment reports whether the trimmed line starts with '#'.
func IsComment(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

// SplitLines splits document text into lines, accepting both LF and CRLF endings.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	// A trailing newline does not start another line.
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}

func isSeparatorAt(line string, i int) bool {
	if line[i] == '\t' {
		return true
	}
	return line[i] == ' ' && i+1 < len(line) && isSpace(line[i+1])
}
