package output

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Table is a plain text table with a header row.
type Table struct {
	headers []string
	rows    [][]string
	widths  []int
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	t := &Table{headers: headers, widths: make([]int, len(headers))}
	for i, h := range headers {
		t.widths[i] = displayWidth(h)
	}
	return t
}

// AddRow adds a row. Missing cells are left empty and extra cells dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	for i, cell := range row {
		if w := displayWidth(cell); w > t.widths[i] {
			t.widths[i] = w
		}
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render returns the table framed as
//
//	+----+--------+
//	| ID | Status |
//	+====+========+
//	| C1 | Passed |
//	+----+--------+
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(t.separator('-'))
	sb.WriteString(t.row(t.headers))
	sb.WriteString(t.separator('='))
	for _, r := range t.rows {
		sb.WriteString(t.row(r))
	}
	sb.WriteString(t.separator('-'))
	return sb.String()
}

func (t *Table) separator(fill rune) string {
	var sb strings.Builder
	sb.WriteByte('+')
	for _, w := range t.widths {
		sb.WriteString(strings.Repeat(string(fill), w+2))
		sb.WriteByte('+')
	}
	sb.WriteByte('\n')
	return sb.String()
}

func (t *Table) row(cells []string) string {
	var sb strings.Builder
	sb.WriteByte('|')
	for i, cell := range cells {
		sb.WriteByte(' ')
		sb.WriteString(cell)
		sb.WriteString(strings.Repeat(" ", t.widths[i]-displayWidth(cell)))
		sb.WriteString(" |")
	}
	sb.WriteByte('\n')
	return sb.String()
}

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*[A-Za-z]")

// displayWidth counts runes, ignoring color sequences.
func displayWidth(s string) int {
	return utf8.RuneCountInString(ansiEscape.ReplaceAllString(s, ""))
}

// Truncate shortens text to maxWidth runes, ending with "..." when cut.
func Truncate(text string, maxWidth int) string {
	runes := []rune(text)
	if len(runes) <= maxWidth {
		return text
	}
	if maxWidth <= 3 {
		return string(runes[:maxWidth])
	}
	return string(runes[:maxWidth-3]) + "..."
}
