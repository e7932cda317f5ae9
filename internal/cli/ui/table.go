package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Table renders rows under a bold header with aligned columns.
type Table struct {
	writer   io.Writer
	headers  []string
	rows     [][]string
	noColor  bool
	maxWidth int
}

// TableOptions configures table behavior
type TableOptions struct {
	NoColor bool
	// MaxCellWidth truncates longer cells with "..."; zero disables it.
	MaxCellWidth int
}

// NewTable creates a new table with the given headers
func NewTable(w io.Writer, headers []string, opts *TableOptions) *Table {
	t := &Table{
		writer:  w,
		headers: headers,
		rows:    make([][]string, 0),
	}
	if opts != nil {
		t.noColor = opts.NoColor
		t.maxWidth = opts.MaxCellWidth
	}
	return t
}

// AddRow adds a row to the table
func (t *Table) AddRow(cells ...string) {
	if t.maxWidth > 0 {
		for i, c := range cells {
			cells[i] = truncate(c, t.maxWidth)
		}
	}
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render renders the table to the writer
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = utf8.RuneCountInString(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], utf8.RuneCountInString(cell))
			}
		}
	}

	bold := color.New(color.Bold, color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if t.noColor {
		bold.DisableColor()
		gray.DisableColor()
	}

	for i, header := range t.headers {
		bold.Fprint(t.writer, t.cell(header, i, widths))
	}
	fmt.Fprintln(t.writer)

	for i, width := range widths {
		gray.Fprint(t.writer, strings.Repeat("─", width))
		if i < len(widths)-1 {
			gray.Fprint(t.writer, "  ")
		}
	}
	fmt.Fprintln(t.writer)

	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprint(t.writer, t.cell(cell, i, widths))
			}
		}
		fmt.Fprintln(t.writer)
	}
}

// cell pads all but the last column.
func (t *Table) cell(s string, i int, widths []int) string {
	if i == len(widths)-1 {
		return s
	}
	return padRight(s, widths[i]) + "  "
}

func padRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width || width < 4 {
		return s
	}
	r := []rune(s)
	return string(r[:width-3]) + "..."
}

// KeyValueTable renders aligned "key: value" lines.
type KeyValueTable struct {
	writer  io.Writer
	rows    [][2]string
	noColor bool
}

// NewKeyValueTable creates a new key-value table
func NewKeyValueTable(w io.Writer, noColor bool) *KeyValueTable {
	return &KeyValueTable{writer: w, noColor: noColor}
}

// AddRow adds a key-value pair to the table
func (t *KeyValueTable) AddRow(key string, value interface{}) {
	t.rows = append(t.rows, [2]string{key, fmt.Sprint(value)})
}

// Render renders the key-value table
func (t *KeyValueTable) Render() {
	width := 0
	for _, row := range t.rows {
		width = max(width, utf8.RuneCountInString(row[0]))
	}

	cyan := color.New(color.FgCyan)
	if t.noColor {
		cyan.DisableColor()
	}
	for _, row := range t.rows {
		cyan.Fprint(t.writer, padRight(row[0]+":", width+1))
		fmt.Fprintf(t.writer, " %s\n", row[1])
	}
}

// Header renders a bold title underlined with a divider.
func Header(w io.Writer, title string, noColor bool) {
	bold := color.New(color.Bold, color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if noColor {
		bold.DisableColor()
		gray.DisableColor()
	}
	bold.Fprintln(w, title)
	gray.Fprintln(w, strings.Repeat("─", utf8.RuneCountInString(title)))
}
