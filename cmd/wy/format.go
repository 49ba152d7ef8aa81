package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/zulandar/workyard/internal/capacity"
)

// isTerminal reports whether out is an interactive terminal.
func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// newTable returns a table writer rendering to out. Terminals get the
// colored style; pipes and files get plain ASCII.
func newTable(out io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	if isTerminal(out) {
		tw.SetStyle(table.StyleColoredBright)
	} else {
		tw.SetStyle(table.StyleDefault)
	}
	return tw
}

// bandColor highlights a band label on terminals.
func bandColor(out io.Writer, b capacity.Band) string {
	label := b.Label()
	if !isTerminal(out) {
		return label
	}
	switch b {
	case capacity.Over:
		return text.FgRed.Sprint(label)
	case capacity.At:
		return text.FgYellow.Sprint(label)
	case capacity.Near:
		return text.FgCyan.Sprint(label)
	}
	return text.FgGreen.Sprint(label)
}

func formatHours(h float64) string { return fmt.Sprintf("%.1f", h) }

func formatPercent(f float64) string { return fmt.Sprintf("%.0f%%", f*100) }

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
