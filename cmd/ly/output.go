package main

import (
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
)

// newTable returns a table writer for out. Colour is used only on a terminal.
func newTable(out io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		tw.SetStyle(table.StyleColoredBright)
	}
	return tw
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// parseAt reads an optional RFC 3339 timestamp flag.
func parseAt(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
