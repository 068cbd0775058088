package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	brand  = color.New(color.FgHiGreen, color.Bold)
	subtle = color.New(color.FgHiBlack)
	good   = color.New(color.FgGreen)
	bad    = color.New(color.FgRed)
)

// printTable writes an aligned table with a dimmed header
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var header, sep strings.Builder
	for i, h := range headers {
		fmt.Fprintf(&header, "%-*s  ", widths[i], h)
		sep.WriteString(strings.Repeat("─", widths[i]) + "  ")
	}
	subtle.Fprintln(w, strings.TrimRight(header.String(), " "))
	subtle.Fprintln(w, strings.TrimRight(sep.String(), " "))

	for _, row := range rows {
		var line strings.Builder
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(&line, "%-*s  ", widths[i], cell)
			}
		}
		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
