// Package results prints statement results in the selectable table formats.
package results

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/sadopc/sqlsense/internal/adapter"
)

// Formats lists every format Write understands.
var Formats = []string{"ascii", "csv", "html", "json", "markdown", "tsv", "vertical"}

// Supported reports whether format is one of Formats.
func Supported(format string) bool {
	return slices.Contains(Formats, format)
}

// Write prints res to w in format. Results without rows print their message.
func Write(w io.Writer, res *adapter.QueryResult, format string) error {
	if res == nil {
		return nil
	}
	if !res.IsSelect {
		_, err := fmt.Fprintln(w, summary(res))
		return err
	}

	var err error
	switch format {
	case "json":
		err = writeJSON(w, res)
	case "vertical":
		err = writeVertical(w, res)
	case "ascii", "csv", "html", "markdown", "tsv":
		err = writeTable(w, res, format)
	default:
		return fmt.Errorf("unknown table format %q", format)
	}
	if err != nil {
		return err
	}
	if format == "ascii" || format == "vertical" {
		_, err = fmt.Fprintln(w, summary(res))
	}
	return err
}

func summary(res *adapter.QueryResult) string {
	if !res.IsSelect {
		if res.Message != "" {
			return res.Message
		}
		return fmt.Sprintf("Query OK, %d rows affected (%s)", res.RowCount, res.Duration.Round(time.Millisecond))
	}
	s := fmt.Sprintf("%d rows in set (%s)", len(res.Rows), res.Duration.Round(time.Millisecond))
	if res.Truncated {
		s += ", truncated"
	}
	return s
}

func columnNames(res *adapter.QueryResult) []string {
	names := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		names[i] = c.Name
	}
	return names
}

func writeTable(w io.Writer, res *adapter.QueryResult, format string) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(res.Columns))
	for i, name := range columnNames(res) {
		header[i] = name
	}
	t.AppendHeader(header)
	for _, r := range res.Rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = v
		}
		t.AppendRow(row)
	}

	switch format {
	case "csv":
		t.RenderCSV()
	case "tsv":
		t.RenderTSV()
	case "html":
		t.RenderHTML()
	case "markdown":
		t.RenderMarkdown()
	default:
		t.Render()
	}
	return nil
}

// writeJSON prints an array of objects mapping column names to values.
func writeJSON(w io.Writer, res *adapter.QueryResult) error {
	names := columnNames(res)
	objects := make([]map[string]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		obj := make(map[string]string, len(names))
		for j, name := range names {
			if j < len(row) {
				obj[name] = row[j]
			} else {
				obj[name] = ""
			}
		}
		objects = append(objects, obj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(objects)
}

// writeVertical prints one block per row with right-aligned column names.
func writeVertical(w io.Writer, res *adapter.QueryResult) error {
	names := columnNames(res)
	width := 0
	for _, n := range names {
		width = max(width, len(n))
	}

	var b strings.Builder
	for i, row := range res.Rows {
		fmt.Fprintf(&b, "%s %d. row %s\n", strings.Repeat("*", 27), i+1, strings.Repeat("*", 27))
		for j, name := range names {
			v := ""
			if j < len(row) {
				v = row[j]
			}
			fmt.Fprintf(&b, "%*s: %s\n", width, name, v)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
