package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"sqlhild/internal/query"
	"sqlhild/internal/value"
)

func renderTable(w io.Writer, result *query.Result) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(result.Schema))
	for i, col := range result.Schema {
		header[i] = col.Name
	}
	t.AppendHeader(header)

	count := 0
	for {
		row, err := result.Rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		out := make(table.Row, len(row))
		for i, v := range row {
			out[i] = v.String()
		}
		t.AppendRow(out)
		count++
	}

	t.Render()
	fmt.Fprintf(w, "(%d rows)\n", count)
	return nil
}

func renderCSV(w io.Writer, result *query.Result) error {
	names := make([]string, len(result.Schema))
	for i, col := range result.Schema {
		names[i] = escapeCSV(col.Name)
	}
	fmt.Fprintln(w, strings.Join(names, ","))

	for {
		row, err := result.Rows.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fields := make([]string, len(row))
		for i, v := range row {
			fields[i] = csvField(v)
		}
		fmt.Fprintln(w, strings.Join(fields, ","))
	}
}

// csvField renders one value for CSV output; nulls become empty fields.
func csvField(v value.Value) string {
	if v.IsNull() {
		return ""
	}
	return escapeCSV(v.String())
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
