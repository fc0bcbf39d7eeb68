package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/quarrydb/quarry/pkg/project"
	"github.com/quarrydb/quarry/pkg/value"
)

// printResults renders query results in the requested format. Text
// mode writes one row per line with tab-separated cells; JSON mode
// writes a single document with shape and rows.
func printResults(w io.Writer, format string, res project.Results) error {
	if format == "json" {
		return printResultsJSON(w, res)
	}
	switch r := res.(type) {
	case project.Scalar:
		if r.Value == nil {
			fmt.Fprintln(w, "(no result)")
			return nil
		}
		fmt.Fprintln(w, cellText(r.Value))
	case project.Tuple:
		if r.Row == nil {
			fmt.Fprintln(w, "(no result)")
			return nil
		}
		fmt.Fprintln(w, rowText(r.Row))
	case project.Coll:
		for _, v := range r.Values {
			fmt.Fprintln(w, cellText(v))
		}
	case project.Rel:
		fmt.Fprintln(w, strings.Join(r.Columns, "\t"))
		for _, row := range r.Rows {
			fmt.Fprintln(w, rowText(row))
		}
	}
	return nil
}

func printResultsJSON(w io.Writer, res project.Results) error {
	doc := map[string]any{}
	switch r := res.(type) {
	case project.Scalar:
		doc["shape"] = "scalar"
		if r.Value != nil {
			doc["value"] = value.JSONValue(r.Value)
		}
	case project.Tuple:
		doc["shape"] = "tuple"
		if r.Row != nil {
			doc["row"] = rowJSON(r.Row)
		}
	case project.Coll:
		doc["shape"] = "coll"
		values := make([]any, len(r.Values))
		for i, v := range r.Values {
			values[i] = value.JSONValue(v)
		}
		doc["values"] = values
	case project.Rel:
		doc["shape"] = "rel"
		doc["columns"] = r.Columns
		rows := make([]any, len(r.Rows))
		for i, row := range r.Rows {
			rows[i] = rowJSON(row)
		}
		doc["rows"] = rows
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func rowJSON(row []value.Binding) []any {
	out := make([]any, len(row))
	for i, b := range row {
		out[i] = value.JSONValue(b)
	}
	return out
}

func rowText(row []value.Binding) string {
	parts := make([]string, len(row))
	for i, b := range row {
		parts[i] = cellText(b)
	}
	return strings.Join(parts, "\t")
}

func cellText(b value.Binding) string {
	return fmt.Sprintf("%v", value.JSONValue(b))
}

// printMap renders a pull result. JSON preserves selector order via
// StructuredMap's ordered marshaler.
func printMap(w io.Writer, format string, m *value.StructuredMap) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}
	for _, e := range m.Entries() {
		data, err := json.Marshal(value.JSONValue(e.Value))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", e.Ident, data)
	}
	return nil
}
