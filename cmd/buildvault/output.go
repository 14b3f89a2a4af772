package main

import (
	"encoding/json"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// column describes one report table column. Numeric columns align right and
// never wrap; text columns wrap so long insights and URLs stay readable.
type column struct {
	title   string
	numeric bool
}

func textCol(title string) column    { return column{title: title} }
func numericCol(title string) column { return column{title: title, numeric: true} }

const textWrapWidth = 72

func renderTable(cols []column, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		header[i] = c.title
		cfg := table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft, WidthMax: textWrapWidth}
		if c.numeric {
			cfg.Align = text.AlignRight
			cfg.WidthMax = 0
		}
		configs[i] = cfg
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

// writeJSON encodes v for machine consumers. Link URLs carry query strings,
// so HTML escaping stays off.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
