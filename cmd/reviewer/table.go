package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/tjfontaine/youtube-reviewer/internal/models"
)

// column describes one table column. WidthMax of zero leaves it unwrapped.
type column struct {
	Title    string
	Align    text.Align
	WidthMax int
}

var keyConceptColumns = []column{
	{Title: "Time", Align: text.AlignRight},
	{Title: "Term", Align: text.AlignLeft, WidthMax: 24},
	{Title: "Definition", Align: text.AlignLeft, WidthMax: 60},
	{Title: "Relevance", Align: text.AlignLeft, WidthMax: 48},
}

func renderKeyConcepts(resp *models.KeyConceptsResponse) string {
	rows := make([][]string, 0, len(resp.KeyConcepts))
	for _, c := range resp.KeyConcepts {
		rows = append(rows, []string{c.Timestamp, c.Term, c.Definition, c.Relevance})
	}
	return renderTable(keyConceptColumns, rows)
}

// renderTable lays rows out under cols. Short rows are padded with empty
// cells and extra cells are dropped. Header titles keep their case.
func renderTable(cols []column, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, col := range cols {
		header[i] = col.Title
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       col.Align,
			AlignHeader: text.AlignLeft,
			WidthMax:    col.WidthMax,
		}
		if col.WidthMax > 0 {
			configs[i].WidthMaxEnforcer = text.WrapSoft
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	return tw.Render()
}
