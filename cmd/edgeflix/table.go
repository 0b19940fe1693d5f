package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/dropDatabas3/edgeflix/internal/http/handlers"
)

func renderTable(headers []string, rows [][]string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// renderReport arma la tabla de réplicas: primero distribuidas y después fallidas.
func renderReport(v handlers.ReportView) string {
	rows := make([][]string, 0, len(v.Distributed)+len(v.Failed))
	for _, r := range v.Distributed {
		rows = append(rows, []string{string(r.Format), string(r.Resolution), r.State.String(), strings.Join(r.Targets, ","), ""})
	}
	for _, r := range v.Failed {
		rows = append(rows, []string{string(r.Format), string(r.Resolution), r.State.String(), string(r.FailedStage), r.Error})
	}
	summary := fmt.Sprintf("movie %s: %d distributed, %d failed", v.MovieID, len(v.Distributed), len(v.Failed))
	return summary + "\n" + renderTable([]string{"Format", "Resolution", "State", "Targets/Stage", "Error"}, rows)
}
