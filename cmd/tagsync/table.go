package main

import (
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/tstromberg/tagsync/pkg/batch"
)

func newTable(headers ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row(headers))
	return tw
}

func renderSummary(s *batch.Summary) string {
	tw := newTable("Images", "Succeeded", "Fast path", "Failed", "Canceled", "Elapsed")
	tw.AppendRow(table.Row{
		strconv.Itoa(s.Total),
		strconv.Itoa(s.Succeeded),
		strconv.Itoa(s.FastPath),
		strconv.Itoa(s.Failed),
		strconv.Itoa(s.Canceled),
		s.Elapsed.Round(time.Millisecond).String(),
	})
	configs := make([]table.ColumnConfig, 0, 6)
	for i := 1; i <= 6; i++ {
		configs = append(configs, table.ColumnConfig{Number: i, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func renderFailures(fs []batch.Failure) string {
	tw := newTable("Image", "Stage", "Error")
	for _, f := range fs {
		tw.AppendRow(table.Row{f.Path, string(f.Stage), f.Err.Error()})
	}
	return tw.Render()
}
