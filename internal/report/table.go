// Package report renders a finished run for humans: a console table of the
// per-generation statistics and an Excel workbook of the same data.
package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// RenderStats writes the generation statistics table (gen, nevals, avg, std,
// min, max) followed by the best solution summary
func RenderStats(w io.Writer, record *evolution.BestSolutionRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("EVOLUTION STATISTICS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"gen", "nevals", "failures", "avg", "std", "min", "max"})

	for _, s := range record.GenerationStats {
		t.AppendRow(table.Row{
			s.Generation,
			s.Evaluations,
			s.Failures,
			fmt.Sprintf("%.4f", s.Avg),
			fmt.Sprintf("%.4f", s.Std),
			fmt.Sprintf("%.4f", s.Min),
			fmt.Sprintf("%.4f", s.Max),
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()

	RenderBest(w, record)
}

// RenderBest writes the best solution as a two-column table
func RenderBest(w io.Writer, record *evolution.BestSolutionRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("BEST STRATEGY")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"Run ID", record.RunID},
		{"Fitness", fmt.Sprintf("%.6f", record.Fitness)},
		{"Found in generation", record.FoundGeneration},
		{"RSI threshold", record.DecodedStrategy.RSIThreshold},
		{"MACD fast", record.DecodedStrategy.MACDFast},
		{"MACD slow", record.DecodedStrategy.MACDSlow},
		{"Hold period", record.DecodedStrategy.HoldPeriod},
		{"Genes", fmt.Sprintf("%.4f", record.Genes)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, Align: text.AlignLeft},
	})
	t.Render()
}
