package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// Sheet names of the run workbook
const (
	StatsSheet = "Generations"
	BestSheet  = "Best Strategy"
)

var statsHeader = []interface{}{"Generation", "Evaluations", "Failures", "Avg", "Std", "Min", "Max"}

// WriteWorkbook saves the run as an .xlsx file with one sheet of generation
// statistics and one with the best solution
func WriteWorkbook(path string, record *evolution.BestSolutionRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), StatsSheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(BestSheet); err != nil {
		return err
	}

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
		},
	})
	if err != nil {
		return err
	}
	fitnessStyle, err := fx.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return err
	}

	if err := writeStatsSheet(fx, record, headerStyle, fitnessStyle); err != nil {
		return err
	}
	if err := writeBestSheet(fx, record, headerStyle); err != nil {
		return err
	}

	if err := fx.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeStatsSheet(fx *excelize.File, record *evolution.BestSolutionRecord, headerStyle, fitnessStyle int) error {
	if err := fx.SetSheetRow(StatsSheet, "A1", &statsHeader); err != nil {
		return err
	}
	if err := fx.SetCellStyle(StatsSheet, "A1", "G1", headerStyle); err != nil {
		return err
	}

	for i, s := range record.GenerationStats {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{s.Generation, s.Evaluations, s.Failures, s.Avg, s.Std, s.Min, s.Max}
		if err := fx.SetSheetRow(StatsSheet, cell, &row); err != nil {
			return err
		}
	}

	if n := len(record.GenerationStats); n > 0 {
		last := fmt.Sprintf("G%d", n+1)
		if err := fx.SetCellStyle(StatsSheet, "D2", last, fitnessStyle); err != nil {
			return err
		}
	}

	return fx.SetColWidth(StatsSheet, "A", "G", 13)
}

func writeBestSheet(fx *excelize.File, record *evolution.BestSolutionRecord, headerStyle int) error {
	rows := [][]interface{}{
		{"Field", "Value"},
		{"Run ID", record.RunID},
		{"Schema version", record.SchemaVersion},
		{"Fitness", record.Fitness},
		{"Found in generation", record.FoundGeneration},
		{"Generations", record.Generations},
		{"Population size", record.PopSize},
		{"RSI threshold", record.DecodedStrategy.RSIThreshold},
		{"MACD fast", record.DecodedStrategy.MACDFast},
		{"MACD slow", record.DecodedStrategy.MACDSlow},
		{"Hold period", record.DecodedStrategy.HoldPeriod},
		{"Completed at", record.CompletedAt.UTC().Format("2006-01-02 15:04:05")},
	}
	for i, g := range record.Genes {
		rows = append(rows, []interface{}{fmt.Sprintf("Gene %d", i), g})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(BestSheet, cell, &row); err != nil {
			return err
		}
	}
	if err := fx.SetCellStyle(BestSheet, "A1", "B1", headerStyle); err != nil {
		return err
	}
	return fx.SetColWidth(BestSheet, "A", "B", 24)
}
