package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"storebridge/internal/config"
	"storebridge/internal/domain"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Sync Runs"

// Exporter writes sync run history to an Excel workbook for operators
// who want run data outside the API.
type Exporter struct {
	runs   domain.RunStore
	cfg    config.ExportConfig
	logger *zerolog.Logger
}

func NewExporter(runs domain.RunStore, cfg config.ExportConfig, logger *zerolog.Logger) *Exporter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Exporter{runs: runs, cfg: cfg, logger: logger}
}

// ExportRuns writes the most recent runs for a tenant (all tenants when
// tenantID is empty) and returns the file path.
func (e *Exporter) ExportRuns(ctx context.Context, tenantID string, limit int) (string, error) {
	if err := os.MkdirAll(e.cfg.Path, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	if limit <= 0 {
		limit = 200
	}
	runs, err := e.runs.GetSyncRuns(ctx, tenantID, limit)
	if err != nil {
		return "", fmt.Errorf("load runs: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"Run ID", "Tenant", "Status", "Started", "Finished",
		"Batches", "Forwarded", "Failed Batch", "Error",
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, run := range runs {
		row := i + 2
		finished := ""
		if run.FinishedAt != nil {
			finished = run.FinishedAt.Format("02.01.2006 15:04:05")
		}
		failedBatch := ""
		if run.FailedBatch > 0 {
			failedBatch = fmt.Sprintf("%d", run.FailedBatch)
		}

		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), run.ID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), run.TenantID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), run.Status)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), run.StartedAt.Format("02.01.2006 15:04:05"))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), finished)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), run.Batches)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), run.TotalForwarded)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), failedBatch)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), run.Error)

		if styleID, err := statusStyle(f, run.Status); err == nil {
			cell := fmt.Sprintf("C%d", row)
			_ = f.SetCellStyle(sheetName, cell, cell, styleID)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 38)
	_ = f.SetColWidth(sheetName, "B", "C", 15)
	_ = f.SetColWidth(sheetName, "D", "E", 20)
	_ = f.SetColWidth(sheetName, "F", "H", 12)
	_ = f.SetColWidth(sheetName, "I", "I", 40)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("sync_runs_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(e.cfg.Path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("runs", len(runs)).Msg("report: export written")
	return filePath, nil
}

func statusStyle(f *excelize.File, status string) (int, error) {
	color := "#FFFFFF"
	switch status {
	case "success":
		color = "#C6EFCE"
	case "partial":
		color = "#FFEB9C"
	case "failed":
		color = "#FFC7CE"
	}
	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
	})
}
