package recovery

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// BuildSkippedReport renders the skipped-line detail into an xlsx workbook
// for operators, one summary sheet and one detail sheet.
func (c *Controller) BuildSkippedReport(ctx context.Context, reasonCategory string, limit int) (*bytes.Buffer, error) {
	groups, err := c.SkippedSummary(ctx)
	if err != nil {
		return nil, err
	}
	lines, err := c.SkippedLines(ctx, reasonCategory, limit)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	f.SetSheetName(f.GetSheetName(0), summarySheet)
	summaryHeaders := []interface{}{"Reason Category", "Record Type", "Lines", "Files", "Oldest", "Newest"}
	if err := f.SetSheetRow(summarySheet, "A1", &summaryHeaders); err != nil {
		return nil, fmt.Errorf("failed to write report summary header: %w", err)
	}
	for i, g := range groups {
		row := []interface{}{
			g.ReasonCategory, g.RecordType, g.LineCount, g.FileCount,
			formatReportTime(g.OldestSkipped), formatReportTime(g.NewestSkipped),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write report summary row: %w", err)
		}
	}

	const detailSheet = "Skipped Lines"
	if _, err := f.NewSheet(detailSheet); err != nil {
		return nil, fmt.Errorf("failed to create report detail sheet: %w", err)
	}
	detailHeaders := []interface{}{"File", "Line #", "Record Type", "Skip Reason", "Line Length", "Skipped At"}
	if err := f.SetSheetRow(detailSheet, "A1", &detailHeaders); err != nil {
		return nil, fmt.Errorf("failed to write report detail header: %w", err)
	}
	for i, l := range lines {
		row := []interface{}{
			l.Filename, l.LineNumber, l.RecordType, l.SkipReason, l.LineLength,
			formatReportTime(l.ProcessedAt),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(detailSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write report detail row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to render skipped report workbook: %w", err)
	}
	return &buf, nil
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
