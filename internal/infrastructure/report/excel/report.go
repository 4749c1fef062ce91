// Package excel renders search audit events as an .xlsx workbook.
package excel

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

const (
	SheetName   = "Searches"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var header = []any{
	"ID", "Created at", "Endpoint", "Query", "Strategy", "Complexity",
	"Modes used", "Confidence", "Web results", "Knowledge sources", "Duration (ms)", "Error",
}

var columnWidths = map[string]float64{
	"A": 38, "B": 22, "C": 14, "D": 60, "E": 16, "F": 12,
	"G": 18, "H": 12, "I": 12, "J": 18, "K": 14, "L": 40,
}

// WriteSearchEvents writes one row per event after a bold header row.
func WriteSearchEvents(w io.Writer, events []domain.SearchEvent) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "L1", bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}
	for col, width := range columnWidths {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	for i, ev := range events {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := eventRow(ev)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func eventRow(ev domain.SearchEvent) []any {
	modes := make([]string, 0, len(ev.ModesUsed))
	for _, m := range ev.ModesUsed {
		modes = append(modes, string(m))
	}
	return []any{
		ev.ID,
		ev.CreatedAt.UTC().Format(time.RFC3339),
		ev.Endpoint,
		ev.Query,
		string(ev.Strategy),
		string(ev.Complexity),
		strings.Join(modes, ","),
		ev.Confidence,
		ev.WebResultCount,
		ev.KnowledgeSourceCount,
		ev.DurationMS,
		ev.Error,
	}
}
