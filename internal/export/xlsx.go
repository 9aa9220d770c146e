package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/room-booking/internal/application"
)

// maxSheetName is the Excel limit on sheet title length.
const maxSheetName = 31

var xlsxHeader = []any{"Date", "Weekday", "Start", "End", "Title", "Owner"}

// WriteXLSX writes a workbook with a single sheet named after room, a header row,
// and one row per occurrence in the given order.
func WriteXLSX(w io.Writer, room application.Room, occurrences []application.Occurrence) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(room)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("export: name sheet: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &xlsxHeader); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: create header style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "F1", style); err != nil {
		return fmt.Errorf("export: apply header style: %w", err)
	}

	for i, occurrence := range occurrences {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: row %d: %w", i+2, err)
		}
		booking := occurrence.Booking
		row := []any{
			occurrence.Date.String(),
			occurrence.Date.Weekday().String(),
			booking.StartTime.String(),
			booking.EndTime.String(),
			booking.Title,
			booking.UserID,
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("export: write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "B", 12); err != nil {
		return fmt.Errorf("export: set column width: %w", err)
	}
	if err := f.SetColWidth(sheet, "E", "F", 28); err != nil {
		return fmt.Errorf("export: set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

// SheetName derives a valid worksheet title from the room name.
func SheetName(room application.Room) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(room.Name))
	name = strings.Trim(name, "'")
	if name == "" {
		name = "Room"
	}
	if runes := []rune(name); len(runes) > maxSheetName {
		name = string(runes[:maxSheetName])
	}
	return name
}
