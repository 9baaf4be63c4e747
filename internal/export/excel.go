package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"fleetdesk/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const bookingsSheet = "Bookings"

// ExcelExporter renders booking reports as XLSX, either streamed to a writer
// (the HTTP report endpoint) or saved under the exports directory.
type ExcelExporter struct {
	exportsPath string
	logger      *zerolog.Logger
}

func NewExcelExporter(exportsPath string, logger *zerolog.Logger) *ExcelExporter {
	return &ExcelExporter{exportsPath: exportsPath, logger: logger}
}

// WriteBookingsReport streams the report workbook to w.
func (e *ExcelExporter) WriteBookingsReport(w io.Writer, bookings []*models.Booking) error {
	f, err := e.buildBookingsReport(bookings)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %v", err)
	}
	return nil
}

// SaveBookingsReport writes the report into the exports directory and returns
// the file path.
func (e *ExcelExporter) SaveBookingsReport(bookings []*models.Booking) (string, error) {
	if err := os.MkdirAll(e.exportsPath, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	f, err := e.buildBookingsReport(bookings)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := fmt.Sprintf("bookings_export_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(e.exportsPath, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("bookings excel file created")
	return filePath, nil
}

func (e *ExcelExporter) buildBookingsReport(bookings []*models.Booking) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"Reference", "Customer", "Car", "Start", "End", "Pickup", "Dropoff",
		"Status", "Daily Rate", "Total", "Contract", "Created At",
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(bookingsSheet, cell, header)
		_ = f.SetCellStyle(bookingsSheet, cell, cell, headerStyle)
	}

	for i, b := range bookings {
		row := i + 2
		values := []interface{}{
			b.BookingReference,
			b.CustomerID,
			b.CarID,
			b.StartDate.Format("2006-01-02"),
			b.EndDate.Format("2006-01-02"),
			b.PickupLocation,
			b.DropoffLocation,
			b.Status,
			float64(b.DailyRateCents) / 100,
			float64(b.TotalCents) / 100,
			b.ContractID,
			b.CreatedAt.Format("02.01.2006 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(bookingsSheet, cell, v)
		}

		if styleID, err := e.statusStyle(f, b.Status); err == nil {
			statusCell, _ := excelize.CoordinatesToCellName(8, row)
			_ = f.SetCellStyle(bookingsSheet, statusCell, statusCell, styleID)
		}
	}

	_ = f.SetColWidth(bookingsSheet, "A", "A", 18)
	_ = f.SetColWidth(bookingsSheet, "B", "C", 14)
	_ = f.SetColWidth(bookingsSheet, "D", "E", 12)
	_ = f.SetColWidth(bookingsSheet, "F", "G", 16)
	_ = f.SetColWidth(bookingsSheet, "H", "H", 12)
	_ = f.SetColWidth(bookingsSheet, "I", "J", 12)
	_ = f.SetColWidth(bookingsSheet, "K", "K", 14)
	_ = f.SetColWidth(bookingsSheet, "L", "L", 18)

	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

func (e *ExcelExporter) statusStyle(f *excelize.File, status string) (int, error) {
	color := "#FFFFFF"
	switch status {
	case models.StatusConfirmed, models.StatusConverted:
		color = "#C6EFCE"
	case models.StatusPending:
		color = "#FFEB9C"
	case models.StatusCancelled, models.StatusExpired:
		color = "#FFC7CE"
	}
	return f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
}
