package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"fleetdesk/internal/events"
	"fleetdesk/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsService exports the booking register and the fleet schedule to two
// shared Google spreadsheets. The register is append-only; the schedule sheet
// is rewritten wholesale on every export.
type SheetsService struct {
	service         *sheets.Service
	bookingsSheetID string
	scheduleSheetID string
}

func NewSheetsService(credentialsFile, bookingsSheetID, scheduleSheetID string) (*SheetsService, error) {
	ctx := context.Background()

	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	return &SheetsService{
		service:         srv,
		bookingsSheetID: bookingsSheetID,
		scheduleSheetID: scheduleSheetID,
	}, nil
}

// TestConnection проверяет подключение к таблице
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.bookingsSheetID, "Events!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// GetServiceAccountEmail возвращает email сервисного аккаунта
func (s *SheetsService) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}

	return creds.ClientEmail, nil
}

// AppendEvent appends one booking lifecycle event to the register sheet.
func (s *SheetsService) AppendEvent(ctx context.Context, eventType string, p events.BookingEventPayload) error {
	row := []interface{}{
		time.Now().Format("2006-01-02 15:04:05"),
		eventType,
		p.BookingID,
		p.BookingReference,
		p.CustomerID,
		p.CarID,
		p.Status,
		p.StartDate.Format("2006-01-02"),
		p.EndDate.Format("2006-01-02"),
		p.ContractID,
		p.Reason,
		p.ChangedBy,
		p.ChangedByRole,
	}

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{row},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.bookingsSheetID, "Events!A:A", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// RegisterContract appends one contract row to the register sheet.
func (s *SheetsService) RegisterContract(ctx context.Context, contractID string, req models.ContractRequest) error {
	row := []interface{}{
		time.Now().Format("2006-01-02 15:04:05"),
		contractID,
		req.BookingID,
		req.BookingReference,
		req.CustomerID,
		req.CarID,
		req.StartDate.Format("2006-01-02"),
		req.EndDate.Format("2006-01-02"),
		float64(req.DailyRateCents) / 100,
		float64(req.TotalCents) / 100,
		req.PickupLocation,
		req.DropoffLocation,
	}

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{row},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.bookingsSheetID, "Contracts!A:A", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// UpdateScheduleSheet rewrites the fleet schedule grid: one row per car, one
// column per day, booking references in the occupied cells.
func (s *SheetsService) UpdateScheduleSheet(ctx context.Context, start, end time.Time, cars []*models.Car, bookings []*models.Booking) error {
	days := int(end.Sub(start).Hours() / 24)
	if days <= 0 {
		return fmt.Errorf("invalid date range: start %s, end %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	clearRange := "Schedule!A:ZZ"
	if _, err := s.service.Spreadsheets.Values.Clear(s.scheduleSheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to clear schedule sheet: %v", err)
	}

	var data [][]interface{}

	headerRow := []interface{}{"Car"}
	day := start
	for i := 0; i < days; i++ {
		headerRow = append(headerRow, day.Format("02.01"))
		day = day.AddDate(0, 0, 1)
	}
	data = append(data, headerRow)

	byCar := make(map[string][]*models.Booking)
	for _, b := range bookings {
		byCar[b.CarID] = append(byCar[b.CarID], b)
	}

	for _, car := range cars {
		row := []interface{}{fmt.Sprintf("%s %s (%s)", car.Make, car.Model, car.Plate)}
		day = start
		for i := 0; i < days; i++ {
			cell := ""
			for _, b := range byCar[car.ID] {
				if !day.Before(startOfDay(b.StartDate)) && !day.After(startOfDay(b.EndDate)) {
					mark := "?"
					switch b.Status {
					case models.StatusConfirmed, models.StatusConverted:
						mark = "✅"
					case models.StatusPending:
						mark = "⏳"
					}
					cell = fmt.Sprintf("%s %s", mark, b.BookingReference)
					break
				}
			}
			row = append(row, cell)
			day = day.AddDate(0, 0, 1)
		}
		data = append(data, row)
	}

	if len(cars) == 0 {
		data = append(data, []interface{}{"No active cars"})
	}

	valueRange := &sheets.ValueRange{Values: data}
	_, err := s.service.Spreadsheets.Values.Update(s.scheduleSheetID, "Schedule!A1", valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("unable to update schedule sheet: %v", err)
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
