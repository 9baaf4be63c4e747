package worker

import (
	"context"
	"time"

	"fleetdesk/internal/database"
	"fleetdesk/internal/models"

	"github.com/rs/zerolog"
)

// ScheduleSink rewrites the externally shared fleet schedule.
type ScheduleSink interface {
	UpdateScheduleSheet(ctx context.Context, start, end time.Time, cars []*models.Car, bookings []*models.Booking) error
}

// ScheduleExporter periodically rewrites the fleet schedule spreadsheet from
// the current booking state. The export is a full overwrite, so a missed tick
// only delays freshness.
type ScheduleExporter struct {
	db          *database.DB
	sink        ScheduleSink
	interval    time.Duration
	horizonDays int
	logger      *zerolog.Logger
}

func NewScheduleExporter(db *database.DB, sink ScheduleSink, interval time.Duration, horizonDays int, logger *zerolog.Logger) *ScheduleExporter {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if horizonDays <= 0 {
		horizonDays = 14
	}
	return &ScheduleExporter{
		db:          db,
		sink:        sink,
		interval:    interval,
		horizonDays: horizonDays,
		logger:      logger,
	}
}

// Start runs the export loop until ctx is done.
func (e *ScheduleExporter) Start(ctx context.Context) {
	e.logger.Info().Dur("interval", e.interval).Msg("schedule exporter started")
	defer e.logger.Info().Msg("schedule exporter stopped")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.ExportOnce(ctx); err != nil {
				e.logger.Error().Err(err).Msg("schedule export failed")
			}
		}
	}
}

// ExportOnce pushes the current schedule window to the sink.
func (e *ScheduleExporter) ExportOnce(ctx context.Context) error {
	cars, err := e.db.GetActiveCars(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	end := start.AddDate(0, 0, e.horizonDays)
	bookings, err := e.db.GetUpcomingBookings(ctx, start, end, "")
	if err != nil {
		return err
	}

	return e.sink.UpdateScheduleSheet(ctx, start, end, cars, bookings)
}
