package worker

import (
	"context"
	"time"

	"fleetdesk/internal/models"

	"github.com/rs/zerolog"
)

// BookingExpirer is the slice of the booking service the reaper needs.
type BookingExpirer interface {
	ExpireDueBookings(ctx context.Context) ([]*models.Booking, error)
}

// Reaper periodically flips PENDING bookings past their hold deadline to
// EXPIRED. The expiring view is a pure read; this sweep is the only writer
// of the EXPIRED status.
type Reaper struct {
	svc      BookingExpirer
	interval time.Duration
	logger   *zerolog.Logger
}

func NewReaper(svc BookingExpirer, interval time.Duration, logger *zerolog.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{svc: svc, interval: interval, logger: logger}
}

// Start runs the reaper loop until ctx is done.
func (r *Reaper) Start(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Msg("expiry reaper started")
	defer r.logger.Info().Msg("expiry reaper stopped")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single expiry sweep.
func (r *Reaper) RunOnce(ctx context.Context) {
	expired, err := r.svc.ExpireDueBookings(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	if len(expired) > 0 {
		r.logger.Info().Int("count", len(expired)).Msg("expired pending bookings")
	}
}
