package worker

import (
	"context"

	"fleetdesk/internal/events"

	"github.com/rs/zerolog"
)

// LogSink records drained events in the application log. It stands in for
// the Sheets register when none is configured, so the audit queue always
// has a consumer.
type LogSink struct {
	logger *zerolog.Logger
}

func NewLogSink(logger *zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) AppendEvent(ctx context.Context, eventType string, payload events.BookingEventPayload) error {
	s.logger.Info().
		Str("event", eventType).
		Str("booking_id", payload.BookingID).
		Str("reference", payload.BookingReference).
		Str("status", payload.Status).
		Msg("audit event")
	return nil
}
