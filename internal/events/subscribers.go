package events

import (
	"encoding/json"

	"fleetdesk/internal/metrics"

	"github.com/rs/zerolog"
)

// SubscribeMetrics feeds the booking lifecycle counters from bus events.
// Wired once at startup in each binary that owns a bus.
func SubscribeMetrics(bus *EventBus) {
	bus.Subscribe(EventBookingCreated, func(event *Event) error {
		metrics.IncBookingCreated()
		return nil
	})

	transition := func(event *Event) error {
		var payload BookingEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		if payload.Status != "" {
			metrics.IncBookingTransition(payload.Status)
		}
		return nil
	}
	bus.Subscribe(EventBookingConfirmed, transition)
	bus.Subscribe(EventBookingCancelled, transition)
	bus.Subscribe(EventBookingConverted, transition)

	bus.Subscribe(EventBookingExpired, func(event *Event) error {
		metrics.AddBookingsExpired(1)
		return nil
	})
}

// SubscribeAuditLog writes one structured log line per lifecycle event,
// giving every deployment an audit trail even when no external register
// is configured.
func SubscribeAuditLog(bus *EventBus, logger *zerolog.Logger) {
	handler := func(event *Event) error {
		var payload BookingEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", event.Type).Msg("event bus: decode payload")
			return nil
		}

		logger.Info().
			Str("event", event.Type).
			Str("booking_id", payload.BookingID).
			Str("reference", payload.BookingReference).
			Str("status", payload.Status).
			Str("changed_by", payload.ChangedBy).
			Str("changed_by_role", payload.ChangedByRole).
			Msg("booking event")
		return nil
	}

	for _, eventType := range []string{
		EventBookingCreated,
		EventBookingUpdated,
		EventBookingDeleted,
		EventBookingConfirmed,
		EventBookingCancelled,
		EventBookingExpired,
		EventBookingConverted,
	} {
		bus.Subscribe(eventType, handler)
	}
}
