package events

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSubscribeAuditLog(t *testing.T) {
	bus := NewEventBus()
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	SubscribeAuditLog(bus, &logger)

	err := bus.PublishJSON(EventBookingConfirmed, BookingEventPayload{
		BookingID:        "bkg-1",
		BookingReference: "BKG-2026-00001",
		Status:           "CONFIRMED",
		ChangedBy:        "staff-1",
		ChangedByRole:    "manager",
		StartDate:        time.Now(),
		EndDate:          time.Now().AddDate(0, 0, 3),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	line := buf.String()
	for _, want := range []string{"booking event", EventBookingConfirmed, "bkg-1", "BKG-2026-00001", "CONFIRMED", "staff-1"} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line missing %q: %s", want, line)
		}
	}
}

func TestSubscribeAuditLogCoversAllEventTypes(t *testing.T) {
	bus := NewEventBus()
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	SubscribeAuditLog(bus, &logger)

	types := []string{
		EventBookingCreated, EventBookingUpdated, EventBookingDeleted,
		EventBookingConfirmed, EventBookingCancelled, EventBookingExpired,
		EventBookingConverted,
	}
	for _, eventType := range types {
		if err := bus.PublishJSON(eventType, BookingEventPayload{BookingID: "bkg-2"}); err != nil {
			t.Fatalf("publish %s: %v", eventType, err)
		}
	}

	lines := strings.Count(strings.TrimSpace(buf.String()), "\n") + 1
	if lines != len(types) {
		t.Fatalf("expected %d log lines, got %d", len(types), lines)
	}
}

func TestSubscribeMetricsRegistersLifecycleHandlers(t *testing.T) {
	bus := NewEventBus()
	SubscribeMetrics(bus)

	for _, eventType := range []string{
		EventBookingCreated, EventBookingConfirmed, EventBookingCancelled,
		EventBookingConverted, EventBookingExpired,
	} {
		if len(bus.subscribers[eventType]) != 1 {
			t.Fatalf("expected a handler for %s", eventType)
		}
	}

	// Publishing through the wired handlers must not panic or error.
	if err := bus.PublishJSON(EventBookingConfirmed, BookingEventPayload{BookingID: "bkg-3", Status: "CONFIRMED"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
}
