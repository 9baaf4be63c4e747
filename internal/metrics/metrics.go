package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetdesk",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fleetdesk",
			Name:      "bookings_created_total",
			Help:      "Bookings created successfully.",
		},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fleetdesk",
			Name:      "booking_conflicts_total",
			Help:      "Booking attempts rejected due to overlapping reservations.",
		},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetdesk",
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions by target status.",
		},
		[]string{"status"},
	)

	bookingsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fleetdesk",
			Name:      "bookings_expired_total",
			Help:      "Pending bookings expired by the reaper.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests)
		prometheus.MustRegister(bookingsCreated)
		prometheus.MustRegister(bookingConflicts)
		prometheus.MustRegister(bookingTransitions)
		prometheus.MustRegister(bookingsExpired)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncBookingCreated increments the created bookings counter.
func IncBookingCreated() {
	bookingsCreated.Inc()
}

// IncBookingConflict increments the overlap conflict counter.
func IncBookingConflict() {
	bookingConflicts.Inc()
}

// IncBookingTransition increments the transition counter for a target status.
func IncBookingTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

// AddBookingsExpired adds to the expired bookings counter.
func AddBookingsExpired(n int) {
	bookingsExpired.Add(float64(n))
}
