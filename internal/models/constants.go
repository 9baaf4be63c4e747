package models

// Booking statuses. Transitions between them are owned by the service layer
// state machine; the database stores them verbatim.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
	StatusExpired   = "EXPIRED"
	StatusConverted = "CONVERTED"
)

// ContractStatusActive marks a locally recorded contract window that still
// blocks the car for overlapping bookings.
const (
	ContractStatusActive = "active"
	ContractStatusClosed = "closed"
)

// ReferencePrefix is the leading token of every booking reference.
const ReferencePrefix = "BKG"

const (
	// DefaultHoldHours is how long a PENDING booking is held before it may expire.
	DefaultHoldHours = 48

	// MaxRentalDays caps the booking window length.
	MaxRentalDays = 365

	// DefaultCancellationReason is recorded when a caller cancels without one.
	DefaultCancellationReason = "No reason provided"

	// DefaultPageLimit applies when a List call omits the limit.
	DefaultPageLimit = 20

	// MaxPageLimit bounds a single listing page.
	MaxPageLimit = 100

	// DefaultCacheTTLSeconds is the cache port TTL for booking reads.
	DefaultCacheTTLSeconds = 5 * 60

	// WorkerQueueSize is the in-memory buffer of the audit export worker.
	WorkerQueueSize = 1000
)
