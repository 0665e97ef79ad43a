package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StoreInterface defines the ephemeral dispatch-state operations the engine,
// status reader and sweeper rely on.
type StoreInterface interface {
	InitDispatch(ctx context.Context, requestID uuid.UUID) error
	SetStatus(ctx context.Context, requestID uuid.UUID, status string, ttl time.Duration) error
	GetStatus(ctx context.Context, requestID uuid.UUID) (string, error)
	SetCurrentOfferee(ctx context.Context, requestID, driverID uuid.UUID, expected string) (bool, error)
	GetCurrentOfferee(ctx context.Context, requestID uuid.UUID) (string, error)
	ClearCurrentOfferee(ctx context.Context, requestID, driverID uuid.UUID) (bool, error)
	SetAssignedDriver(ctx context.Context, requestID, driverID uuid.UUID) error
	GetAssignedDriver(ctx context.Context, requestID uuid.UUID) (string, error)
	SetEta(ctx context.Context, requestID uuid.UUID, minutes int) error
	GetEta(ctx context.Context, requestID uuid.UUID) (int, bool, error)
	AppendResponse(ctx context.Context, requestID uuid.UUID, entry ResponseEntry) error
	Responses(ctx context.Context, requestID uuid.UUID) ([]ResponseEntry, error)
	HasResponded(ctx context.Context, requestID, driverID uuid.UUID) (bool, error)
	RecordOffer(ctx context.Context, requestID, driverID uuid.UUID) error
	LastOffer(ctx context.Context, requestID uuid.UUID) (*OfferRecord, error)
	DeleteDispatchEphemera(ctx context.Context, requestID uuid.UUID) error
	RemovePending(ctx context.Context, requestID uuid.UUID) error
	PendingRequests(ctx context.Context) ([]uuid.UUID, error)
}

// QueueInterface defines the candidate queue operations.
type QueueInterface interface {
	Seed(ctx context.Context, requestID uuid.UUID, drivers []uuid.UUID) (int, error)
	PopNext(ctx context.Context, requestID uuid.UUID) (uuid.UUID, bool, error)
	Drop(ctx context.Context, requestID uuid.UUID) error
}

// OfferTimers schedules the per-offer acceptance window.
type OfferTimers interface {
	Arm(requestID, driverID uuid.UUID, d time.Duration, fire func())
	Disarm(requestID uuid.UUID)
}

// Notifier publishes the engine's push messages. Implemented by the
// notification dispatcher.
type Notifier interface {
	RideRequest(ctx context.Context, driverID uuid.UUID, details *RideDetails) error
	RideRequestExpired(ctx context.Context, driverID, requestID uuid.UUID) error
	RideAccepted(ctx context.Context, passengerID, requestID, driverID uuid.UUID, etaMinutes int) error
	NoDriversAvailable(ctx context.Context, passengerID, requestID uuid.UUID) error
}

// CanonicalStore applies terminal dispatch transitions to the canonical ride
// store. Updates must be idempotent.
type CanonicalStore interface {
	SetAccepted(ctx context.Context, requestID, driverID uuid.UUID) error
	SetStatus(ctx context.Context, requestID uuid.UUID, status string) error
}

// PresenceChecker answers whether a driver's presence is still fresh.
type PresenceChecker interface {
	IsFresh(ctx context.Context, driverID uuid.UUID) (bool, error)
}

// DetailsLoader rebuilds the offer payload for a request from the canonical
// store. Used by the sweeper, which has no in-memory details to thread.
type DetailsLoader interface {
	LoadDetails(ctx context.Context, requestID uuid.UUID) (*RideDetails, error)
}

// EventPublisher emits advisory lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data interface{})
}
