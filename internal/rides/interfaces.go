package rides

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hiveride/dispatch/internal/dispatch"
	"github.com/hiveride/dispatch/internal/presence"
)

// RepositoryInterface defines the canonical-store operations the service uses.
type RepositoryInterface interface {
	Create(ctx context.Context, ride *RideRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*RideRequest, error)
	SetAccepted(ctx context.Context, requestID, driverID uuid.UUID) error
	SetStatus(ctx context.Context, requestID uuid.UUID, status string) error
	SetEta(ctx context.Context, requestID uuid.UUID, etaMinutes int) error
	Transition(ctx context.Context, requestID uuid.UUID, from, to RideStatus) (bool, error)
	SetFinalFare(ctx context.Context, requestID uuid.UUID, finalFare float64) error
	GetDisplayName(ctx context.Context, userID uuid.UUID) (string, error)
	GetPhone(ctx context.Context, userID uuid.UUID) (string, error)
}

// DispatchEngine is the slice of the engine the admission service drives.
type DispatchEngine interface {
	Admit(ctx context.Context, details *dispatch.RideDetails, candidates []uuid.UUID) error
	Respond(ctx context.Context, details *dispatch.RideDetails, driverID uuid.UUID, verdict dispatch.Verdict, etaMinutes int) (bool, error)
	Cancel(ctx context.Context, requestID uuid.UUID) (bool, error)
}

// DispatchStore covers the store operations the service calls directly.
type DispatchStore interface {
	InitDispatch(ctx context.Context, requestID uuid.UUID) error
}

// StatusProvider serves the ephemeral status projection.
type StatusProvider interface {
	Status(ctx context.Context, requestID uuid.UUID) (*dispatch.StatusView, error)
}

// DriverFinder searches the presence index for live candidates.
type DriverFinder interface {
	Nearest(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]presence.NearbyDriver, error)
}

// TripNotifier sends the passenger pushes for trip progress and payment.
type TripNotifier interface {
	DriverArrived(ctx context.Context, passengerID, requestID uuid.UUID) error
	TripStarted(ctx context.Context, passengerID, requestID uuid.UUID) error
	TripCompleted(ctx context.Context, passengerID, requestID uuid.UUID, finalFare float64, completedAt time.Time) error
	PaymentRequest(ctx context.Context, passengerID, requestID uuid.UUID, invoice string, amount float64, currency, payeeAccount, driverName string) error
}
