package rides

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hiveride/dispatch/internal/dispatch"
	"github.com/hiveride/dispatch/pkg/common"
)

// Repository handles database operations for ride requests
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new rides repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const rideColumns = `
	id, passenger_id, driver_id, status, pickup_latitude, pickup_longitude,
	pickup_address, dropoff_latitude, dropoff_longitude, dropoff_address,
	distance_km, duration_minutes, proposed_fare, final_fare, priority,
	eta_minutes, requested_at, accepted_at, arrived_at, started_at,
	completed_at, cancelled_at, created_at, updated_at`

func scanRide(row pgx.Row) (*RideRequest, error) {
	ride := &RideRequest{}
	err := row.Scan(
		&ride.ID,
		&ride.PassengerID,
		&ride.DriverID,
		&ride.Status,
		&ride.PickupLatitude,
		&ride.PickupLongitude,
		&ride.PickupAddress,
		&ride.DropoffLatitude,
		&ride.DropoffLongitude,
		&ride.DropoffAddress,
		&ride.DistanceKm,
		&ride.DurationMinutes,
		&ride.ProposedFare,
		&ride.FinalFare,
		&ride.Priority,
		&ride.EtaMinutes,
		&ride.RequestedAt,
		&ride.AcceptedAt,
		&ride.ArrivedAt,
		&ride.StartedAt,
		&ride.CompletedAt,
		&ride.CancelledAt,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("ride request not found", err)
		}
		return nil, common.NewInternalError("failed to read ride request", err)
	}
	return ride, nil
}

// Create persists a new ride request
func (r *Repository) Create(ctx context.Context, ride *RideRequest) error {
	query := `
		INSERT INTO ride_requests (
			id, passenger_id, status, pickup_latitude, pickup_longitude,
			pickup_address, dropoff_latitude, dropoff_longitude, dropoff_address,
			distance_km, duration_minutes, proposed_fare, priority, requested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		ride.ID,
		ride.PassengerID,
		ride.Status,
		ride.PickupLatitude,
		ride.PickupLongitude,
		ride.PickupAddress,
		ride.DropoffLatitude,
		ride.DropoffLongitude,
		ride.DropoffAddress,
		ride.DistanceKm,
		ride.DurationMinutes,
		ride.ProposedFare,
		ride.Priority,
		ride.RequestedAt,
	).Scan(&ride.CreatedAt, &ride.UpdatedAt)

	if err != nil {
		return common.NewInternalError("failed to create ride request", err)
	}

	return nil
}

// GetByID retrieves a ride request by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*RideRequest, error) {
	query := `SELECT ` + rideColumns + ` FROM ride_requests WHERE id = $1`
	return scanRide(r.db.QueryRow(ctx, query, id))
}

// SetAccepted assigns a driver to a pending request. The WHERE clause makes it
// idempotent under retries and a no-op when another driver already won.
func (r *Repository) SetAccepted(ctx context.Context, requestID, driverID uuid.UUID) error {
	query := `
		UPDATE ride_requests
		SET status = $1, driver_id = $2, accepted_at = $3, updated_at = $3
		WHERE id = $4 AND (status = $5 OR (status = $1 AND driver_id = $2))`

	_, err := r.db.Exec(ctx, query,
		StatusAccepted, driverID, time.Now().UTC(), requestID, StatusPending)
	if err != nil {
		return common.NewInternalError("failed to assign driver", err)
	}

	return nil
}

// SetStatus applies an engine-driven terminal transition from pending. Part of
// the dispatch.CanonicalStore contract, so repeated calls are harmless.
func (r *Repository) SetStatus(ctx context.Context, requestID uuid.UUID, status string) error {
	query := `
		UPDATE ride_requests
		SET status = $1, cancelled_at = CASE WHEN $1 = $2 THEN $3 ELSE cancelled_at END,
			updated_at = $3
		WHERE id = $4 AND status = $5`

	_, err := r.db.Exec(ctx, query,
		RideStatus(status), StatusCancelled, time.Now().UTC(), requestID, StatusPending)
	if err != nil {
		return common.NewInternalError("failed to update ride status", err)
	}

	return nil
}

// SetEta records the driver's accepted ETA
func (r *Repository) SetEta(ctx context.Context, requestID uuid.UUID, etaMinutes int) error {
	query := `UPDATE ride_requests SET eta_minutes = $1, updated_at = $2 WHERE id = $3`

	if _, err := r.db.Exec(ctx, query, etaMinutes, time.Now().UTC(), requestID); err != nil {
		return common.NewInternalError("failed to record eta", err)
	}
	return nil
}

// Transition moves a ride between trip states, stamping the matching
// timestamp column. Returns whether a row changed, so callers can reject
// out-of-order transitions.
func (r *Repository) Transition(ctx context.Context, requestID uuid.UUID, from, to RideStatus) (bool, error) {
	var column string
	switch to {
	case StatusArrivedAtPickup:
		column = "arrived_at"
	case StatusInTransit:
		column = "started_at"
	case StatusCompleted:
		column = "completed_at"
	case StatusCancelled:
		column = "cancelled_at"
	default:
		return false, common.NewInternalError("unsupported transition target", nil)
	}

	query := `
		UPDATE ride_requests
		SET status = $1, ` + column + ` = $2, updated_at = $2
		WHERE id = $3 AND status = $4`

	tag, err := r.db.Exec(ctx, query, to, time.Now().UTC(), requestID, from)
	if err != nil {
		return false, common.NewInternalError("failed to transition ride", err)
	}

	return tag.RowsAffected() > 0, nil
}

// SetFinalFare records the settled fare on a completed trip
func (r *Repository) SetFinalFare(ctx context.Context, requestID uuid.UUID, finalFare float64) error {
	query := `UPDATE ride_requests SET final_fare = $1, updated_at = $2 WHERE id = $3`

	if _, err := r.db.Exec(ctx, query, finalFare, time.Now().UTC(), requestID); err != nil {
		return common.NewInternalError("failed to record final fare", err)
	}
	return nil
}

// GetDisplayName returns a user's display name for offer payloads.
func (r *Repository) GetDisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	query := `SELECT first_name || ' ' || last_name FROM users WHERE id = $1`

	var name string
	if err := r.db.QueryRow(ctx, query, userID).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", common.NewNotFoundError("user not found", err)
		}
		return "", common.NewInternalError("failed to read user", err)
	}
	return name, nil
}

// GetPhone returns a user's phone number for offer payloads.
func (r *Repository) GetPhone(ctx context.Context, userID uuid.UUID) (string, error) {
	query := `SELECT phone FROM users WHERE id = $1`

	var phone string
	if err := r.db.QueryRow(ctx, query, userID).Scan(&phone); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", common.NewNotFoundError("user not found", err)
		}
		return "", common.NewInternalError("failed to read user", err)
	}
	return phone, nil
}

var _ dispatch.CanonicalStore = (*Repository)(nil)
