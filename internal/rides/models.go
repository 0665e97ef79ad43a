package rides

import (
	"time"

	"github.com/google/uuid"
)

// RideStatus represents the status of a ride request
type RideStatus string

// Canonical ride request statuses. The dispatch engine owns the transitions
// up to accepted/no_drivers_available/cancelled; the trip endpoints own the
// rest.
const (
	StatusPending            RideStatus = "pending"
	StatusAccepted           RideStatus = "accepted"
	StatusArrivedAtPickup    RideStatus = "arrived_at_pickup"
	StatusInTransit          RideStatus = "in_transit"
	StatusCompleted          RideStatus = "completed"
	StatusCancelled          RideStatus = "cancelled"
	StatusNoDriversAvailable RideStatus = "no_drivers_available"
)

// Priority values accepted on ride requests.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// RideRequest is the canonical ride record persisted in Postgres.
type RideRequest struct {
	ID               uuid.UUID  `json:"id"`
	PassengerID      uuid.UUID  `json:"passenger_id"`
	DriverID         *uuid.UUID `json:"driver_id,omitempty"`
	Status           RideStatus `json:"status"`
	PickupLatitude   float64    `json:"pickup_latitude"`
	PickupLongitude  float64    `json:"pickup_longitude"`
	PickupAddress    string     `json:"pickup_address"`
	DropoffLatitude  float64    `json:"dropoff_latitude"`
	DropoffLongitude float64    `json:"dropoff_longitude"`
	DropoffAddress   string     `json:"dropoff_address"`
	DistanceKm       float64    `json:"distance_km"`
	DurationMinutes  int        `json:"duration_minutes"`
	ProposedFare     float64    `json:"proposed_fare"`
	FinalFare        *float64   `json:"final_fare,omitempty"`
	Priority         string     `json:"priority"`
	EtaMinutes       *int       `json:"eta_minutes,omitempty"`
	RequestedAt      time.Time  `json:"requested_at"`
	AcceptedAt       *time.Time `json:"accepted_at,omitempty"`
	ArrivedAt        *time.Time `json:"arrived_at,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CreateRideRequest is the passenger's ride submission.
type CreateRideRequest struct {
	PickupLatitude   float64 `json:"pickup_latitude" binding:"latitude"`
	PickupLongitude  float64 `json:"pickup_longitude" binding:"longitude"`
	PickupAddress    string  `json:"pickup_address" binding:"required"`
	DropoffLatitude  float64 `json:"dropoff_latitude" binding:"latitude"`
	DropoffLongitude float64 `json:"dropoff_longitude" binding:"longitude"`
	DropoffAddress   string  `json:"dropoff_address" binding:"required"`
	ProposedFare     float64 `json:"proposed_fare" binding:"gte=0"`
	Priority         string  `json:"priority" binding:"omitempty,oneof=normal high"`
}

// AcceptRequest is a driver's acceptance payload.
type AcceptRequest struct {
	EtaMinutes int `json:"eta_minutes" binding:"required,gt=0,lte=120"`
}

// DeclineRequest is a driver's decline payload.
type DeclineRequest struct {
	Reason string `json:"reason"`
}

// CompleteRequest closes a trip with its final fare.
type CompleteRequest struct {
	FinalFare float64 `json:"final_fare" binding:"gte=0"`
}

// PaymentRequestBody asks the passenger to settle the fare out of band.
type PaymentRequestBody struct {
	Invoice      string  `json:"invoice" binding:"required"`
	Amount       float64 `json:"amount" binding:"required,gt=0"`
	Currency     string  `json:"currency" binding:"required,oneof=HBD HIVE"`
	PayeeAccount string  `json:"payee_account" binding:"required"`
}
