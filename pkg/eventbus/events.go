package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// RideRequestedData is emitted when a passenger submits a ride request and
// dispatch begins.
type RideRequestedData struct {
	RequestID       uuid.UUID `json:"request_id"`
	PassengerID     uuid.UUID `json:"passenger_id"`
	PickupLatitude  float64   `json:"pickup_latitude"`
	PickupLongitude float64   `json:"pickup_longitude"`
	Priority        string    `json:"priority"`
	RequestedAt     time.Time `json:"requested_at"`
}

// RideAcceptedData is emitted when a driver accepts an offer.
type RideAcceptedData struct {
	RequestID   uuid.UUID `json:"request_id"`
	PassengerID uuid.UUID `json:"passenger_id"`
	DriverID    uuid.UUID `json:"driver_id"`
	EtaMinutes  int       `json:"eta_minutes"`
	AcceptedAt  time.Time `json:"accepted_at"`
}

// RideExhaustedData is emitted when the candidate queue empties without an
// acceptance.
type RideExhaustedData struct {
	RequestID   uuid.UUID `json:"request_id"`
	PassengerID uuid.UUID `json:"passenger_id"`
	ExhaustedAt time.Time `json:"exhausted_at"`
}

// RideCancelledData is emitted when a pending request is cancelled.
type RideCancelledData struct {
	RequestID   uuid.UUID `json:"request_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// RideCompletedData is emitted when a trip finishes.
type RideCompletedData struct {
	RequestID   uuid.UUID `json:"request_id"`
	PassengerID uuid.UUID `json:"passenger_id"`
	DriverID    uuid.UUID `json:"driver_id"`
	FinalFare   float64   `json:"final_fare"`
	CompletedAt time.Time `json:"completed_at"`
}
