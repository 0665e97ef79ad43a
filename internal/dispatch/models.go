package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// Ephemeral dispatch status values. These share the canonical ride-request
// alphabet; the engine only ever writes the four below.
const (
	StatusPending            = "pending"
	StatusAccepted           = "accepted"
	StatusNoDriversAvailable = "no_drivers_available"
	StatusCancelled          = "cancelled"
)

// Driver response values recorded in the per-request response log.
const (
	ResponseAccept  = "accept"
	ResponseDecline = "decline"
	ResponseTimeout = "timeout"
)

// Verdict is a driver's answer to an open offer.
type Verdict string

const (
	VerdictAccept  Verdict = "accept"
	VerdictDecline Verdict = "decline"
)

// Location is a named point used in offer payloads.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Address   string  `json:"address"`
	Name      string  `json:"name,omitempty"`
}

// RideDetails is the trip payload carried through every offer for a request.
// It is threaded through declines and timeouts so that later offers carry the
// same full payload as the first one.
type RideDetails struct {
	RequestID       uuid.UUID `json:"request_id"`
	PassengerID     uuid.UUID `json:"passenger_id"`
	PassengerName   string    `json:"passenger_name"`
	PassengerPhone  string    `json:"passenger_phone"`
	Pickup          Location  `json:"pickup"`
	Dropoff         Location  `json:"dropoff"`
	DistanceKm      float64   `json:"distance_km"`
	DurationMinutes int       `json:"duration_minutes"`
	ProposedFare    float64   `json:"proposed_fare"`
	Priority        string    `json:"priority"`
}

// ResponseEntry is one append-only record of a driver's reaction to an offer.
type ResponseEntry struct {
	DriverID  uuid.UUID `json:"driver_id"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// OfferRecord remembers who the open offer was armed for. The fallback
// sweeper reads it to synthesize timeouts for offers whose in-process timer
// died with its worker.
type OfferRecord struct {
	DriverID  uuid.UUID `json:"driver_id"`
	OfferedAt time.Time `json:"offered_at"`
}

// StatusView is the status projection served to callers.
type StatusView struct {
	Status           string     `json:"status"`
	DriverID         *uuid.UUID `json:"driver_id,omitempty"`
	EstimatedArrival *int       `json:"estimated_arrival,omitempty"`
}
