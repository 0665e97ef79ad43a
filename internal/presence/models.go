package presence

import "github.com/google/uuid"

// HeartbeatRequest is a driver location ping. Speed and the client timestamp
// are accepted as telemetry; liveness uses the server clock.
type HeartbeatRequest struct {
	Latitude  float64 `json:"latitude" binding:"latitude"`
	Longitude float64 `json:"longitude" binding:"longitude"`
	Speed     float64 `json:"speed"`
	Timestamp int64   `json:"timestamp"`
}

// StatusRequest toggles a driver's availability.
type StatusRequest struct {
	IsOnline bool `json:"is_online"`
}

// NearbyDriver is one search hit with its distance from the query point.
type NearbyDriver struct {
	DriverID   uuid.UUID `json:"driver_id"`
	DistanceKm float64   `json:"distance_km"`
}
