package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hiveride/dispatch/internal/dispatch"
	"github.com/hiveride/dispatch/pkg/logger"
)

// Push message kinds. Clients route on the "type" field in the data payload.
const (
	KindRideRequest        = "ride_request"
	KindRideRequestExpired = "ride_request_expired"
	KindRideAccepted       = "ride_accepted"
	KindNoDriversAvailable = "no_drivers_available"
	KindDriverArrived      = "driver_arrived"
	KindTripStarted        = "trip_started"
	KindTripCompleted      = "trip_completed"
	KindPaymentRequest     = "payment_request"
)

// Supported payment currencies.
const (
	CurrencyHBD  = "HBD"
	CurrencyHIVE = "HIVE"
)

// Dispatcher fans push messages out to all of a user's registered devices.
// With no push client configured it degrades to a logged no-op, so dispatch
// keeps moving in environments without FCM credentials.
type Dispatcher struct {
	push   PushClient
	tokens TokenRepository
}

// NewDispatcher creates a notification dispatcher. push may be nil.
func NewDispatcher(push PushClient, tokens TokenRepository) *Dispatcher {
	return &Dispatcher{push: push, tokens: tokens}
}

// Send delivers one push to every active device of the user. Per-token send
// failures are logged and skipped; Send fails only when no token could be
// resolved at all.
func (d *Dispatcher) Send(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	if d.push == nil {
		logger.WarnContext(ctx, "push client not configured, dropping notification",
			zap.String("user_id", userID.String()),
			zap.String("type", data["type"]),
		)
		return nil
	}

	tokens, err := d.tokens.GetDeviceTokens(ctx, userID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		logger.InfoContext(ctx, "no device tokens registered",
			zap.String("user_id", userID.String()),
			zap.String("type", data["type"]),
		)
		return nil
	}

	for _, token := range tokens {
		if _, err := d.push.SendPushNotification(ctx, token, title, body, data); err != nil {
			logger.WarnContext(ctx, "push send failed",
				zap.String("user_id", userID.String()),
				zap.String("type", data["type"]),
				zap.Error(err),
			)
		}
	}

	return nil
}

// RideRequest offers a ride to a driver. The payload carries the full trip
// details so the driver app can render the offer without a follow-up fetch.
func (d *Dispatcher) RideRequest(ctx context.Context, driverID uuid.UUID, details *dispatch.RideDetails) error {
	body := fmt.Sprintf("Pickup at %s, %.1f km trip, %.2f fare",
		details.Pickup.Address, details.DistanceKm, details.ProposedFare)

	data := map[string]string{
		"type":             KindRideRequest,
		"request_id":       details.RequestID.String(),
		"passenger_name":   details.PassengerName,
		"passenger_phone":  details.PassengerPhone,
		"pickup_lat":       strconv.FormatFloat(details.Pickup.Latitude, 'f', -1, 64),
		"pickup_lng":       strconv.FormatFloat(details.Pickup.Longitude, 'f', -1, 64),
		"pickup_address":   details.Pickup.Address,
		"dropoff_lat":      strconv.FormatFloat(details.Dropoff.Latitude, 'f', -1, 64),
		"dropoff_lng":      strconv.FormatFloat(details.Dropoff.Longitude, 'f', -1, 64),
		"dropoff_address":  details.Dropoff.Address,
		"distance_km":      strconv.FormatFloat(details.DistanceKm, 'f', 2, 64),
		"duration_minutes": strconv.Itoa(details.DurationMinutes),
		"proposed_fare":    strconv.FormatFloat(details.ProposedFare, 'f', 3, 64),
		"priority":         details.Priority,
	}

	return d.Send(ctx, driverID, "New ride request", body, data)
}

// RideRequestExpired tells a driver their offer window lapsed.
func (d *Dispatcher) RideRequestExpired(ctx context.Context, driverID, requestID uuid.UUID) error {
	data := map[string]string{
		"type":       KindRideRequestExpired,
		"request_id": requestID.String(),
	}
	return d.Send(ctx, driverID, "Ride request expired", "The ride was offered to another driver", data)
}

// RideAccepted tells a passenger their ride was accepted.
func (d *Dispatcher) RideAccepted(ctx context.Context, passengerID, requestID, driverID uuid.UUID, etaMinutes int) error {
	name, err := d.tokens.GetDisplayName(ctx, driverID)
	if err != nil {
		name = "Your driver"
	}

	data := map[string]string{
		"type":        KindRideAccepted,
		"request_id":  requestID.String(),
		"driver_id":   driverID.String(),
		"eta_minutes": strconv.Itoa(etaMinutes),
	}
	body := fmt.Sprintf("%s is on the way, arriving in about %d min", name, etaMinutes)
	return d.Send(ctx, passengerID, "Driver found", body, data)
}

// NoDriversAvailable tells a passenger dispatch exhausted its candidates.
func (d *Dispatcher) NoDriversAvailable(ctx context.Context, passengerID, requestID uuid.UUID) error {
	data := map[string]string{
		"type":       KindNoDriversAvailable,
		"request_id": requestID.String(),
	}
	return d.Send(ctx, passengerID, "No drivers available", "Please try requesting again in a few minutes", data)
}

// DriverArrived tells a passenger their driver reached the pickup point.
func (d *Dispatcher) DriverArrived(ctx context.Context, passengerID, requestID uuid.UUID) error {
	data := map[string]string{
		"type":       KindDriverArrived,
		"request_id": requestID.String(),
	}
	return d.Send(ctx, passengerID, "Driver arrived", "Your driver is waiting at the pickup point", data)
}

// TripStarted tells a passenger the trip is underway.
func (d *Dispatcher) TripStarted(ctx context.Context, passengerID, requestID uuid.UUID) error {
	data := map[string]string{
		"type":       KindTripStarted,
		"request_id": requestID.String(),
	}
	return d.Send(ctx, passengerID, "Trip started", "Enjoy your ride", data)
}

// TripCompleted tells a passenger the trip finished.
func (d *Dispatcher) TripCompleted(ctx context.Context, passengerID, requestID uuid.UUID, finalFare float64, completedAt time.Time) error {
	data := map[string]string{
		"type":         KindTripCompleted,
		"request_id":   requestID.String(),
		"final_fare":   strconv.FormatFloat(finalFare, 'f', 3, 64),
		"completed_at": completedAt.UTC().Format(time.RFC3339),
	}
	body := fmt.Sprintf("Trip complete, fare %.3f", finalFare)
	return d.Send(ctx, passengerID, "Trip completed", body, data)
}

// PaymentRequest asks a passenger to settle the fare in HBD or HIVE.
func (d *Dispatcher) PaymentRequest(ctx context.Context, passengerID, requestID uuid.UUID, invoice string, amount float64, currency, payeeAccount, driverName string) error {
	data := map[string]string{
		"type":          KindPaymentRequest,
		"request_id":    requestID.String(),
		"invoice":       invoice,
		"amount":        strconv.FormatFloat(amount, 'f', 3, 64),
		"currency":      currency,
		"payee_account": payeeAccount,
		"driver_name":   driverName,
	}
	body := fmt.Sprintf("Please pay %.3f %s for your ride", amount, currency)
	return d.Send(ctx, passengerID, "Payment requested", body, data)
}
