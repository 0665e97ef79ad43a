package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/hiveride/dispatch/pkg/logger"
)

// Subjects for dispatch lifecycle events.
const (
	SubjectRideRequested = "rides.requested"
	SubjectRideAccepted  = "rides.accepted"
	SubjectRideExhausted = "rides.exhausted"
	SubjectRideCancelled = "rides.cancelled"
	SubjectRideCompleted = "rides.completed"
)

// Event is the envelope for all events published through the bus.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Bus publishes dispatch events over NATS. A nil Bus is a no-op publisher so
// the service runs without a broker in development.
type Bus struct {
	conn   *nats.Conn
	source string
}

// Connect establishes the NATS connection.
func Connect(url, source string) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.Name(source),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Bus{conn: nc, source: source}, nil
}

// Publish wraps data in an event envelope and publishes it on subject.
// Publish failures are logged, not surfaced: events are advisory and must not
// block dispatch progress.
func (b *Bus) Publish(ctx context.Context, subject string, data interface{}) {
	if b == nil || b.conn == nil {
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		logger.ErrorContext(ctx, "failed to marshal event data",
			zap.String("subject", subject), zap.Error(err))
		return
	}

	event := Event{
		ID:        uuid.New().String(),
		Type:      subject,
		Source:    b.source,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.ErrorContext(ctx, "failed to marshal event envelope",
			zap.String("subject", subject), zap.Error(err))
		return
	}

	if err := b.conn.Publish(subject, payload); err != nil {
		logger.WarnContext(ctx, "failed to publish event",
			zap.String("subject", subject), zap.Error(err))
	}
}

// Close drains and closes the connection.
func (b *Bus) Close() {
	if b == nil || b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}
