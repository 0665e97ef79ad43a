package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hiveride/dispatch/pkg/config"
	"github.com/hiveride/dispatch/pkg/eventbus"
	"github.com/hiveride/dispatch/pkg/logger"
)

// Engine drives the per-request dispatch state machine: it offers the ride to
// one candidate at a time, arms the acceptance window, and resolves the
// request on accept, exhaustion or cancellation.
//
// Every decision is derived from store reads, never from in-memory state, so
// any worker can handle any event for any request. The only synchronization
// is the compare-and-set on the offer slot.
type Engine struct {
	store     StoreInterface
	queue     QueueInterface
	timers    OfferTimers
	notifier  Notifier
	canonical CanonicalStore
	presence  PresenceChecker
	events    EventPublisher
	cfg       config.DispatchConfig
}

// NewEngine wires the dispatch engine.
func NewEngine(
	store StoreInterface,
	queue QueueInterface,
	timers OfferTimers,
	notifier Notifier,
	canonical CanonicalStore,
	presence PresenceChecker,
	events EventPublisher,
	cfg config.DispatchConfig,
) *Engine {
	return &Engine{
		store:     store,
		queue:     queue,
		timers:    timers,
		notifier:  notifier,
		canonical: canonical,
		presence:  presence,
		events:    events,
		cfg:       cfg,
	}
}

// Admit starts dispatch for a freshly created request. An empty candidate
// list resolves the request immediately as exhausted.
func (e *Engine) Admit(ctx context.Context, details *RideDetails, candidates []uuid.UUID) error {
	if len(candidates) == 0 {
		return e.exhaust(ctx, details)
	}

	count, err := e.queue.Seed(ctx, details.RequestID, candidates)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "dispatch started",
		zap.String("request_id", details.RequestID.String()),
		zap.Int("candidates", count),
	)

	return e.advance(ctx, details)
}

// advance ends one offer and starts the next: it pops the next live
// candidate, claims the offer slot via CAS, notifies the driver and arms the
// acceptance timer. An empty queue resolves the request as exhausted.
func (e *Engine) advance(ctx context.Context, details *RideDetails) error {
	requestID := details.RequestID

	for {
		driverID, ok, err := e.queue.PopNext(ctx, requestID)
		if err != nil {
			return err
		}
		if !ok {
			return e.exhaust(ctx, details)
		}

		fresh, err := e.presence.IsFresh(ctx, driverID)
		if err != nil {
			logger.WarnContext(ctx, "presence check failed, offering anyway",
				zap.String("request_id", requestID.String()),
				zap.String("driver_id", driverID.String()),
				zap.Error(err),
			)
			fresh = true
		}
		if !fresh {
			// Candidate went stale between seeding and pop: same treatment
			// as a decline.
			entry := ResponseEntry{DriverID: driverID, Response: ResponseDecline, Timestamp: time.Now().UTC()}
			if err := e.store.AppendResponse(ctx, requestID, entry); err != nil {
				return err
			}
			logger.InfoContext(ctx, "skipping stale candidate",
				zap.String("request_id", requestID.String()),
				zap.String("driver_id", driverID.String()),
			)
			continue
		}

		claimed, err := e.store.SetCurrentOfferee(ctx, requestID, driverID, "")
		if err != nil {
			return err
		}
		if !claimed {
			// Another worker holds the offer slot. The popped candidate is
			// dropped; the slot holder keeps driving the request.
			logger.WarnContext(ctx, "offer slot already held, dropping candidate",
				zap.String("request_id", requestID.String()),
				zap.String("driver_id", driverID.String()),
			)
			return nil
		}

		if err := e.store.RecordOffer(ctx, requestID, driverID); err != nil {
			// Only the sweeper fallback loses precision here.
			logger.WarnContext(ctx, "failed to record offer for sweeper",
				zap.String("request_id", requestID.String()), zap.Error(err))
		}

		offersSentTotal.Inc()

		if err := e.notifier.RideRequest(ctx, driverID, details); err != nil {
			// Not retried in place: if the driver never sees the offer, the
			// acceptance timer expires and the next candidate is tried.
			logger.WarnContext(ctx, "offer push failed",
				zap.String("request_id", requestID.String()),
				zap.String("driver_id", driverID.String()),
				zap.Error(err),
			)
		}

		offered := driverID
		e.timers.Arm(requestID, offered, e.cfg.OfferTimeout(), func() {
			if err := e.Timeout(context.Background(), details, offered); err != nil {
				logger.Error("offer timeout handling failed",
					zap.String("request_id", requestID.String()),
					zap.String("driver_id", offered.String()),
					zap.Error(err),
				)
			}
		})

		logger.InfoContext(ctx, "offer sent",
			zap.String("request_id", requestID.String()),
			zap.String("driver_id", driverID.String()),
		)
		return nil
	}
}

// Respond applies a driver's accept or decline. It returns whether the
// verdict was applied; false means the driver was not the current offeree or
// the request had already resolved.
func (e *Engine) Respond(ctx context.Context, details *RideDetails, driverID uuid.UUID, verdict Verdict, etaMinutes int) (bool, error) {
	requestID := details.RequestID

	status, err := e.store.GetStatus(ctx, requestID)
	if err != nil {
		return false, err
	}

	switch status {
	case StatusAccepted, StatusNoDriversAvailable, StatusCancelled:
		// Already resolved; nothing applies here. A retried accept from the
		// assigned driver is recognized as safe by the admission layer, which
		// reads the status projection.
		return false, nil
	}

	current, err := e.store.GetCurrentOfferee(ctx, requestID)
	if err != nil {
		return false, err
	}
	if current != driverID.String() {
		return false, nil
	}

	// The conditional delete is the commit point: exactly one concurrent
	// response (or timeout) for this offer wins it.
	claimed, err := e.store.ClearCurrentOfferee(ctx, requestID, driverID)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	e.timers.Disarm(requestID)

	if verdict == VerdictAccept {
		if err := e.accept(ctx, details, driverID, etaMinutes); err != nil {
			// Put the offer back so the driver's accept stays retryable. No
			// state is assumed changed; if no retry arrives the sweeper
			// resumes the cascade.
			if _, rerr := e.store.SetCurrentOfferee(ctx, requestID, driverID, ""); rerr != nil {
				logger.ErrorContext(ctx, "failed to restore offer slot after accept failure",
					zap.String("request_id", requestID.String()),
					zap.String("driver_id", driverID.String()),
					zap.Error(rerr),
				)
			}
			return false, err
		}
		return true, nil
	}
	return true, e.decline(ctx, details, driverID)
}

// accept resolves the request onto driverID. The canonical store is written
// first so a crash between the two writes leaves the sweeper able to converge
// from the canonical record.
func (e *Engine) accept(ctx context.Context, details *RideDetails, driverID uuid.UUID, etaMinutes int) error {
	requestID := details.RequestID

	if err := e.canonical.SetAccepted(ctx, requestID, driverID); err != nil {
		return err
	}
	if err := e.store.SetStatus(ctx, requestID, StatusAccepted, e.cfg.AcceptedTTL()); err != nil {
		return err
	}
	if err := e.store.SetAssignedDriver(ctx, requestID, driverID); err != nil {
		return err
	}
	if err := e.store.SetEta(ctx, requestID, etaMinutes); err != nil {
		return err
	}

	entry := ResponseEntry{DriverID: driverID, Response: ResponseAccept, Timestamp: time.Now().UTC()}
	if err := e.store.AppendResponse(ctx, requestID, entry); err != nil {
		logger.WarnContext(ctx, "failed to log accept response",
			zap.String("request_id", requestID.String()), zap.Error(err))
	}

	if err := e.queue.Drop(ctx, requestID); err != nil {
		logger.WarnContext(ctx, "failed to drop candidate queue",
			zap.String("request_id", requestID.String()), zap.Error(err))
	}
	if err := e.store.DeleteDispatchEphemera(ctx, requestID); err != nil {
		logger.WarnContext(ctx, "failed to delete dispatch ephemera",
			zap.String("request_id", requestID.String()), zap.Error(err))
	}

	acceptsTotal.Inc()

	if err := e.notifier.RideAccepted(ctx, details.PassengerID, requestID, driverID, etaMinutes); err != nil {
		logger.WarnContext(ctx, "accepted push failed",
			zap.String("request_id", requestID.String()), zap.Error(err))
	}

	e.publish(ctx, eventbus.SubjectRideAccepted, eventbus.RideAcceptedData{
		RequestID:   requestID,
		PassengerID: details.PassengerID,
		DriverID:    driverID,
		EtaMinutes:  etaMinutes,
		AcceptedAt:  time.Now().UTC(),
	})

	logger.InfoContext(ctx, "request accepted",
		zap.String("request_id", requestID.String()),
		zap.String("driver_id", driverID.String()),
		zap.Int("eta_minutes", etaMinutes),
	)
	return nil
}

// decline logs the refusal and moves on to the next candidate. The decline
// itself is already applied; an advance failure is logged and left to the
// sweeper rather than failing the responding driver's call.
func (e *Engine) decline(ctx context.Context, details *RideDetails, driverID uuid.UUID) error {
	requestID := details.RequestID

	entry := ResponseEntry{DriverID: driverID, Response: ResponseDecline, Timestamp: time.Now().UTC()}
	if err := e.store.AppendResponse(ctx, requestID, entry); err != nil {
		logger.WarnContext(ctx, "failed to log decline response",
			zap.String("request_id", requestID.String()), zap.Error(err))
	}

	declinesTotal.Inc()

	if err := e.advance(ctx, details); err != nil {
		logger.ErrorContext(ctx, "advance after decline failed",
			zap.String("request_id", requestID.String()), zap.Error(err))
	}
	return nil
}

// Timeout expires the offer held by driverID. It is a no-op when the offer
// has since moved on, so a late in-process timer and the sweeper can both
// fire safely for the same offer.
func (e *Engine) Timeout(ctx context.Context, details *RideDetails, driverID uuid.UUID) error {
	requestID := details.RequestID

	status, err := e.store.GetStatus(ctx, requestID)
	if err != nil {
		return err
	}
	if status != StatusPending {
		return nil
	}

	current, err := e.store.GetCurrentOfferee(ctx, requestID)
	if err != nil {
		return err
	}

	switch current {
	case driverID.String():
		claimed, err := e.store.ClearCurrentOfferee(ctx, requestID, driverID)
		if err != nil {
			return err
		}
		if !claimed {
			// A concurrent response won the offer.
			return nil
		}
	case "":
		// The offeree key expired with a dead worker. Synthesize the timeout
		// only when this driver has not been logged yet, so each offer times
		// out at most once.
		responded, err := e.store.HasResponded(ctx, requestID, driverID)
		if err != nil {
			return err
		}
		if responded {
			return nil
		}
	default:
		// The offer already belongs to a later candidate.
		return nil
	}

	timeoutsTotal.Inc()

	entry := ResponseEntry{DriverID: driverID, Response: ResponseTimeout, Timestamp: time.Now().UTC()}
	if err := e.store.AppendResponse(ctx, requestID, entry); err != nil {
		return err
	}

	if err := e.notifier.RideRequestExpired(ctx, driverID, requestID); err != nil {
		logger.WarnContext(ctx, "offer expiry push failed",
			zap.String("request_id", requestID.String()),
			zap.String("driver_id", driverID.String()),
			zap.Error(err),
		)
	}

	logger.InfoContext(ctx, "offer timed out",
		zap.String("request_id", requestID.String()),
		zap.String("driver_id", driverID.String()),
	)

	return e.advance(ctx, details)
}

// Cancel transitions a pending request to cancelled. Returns whether the
// cancel was applied; terminal requests are left untouched.
func (e *Engine) Cancel(ctx context.Context, requestID uuid.UUID) (bool, error) {
	status, err := e.store.GetStatus(ctx, requestID)
	if err != nil {
		return false, err
	}
	if status != StatusPending {
		return false, nil
	}

	e.timers.Disarm(requestID)

	if err := e.store.SetStatus(ctx, requestID, StatusCancelled, e.cfg.QueueTTL()); err != nil {
		return false, err
	}
	if err := e.queue.Drop(ctx, requestID); err != nil {
		logger.WarnContext(ctx, "failed to drop candidate queue on cancel",
			zap.String("request_id", requestID.String()), zap.Error(err))
	}
	if err := e.store.DeleteDispatchEphemera(ctx, requestID); err != nil {
		logger.WarnContext(ctx, "failed to delete dispatch ephemera on cancel",
			zap.String("request_id", requestID.String()), zap.Error(err))
	}

	cancelledTotal.Inc()

	e.publish(ctx, eventbus.SubjectRideCancelled, eventbus.RideCancelledData{
		RequestID:   requestID,
		CancelledAt: time.Now().UTC(),
	})

	logger.InfoContext(ctx, "request cancelled",
		zap.String("request_id", requestID.String()))
	return true, nil
}

// exhaust resolves a request that ran out of candidates.
func (e *Engine) exhaust(ctx context.Context, details *RideDetails) error {
	requestID := details.RequestID

	e.timers.Disarm(requestID)

	if err := e.store.SetStatus(ctx, requestID, StatusNoDriversAvailable, e.cfg.QueueTTL()); err != nil {
		return err
	}
	if err := e.canonical.SetStatus(ctx, requestID, StatusNoDriversAvailable); err != nil {
		return err
	}
	if err := e.queue.Drop(ctx, requestID); err != nil {
		logger.WarnContext(ctx, "failed to drop candidate queue on exhaustion",
			zap.String("request_id", requestID.String()), zap.Error(err))
	}
	if err := e.store.DeleteDispatchEphemera(ctx, requestID); err != nil {
		logger.WarnContext(ctx, "failed to delete dispatch ephemera on exhaustion",
			zap.String("request_id", requestID.String()), zap.Error(err))
	}

	exhaustedTotal.Inc()

	if err := e.notifier.NoDriversAvailable(ctx, details.PassengerID, requestID); err != nil {
		logger.WarnContext(ctx, "exhaustion push failed",
			zap.String("request_id", requestID.String()), zap.Error(err))
	}

	e.publish(ctx, eventbus.SubjectRideExhausted, eventbus.RideExhaustedData{
		RequestID:   requestID,
		PassengerID: details.PassengerID,
		ExhaustedAt: time.Now().UTC(),
	})

	logger.InfoContext(ctx, "request exhausted, no drivers available",
		zap.String("request_id", requestID.String()))
	return nil
}

func (e *Engine) publish(ctx context.Context, subject string, data interface{}) {
	if e.events != nil {
		e.events.Publish(ctx, subject, data)
	}
}
