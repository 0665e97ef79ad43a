package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hiveride/dispatch/pkg/config"
	"github.com/hiveride/dispatch/pkg/logger"
)

// Sweeper is the durability net under the in-process timers. It periodically
// scans the pending set and synthesizes a timeout for any request whose offer
// window elapsed without a live timer firing, which happens when the worker
// that armed the timer died.
type Sweeper struct {
	store  StoreInterface
	engine *Engine
	loader DetailsLoader
	cfg    config.DispatchConfig

	stop chan struct{}
	done chan struct{}
}

// NewSweeper creates a sweeper over the pending-request set.
func NewSweeper(store StoreInterface, engine *Engine, loader DetailsLoader, cfg config.DispatchConfig) *Sweeper {
	return &Sweeper{
		store:  store,
		engine: engine,
		loader: loader,
		cfg:    cfg,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
func (s *Sweeper) Start() {
	go s.run()
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.SweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(context.Background())
		}
	}
}

// sweep walks the pending set once. Errors on individual requests are logged
// and skipped so one bad request cannot stall the rest.
func (s *Sweeper) sweep(ctx context.Context) {
	pending, err := s.store.PendingRequests(ctx)
	if err != nil {
		logger.Warn("sweep: failed to list pending requests", zap.Error(err))
		return
	}

	for _, requestID := range pending {
		select {
		case <-s.stop:
			return
		default:
		}

		if err := s.sweepOne(ctx, requestID); err != nil {
			logger.Warn("sweep: request check failed",
				zap.String("request_id", requestID.String()), zap.Error(err))
		}
	}
}

func (s *Sweeper) sweepOne(ctx context.Context, requestID uuid.UUID) error {
	status, err := s.store.GetStatus(ctx, requestID)
	if err != nil {
		return err
	}
	if status != StatusPending {
		// Resolved elsewhere; drop the stale membership.
		return s.store.RemovePending(ctx, requestID)
	}

	current, err := s.store.GetCurrentOfferee(ctx, requestID)
	if err != nil {
		return err
	}
	if current != "" {
		// An offer is open and its key is alive, so its own timer (or a
		// later sweep after the key expires) will handle it.
		return nil
	}

	rec, err := s.store.LastOffer(ctx, requestID)
	if err != nil {
		return err
	}
	if rec == nil {
		// Admission is still in flight.
		return nil
	}
	if time.Since(rec.OfferedAt) < s.cfg.OfferTimeout() {
		return nil
	}

	details, err := s.loader.LoadDetails(ctx, requestID)
	if err != nil {
		return err
	}

	logger.Info("sweep: synthesizing offer timeout",
		zap.String("request_id", requestID.String()),
		zap.String("driver_id", rec.DriverID.String()),
	)
	return s.engine.Timeout(ctx, details, rec.DriverID)
}
