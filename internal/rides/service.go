package rides

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hiveride/dispatch/internal/dispatch"
	"github.com/hiveride/dispatch/pkg/common"
	"github.com/hiveride/dispatch/pkg/config"
	"github.com/hiveride/dispatch/pkg/eventbus"
	"github.com/hiveride/dispatch/pkg/geo"
	"github.com/hiveride/dispatch/pkg/logger"
)

// dispatchTimeout bounds the background candidate search and admission for
// one request.
const dispatchTimeout = 30 * time.Second

// Service is the admission API: it owns the canonical ride record and hands
// the dispatch engine everything it needs to run the offer cascade.
type Service struct {
	repo     RepositoryInterface
	engine   DispatchEngine
	store    DispatchStore
	status   StatusProvider
	finder   DriverFinder
	notifier TripNotifier
	events   dispatch.EventPublisher
	cfg      config.DispatchConfig
}

// NewService creates the rides service.
func NewService(
	repo RepositoryInterface,
	engine DispatchEngine,
	store DispatchStore,
	status StatusProvider,
	finder DriverFinder,
	notifier TripNotifier,
	events dispatch.EventPublisher,
	cfg config.DispatchConfig,
) *Service {
	return &Service{
		repo:     repo,
		engine:   engine,
		store:    store,
		status:   status,
		finder:   finder,
		notifier: notifier,
		events:   events,
		cfg:      cfg,
	}
}

// CreateAndDispatch persists a new ride request and starts dispatch in the
// background. The response returns immediately; clients poll the status
// endpoint for the outcome.
func (s *Service) CreateAndDispatch(ctx context.Context, passengerID uuid.UUID, req *CreateRideRequest) (*RideRequest, error) {
	distance := geo.Haversine(req.PickupLatitude, req.PickupLongitude, req.DropoffLatitude, req.DropoffLongitude)
	duration := geo.EstimateDuration(distance)

	priority := req.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	ride := &RideRequest{
		ID:               uuid.New(),
		PassengerID:      passengerID,
		Status:           StatusPending,
		PickupLatitude:   req.PickupLatitude,
		PickupLongitude:  req.PickupLongitude,
		PickupAddress:    req.PickupAddress,
		DropoffLatitude:  req.DropoffLatitude,
		DropoffLongitude: req.DropoffLongitude,
		DropoffAddress:   req.DropoffAddress,
		DistanceKm:       distance,
		DurationMinutes:  duration,
		ProposedFare:     req.ProposedFare,
		Priority:         priority,
		RequestedAt:      time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, ride); err != nil {
		return nil, err
	}

	if err := s.store.InitDispatch(ctx, ride.ID); err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.Publish(ctx, eventbus.SubjectRideRequested, eventbus.RideRequestedData{
			RequestID:       ride.ID,
			PassengerID:     passengerID,
			PickupLatitude:  ride.PickupLatitude,
			PickupLongitude: ride.PickupLongitude,
			Priority:        ride.Priority,
			RequestedAt:     ride.RequestedAt,
		})
	}

	details := s.buildDetails(ctx, ride)
	go s.dispatch(details, ride.PickupLatitude, ride.PickupLongitude)

	return ride, nil
}

// dispatch runs the candidate search and admission off the request goroutine.
// A search failure resolves the request as exhausted rather than leaving it
// pending forever.
func (s *Service) dispatch(details *dispatch.RideDetails, pickupLat, pickupLng float64) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	var candidates []uuid.UUID
	nearby, err := s.finder.Nearest(ctx, pickupLat, pickupLng, s.cfg.SearchRadiusKm, s.cfg.SearchLimit)
	if err != nil {
		logger.Error("candidate search failed, exhausting request",
			zap.String("request_id", details.RequestID.String()), zap.Error(err))
	} else {
		candidates = make([]uuid.UUID, 0, len(nearby))
		for _, d := range nearby {
			candidates = append(candidates, d.DriverID)
		}
	}

	if err := s.engine.Admit(ctx, details, candidates); err != nil {
		logger.Error("dispatch admission failed",
			zap.String("request_id", details.RequestID.String()), zap.Error(err))
	}
}

// Respond applies a driver's accept or decline to an open offer.
func (s *Service) Respond(ctx context.Context, requestID, driverID uuid.UUID, verdict dispatch.Verdict, etaMinutes int) error {
	ride, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}

	applied, err := s.engine.Respond(ctx, s.buildDetails(ctx, ride), driverID, verdict, etaMinutes)
	if err != nil {
		return err
	}
	if !applied {
		view, serr := s.status.Status(ctx, requestID)
		if serr == nil && view.Status != dispatch.StatusPending {
			// A repeated accept from the winning driver changes nothing and
			// succeeds; everyone else sees the request as resolved.
			if verdict == dispatch.VerdictAccept && view.Status == dispatch.StatusAccepted &&
				view.DriverID != nil && *view.DriverID == driverID {
				return nil
			}
			return common.NewAlreadyResolvedError("ride request already resolved")
		}
		return common.NewNotCurrentOffereeError("ride is not currently offered to this driver")
	}

	if verdict == dispatch.VerdictAccept {
		if err := s.repo.SetEta(ctx, requestID, etaMinutes); err != nil {
			logger.WarnContext(ctx, "failed to persist eta",
				zap.String("request_id", requestID.String()), zap.Error(err))
		}
	}

	return nil
}

// Cancel withdraws a pending request on behalf of its passenger.
func (s *Service) Cancel(ctx context.Context, requestID, passengerID uuid.UUID) error {
	ride, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if ride.PassengerID != passengerID {
		return common.NewForbiddenError("ride request belongs to another passenger")
	}

	applied, err := s.engine.Cancel(ctx, requestID)
	if err != nil {
		return err
	}
	if !applied {
		return common.NewAlreadyResolvedError("ride request already resolved")
	}

	if _, err := s.repo.Transition(ctx, requestID, StatusPending, StatusCancelled); err != nil {
		logger.WarnContext(ctx, "failed to persist cancellation",
			zap.String("request_id", requestID.String()), zap.Error(err))
	}

	return nil
}

// Get returns the canonical ride record.
func (s *Service) Get(ctx context.Context, requestID uuid.UUID) (*RideRequest, error) {
	return s.repo.GetByID(ctx, requestID)
}

// Status returns the dispatch status projection for polling clients.
func (s *Service) Status(ctx context.Context, requestID uuid.UUID) (*dispatch.StatusView, error) {
	return s.status.Status(ctx, requestID)
}

// Arrived marks the assigned driver as waiting at the pickup point.
func (s *Service) Arrived(ctx context.Context, requestID, driverID uuid.UUID) error {
	ride, err := s.assignedRide(ctx, requestID, driverID)
	if err != nil {
		return err
	}

	ok, err := s.repo.Transition(ctx, requestID, StatusAccepted, StatusArrivedAtPickup)
	if err != nil {
		return err
	}
	if !ok {
		return common.NewConflictError("ride is not awaiting pickup")
	}

	if err := s.notifier.DriverArrived(ctx, ride.PassengerID, requestID); err != nil {
		logger.WarnContext(ctx, "driver arrived push failed",
			zap.String("request_id", requestID.String()), zap.Error(err))
	}
	return nil
}

// Start begins the trip.
func (s *Service) Start(ctx context.Context, requestID, driverID uuid.UUID) error {
	ride, err := s.assignedRide(ctx, requestID, driverID)
	if err != nil {
		return err
	}

	ok, err := s.repo.Transition(ctx, requestID, StatusArrivedAtPickup, StatusInTransit)
	if err != nil {
		return err
	}
	if !ok {
		return common.NewConflictError("ride is not ready to start")
	}

	if err := s.notifier.TripStarted(ctx, ride.PassengerID, requestID); err != nil {
		logger.WarnContext(ctx, "trip started push failed",
			zap.String("request_id", requestID.String()), zap.Error(err))
	}
	return nil
}

// Complete finishes the trip and settles the final fare. A zero final fare
// falls back to the proposed fare.
func (s *Service) Complete(ctx context.Context, requestID, driverID uuid.UUID, finalFare float64) error {
	ride, err := s.assignedRide(ctx, requestID, driverID)
	if err != nil {
		return err
	}

	ok, err := s.repo.Transition(ctx, requestID, StatusInTransit, StatusCompleted)
	if err != nil {
		return err
	}
	if !ok {
		return common.NewConflictError("ride is not in transit")
	}

	if finalFare == 0 {
		finalFare = ride.ProposedFare
	}
	if err := s.repo.SetFinalFare(ctx, requestID, finalFare); err != nil {
		logger.WarnContext(ctx, "failed to persist final fare",
			zap.String("request_id", requestID.String()), zap.Error(err))
	}

	completedAt := time.Now().UTC()
	if err := s.notifier.TripCompleted(ctx, ride.PassengerID, requestID, finalFare, completedAt); err != nil {
		logger.WarnContext(ctx, "trip completed push failed",
			zap.String("request_id", requestID.String()), zap.Error(err))
	}

	if s.events != nil {
		s.events.Publish(ctx, eventbus.SubjectRideCompleted, eventbus.RideCompletedData{
			RequestID:   requestID,
			PassengerID: ride.PassengerID,
			DriverID:    driverID,
			FinalFare:   finalFare,
			CompletedAt: completedAt,
		})
	}

	return nil
}

// RequestPayment sends the passenger an out-of-band payment request for a
// completed trip. Settlement happens outside this system.
func (s *Service) RequestPayment(ctx context.Context, requestID, driverID uuid.UUID, body *PaymentRequestBody) error {
	ride, err := s.assignedRide(ctx, requestID, driverID)
	if err != nil {
		return err
	}
	if ride.Status != StatusCompleted {
		return common.NewConflictError("ride is not completed")
	}

	driverName, err := s.repo.GetDisplayName(ctx, driverID)
	if err != nil {
		driverName = ""
	}

	return s.notifier.PaymentRequest(ctx, ride.PassengerID, requestID,
		body.Invoice, body.Amount, body.Currency, body.PayeeAccount, driverName)
}

// LoadDetails rebuilds the offer payload from the canonical record. Used by
// the stalled-offer sweeper.
func (s *Service) LoadDetails(ctx context.Context, requestID uuid.UUID) (*dispatch.RideDetails, error) {
	ride, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return s.buildDetails(ctx, ride), nil
}

// assignedRide loads a ride and verifies the caller is its assigned driver.
func (s *Service) assignedRide(ctx context.Context, requestID, driverID uuid.UUID) (*RideRequest, error) {
	ride, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID == nil || *ride.DriverID != driverID {
		return nil, common.NewForbiddenError("ride is not assigned to this driver")
	}
	return ride, nil
}

// buildDetails assembles the offer payload carried through every offer for
// the request. Passenger contact lookups are best effort.
func (s *Service) buildDetails(ctx context.Context, ride *RideRequest) *dispatch.RideDetails {
	name, err := s.repo.GetDisplayName(ctx, ride.PassengerID)
	if err != nil {
		name = ""
	}
	phone, err := s.repo.GetPhone(ctx, ride.PassengerID)
	if err != nil {
		phone = ""
	}

	return &dispatch.RideDetails{
		RequestID:      ride.ID,
		PassengerID:    ride.PassengerID,
		PassengerName:  name,
		PassengerPhone: phone,
		Pickup: dispatch.Location{
			Latitude:  ride.PickupLatitude,
			Longitude: ride.PickupLongitude,
			Address:   ride.PickupAddress,
		},
		Dropoff: dispatch.Location{
			Latitude:  ride.DropoffLatitude,
			Longitude: ride.DropoffLongitude,
			Address:   ride.DropoffAddress,
		},
		DistanceKm:      ride.DistanceKm,
		DurationMinutes: ride.DurationMinutes,
		ProposedFare:    ride.ProposedFare,
		Priority:        ride.Priority,
	}
}

var _ dispatch.DetailsLoader = (*Service)(nil)
