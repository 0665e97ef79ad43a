package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveride/dispatch/pkg/config"
)

// fakeStore is an in-memory StoreInterface with real CAS semantics, so the
// engine tests exercise the same claim races production sees.
type fakeStore struct {
	mu        sync.Mutex
	statuses  map[uuid.UUID]string
	current   map[uuid.UUID]string
	assigned  map[uuid.UUID]string
	etas      map[uuid.UUID]int
	responses map[uuid.UUID][]ResponseEntry
	offers    map[uuid.UUID]*OfferRecord
	pending   map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		statuses:  make(map[uuid.UUID]string),
		current:   make(map[uuid.UUID]string),
		assigned:  make(map[uuid.UUID]string),
		etas:      make(map[uuid.UUID]int),
		responses: make(map[uuid.UUID][]ResponseEntry),
		offers:    make(map[uuid.UUID]*OfferRecord),
		pending:   make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) InitDispatch(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = StatusPending
	f.pending[id] = true
	return nil
}

func (f *fakeStore) SetStatus(_ context.Context, id uuid.UUID, status string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	if status != StatusPending {
		delete(f.pending, id)
	}
	return nil
}

func (f *fakeStore) GetStatus(_ context.Context, id uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.statuses[id]; ok {
		return s, nil
	}
	return StatusPending, nil
}

func (f *fakeStore) SetCurrentOfferee(_ context.Context, id, driverID uuid.UUID, expected string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current[id] != expected {
		return false, nil
	}
	f.current[id] = driverID.String()
	return true, nil
}

func (f *fakeStore) GetCurrentOfferee(_ context.Context, id uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current[id], nil
}

func (f *fakeStore) ClearCurrentOfferee(_ context.Context, id, driverID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current[id] != driverID.String() {
		return false, nil
	}
	delete(f.current, id)
	return true, nil
}

func (f *fakeStore) SetAssignedDriver(_ context.Context, id, driverID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned[id] = driverID.String()
	return nil
}

func (f *fakeStore) GetAssignedDriver(_ context.Context, id uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assigned[id], nil
}

func (f *fakeStore) SetEta(_ context.Context, id uuid.UUID, minutes int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.etas[id] = minutes
	return nil
}

func (f *fakeStore) GetEta(_ context.Context, id uuid.UUID) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	eta, ok := f.etas[id]
	return eta, ok, nil
}

func (f *fakeStore) AppendResponse(_ context.Context, id uuid.UUID, entry ResponseEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[id] = append(f.responses[id], entry)
	return nil
}

func (f *fakeStore) Responses(_ context.Context, id uuid.UUID) ([]ResponseEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ResponseEntry(nil), f.responses[id]...), nil
}

func (f *fakeStore) HasResponded(_ context.Context, id, driverID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.responses[id] {
		if entry.DriverID == driverID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) RecordOffer(_ context.Context, id, driverID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers[id] = &OfferRecord{DriverID: driverID, OfferedAt: time.Now().UTC()}
	return nil
}

func (f *fakeStore) LastOffer(_ context.Context, id uuid.UUID) (*OfferRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offers[id], nil
}

func (f *fakeStore) DeleteDispatchEphemera(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.current, id)
	delete(f.offers, id)
	delete(f.pending, id)
	return nil
}

func (f *fakeStore) RemovePending(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, id)
	return nil
}

func (f *fakeStore) PendingRequests(_ context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(f.pending))
	for id := range f.pending {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeQueue struct {
	mu     sync.Mutex
	queues map[uuid.UUID][]uuid.UUID
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{queues: make(map[uuid.UUID][]uuid.UUID)}
}

func (f *fakeQueue) Seed(_ context.Context, id uuid.UUID, drivers []uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues[id] = append([]uuid.UUID(nil), drivers...)
	return len(drivers), nil
}

func (f *fakeQueue) PopNext(_ context.Context, id uuid.UUID) (uuid.UUID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.queues[id]
	if len(q) == 0 {
		return uuid.Nil, false, nil
	}
	head := q[0]
	f.queues[id] = q[1:]
	return head, true, nil
}

func (f *fakeQueue) Drop(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.queues, id)
	return nil
}

// fakeTimers records arm/disarm calls without scheduling anything; tests fire
// timeouts explicitly.
type fakeTimers struct {
	mu       sync.Mutex
	armed    map[uuid.UUID]uuid.UUID
	disarmed []uuid.UUID
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{armed: make(map[uuid.UUID]uuid.UUID)}
}

func (f *fakeTimers) Arm(requestID, driverID uuid.UUID, _ time.Duration, _ func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed[requestID] = driverID
}

func (f *fakeTimers) Disarm(requestID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.armed, requestID)
	f.disarmed = append(f.disarmed, requestID)
}

func (f *fakeTimers) armedFor(requestID uuid.UUID) (uuid.UUID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.armed[requestID]
	return d, ok
}

type notifierCall struct {
	kind     string
	userID   uuid.UUID
	driverID uuid.UUID
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifierCall
	err   error
}

func (f *fakeNotifier) record(kind string, userID, driverID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifierCall{kind: kind, userID: userID, driverID: driverID})
	return f.err
}

func (f *fakeNotifier) RideRequest(_ context.Context, driverID uuid.UUID, _ *RideDetails) error {
	return f.record("ride_request", driverID, driverID)
}

func (f *fakeNotifier) RideRequestExpired(_ context.Context, driverID, _ uuid.UUID) error {
	return f.record("ride_request_expired", driverID, driverID)
}

func (f *fakeNotifier) RideAccepted(_ context.Context, passengerID, _, driverID uuid.UUID, _ int) error {
	return f.record("ride_accepted", passengerID, driverID)
}

func (f *fakeNotifier) NoDriversAvailable(_ context.Context, passengerID, _ uuid.UUID) error {
	return f.record("no_drivers_available", passengerID, uuid.Nil)
}

func (f *fakeNotifier) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.kind
	}
	return out
}

type fakeCanonical struct {
	mu        sync.Mutex
	accepted  map[uuid.UUID]uuid.UUID
	statuses  map[uuid.UUID]string
	acceptErr error // returned by the next SetAccepted, then cleared
}

func newFakeCanonical() *fakeCanonical {
	return &fakeCanonical{
		accepted: make(map[uuid.UUID]uuid.UUID),
		statuses: make(map[uuid.UUID]string),
	}
}

func (f *fakeCanonical) SetAccepted(_ context.Context, requestID, driverID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acceptErr != nil {
		err := f.acceptErr
		f.acceptErr = nil
		return err
	}
	f.accepted[requestID] = driverID
	return nil
}

func (f *fakeCanonical) SetStatus(_ context.Context, requestID uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[requestID] = status
	return nil
}

type fakePresence struct {
	mu    sync.Mutex
	stale map[uuid.UUID]bool
}

func newFakePresence() *fakePresence {
	return &fakePresence{stale: make(map[uuid.UUID]bool)}
}

func (f *fakePresence) IsFresh(_ context.Context, driverID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.stale[driverID], nil
}

type engineFixture struct {
	engine    *Engine
	store     *fakeStore
	queue     *fakeQueue
	timers    *fakeTimers
	notifier  *fakeNotifier
	canonical *fakeCanonical
	presence  *fakePresence
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		store:     newFakeStore(),
		queue:     newFakeQueue(),
		timers:    newFakeTimers(),
		notifier:  &fakeNotifier{},
		canonical: newFakeCanonical(),
		presence:  newFakePresence(),
	}
	f.engine = NewEngine(f.store, f.queue, f.timers, f.notifier, f.canonical, f.presence, nil, config.DefaultDispatchConfig())
	return f
}

func testDetails() *RideDetails {
	return &RideDetails{
		RequestID:       uuid.New(),
		PassengerID:     uuid.New(),
		PassengerName:   "Ada Passenger",
		Pickup:          Location{Latitude: 40.4093, Longitude: 49.8671, Address: "28 May St"},
		Dropoff:         Location{Latitude: 40.3772, Longitude: 49.8532, Address: "Port Baku"},
		DistanceKm:      4.2,
		DurationMinutes: 7,
		ProposedFare:    6.5,
		Priority:        "normal",
	}
}

func TestEngine_AcceptHappyPath(t *testing.T) {
	// Arrange
	f := newEngineFixture()
	ctx := context.Background()
	details := testDetails()
	driver := uuid.New()

	require.NoError(t, f.store.InitDispatch(ctx, details.RequestID))
	require.NoError(t, f.engine.Admit(ctx, details, []uuid.UUID{driver}))

	current, err := f.store.GetCurrentOfferee(ctx, details.RequestID)
	require.NoError(t, err)
	require.Equal(t, driver.String(), current)

	armed, ok := f.timers.armedFor(details.RequestID)
	require.True(t, ok)
	require.Equal(t, driver, armed)

	// Act
	applied, err := f.engine.Respond(ctx, details, driver, VerdictAccept, 6)

	// Assert
	require.NoError(t, err)
	assert.True(t, applied)

	status, _ := f.store.GetStatus(ctx, details.RequestID)
	assert.Equal(t, StatusAccepted, status)

	assigned, _ := f.store.GetAssignedDriver(ctx, details.RequestID)
	assert.Equal(t, driver.String(), assigned)

	eta, ok, _ := f.store.GetEta(ctx, details.RequestID)
	assert.True(t, ok)
	assert.Equal(t, 6, eta)

	assert.Equal(t, driver, f.canonical.accepted[details.RequestID])
	assert.Contains(t, f.notifier.kinds(), "ride_accepted")

	_, stillArmed := f.timers.armedFor(details.RequestID)
	assert.False(t, stillArmed)
}

func TestEngine_DeclineCascadesToNextCandidate(t *testing.T) {
	// Arrange
	f := newEngineFixture()
	ctx := context.Background()
	details := testDetails()
	first, second := uuid.New(), uuid.New()

	require.NoError(t, f.store.InitDispatch(ctx, details.RequestID))
	require.NoError(t, f.engine.Admit(ctx, details, []uuid.UUID{first, second}))

	// Act
	applied, err := f.engine.Respond(ctx, details, first, VerdictDecline, 0)

	// Assert
	require.NoError(t, err)
	assert.True(t, applied)

	current, _ := f.store.GetCurrentOfferee(ctx, details.RequestID)
	assert.Equal(t, second.String(), current)

	responses, _ := f.store.Responses(ctx, details.RequestID)
	require.Len(t, responses, 1)
	assert.Equal(t, first, responses[0].DriverID)
	assert.Equal(t, ResponseDecline, responses[0].Response)

	status, _ := f.store.GetStatus(ctx, details.RequestID)
	assert.Equal(t, StatusPending, status)
}

func TestEngine_TimeoutCascadesAndLogsEntry(t *testing.T) {
	// Arrange
	f := newEngineFixture()
	ctx := context.Background()
	details := testDetails()
	first, second := uuid.New(), uuid.New()

	require.NoError(t, f.store.InitDispatch(ctx, details.RequestID))
	require.NoError(t, f.engine.Admit(ctx, details, []uuid.UUID{first, second}))

	// Act
	require.NoError(t, f.engine.Timeout(ctx, details, first))

	// Assert
	current, _ := f.store.GetCurrentOfferee(ctx, details.RequestID)
	assert.Equal(t, second.String(), current)

	responses, _ := f.store.Responses(ctx, details.RequestID)
	require.Len(t, responses, 1)
	assert.Equal(t, ResponseTimeout, responses[0].Response)

	assert.Contains(t, f.notifier.kinds(), "ride_request_expired")
}

func TestEngine_ExhaustionAfterAllDecline(t *testing.T) {
	// Arrange
	f := newEngineFixture()
	ctx := context.Background()
	details := testDetails()
	first, second := uuid.New(), uuid.New()

	require.NoError(t, f.store.InitDispatch(ctx, details.RequestID))
	require.NoError(t, f.engine.Admit(ctx, details, []uuid.UUID{first, second}))

	// Act
	applied, err := f.engine.Respond(ctx, details, first, VerdictDecline, 0)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = f.engine.Respond(ctx, details, second, VerdictDecline, 0)
	require.NoError(t, err)
	require.True(t, applied)

	// Assert
	status, _ := f.store.GetStatus(ctx, details.RequestID)
	assert.Equal(t, StatusNoDriversAvailable, status)
	assert.Equal(t, StatusNoDriversAvailable, f.canonical.statuses[details.RequestID])
	assert.Contains(t, f.notifier.kinds(), "no_drivers_available")
}

func TestEngine_AdmitWithNoCandidatesExhaustsImmediately(t *testing.T) {
	// Arrange
	f := newEngineFixture()
	ctx := context.Background()
	details := testDetails()
	require.NoError(t, f.store.InitDispatch(ctx, details.RequestID))

	// Act
	require.NoError(t, f.engine.Admit(ctx, details, nil))

	// Assert
	status, _ := f.store.GetStatus(ctx, details.RequestID)
	assert.Equal(t, StatusNoDriversAvailable, status)
	assert.Contains(t, f.notifier.kinds(), "no_drivers_available")
}

func TestEngine_RespondFromWrongDriverRejected(t *testing.T) {
	// Arrange
	f := newEngineFixture()
	ctx := context.Background()
	details := testDetails()
	offered, intruder := uuid.New(), uuid.New()

	require.NoError(t, f.store.InitDispatch(ctx, details.RequestID))
	require.NoError(t, f.engine.Admit(ctx, details, []uuid.UUID{offered}))

	// Act
	applied, err := f.engine.Respond(ctx, details, intruder, VerdictAccept, 5)

	// Assert
	require.NoError(t, err)
	assert.False(t, applied)

	// The open offer is untouched.
	current, _ := f.store.GetCurrentOfferee(ctx, details.RequestID)
	assert.Equal(t, offered.String(), current)

	status, _ := f.store.GetStatus(ctx, details.RequestID)
	assert.Equal(t, StatusPending, status)
}

func TestEngine_RepeatedAcceptDoesNotReapply(t *testing.T) {
	// Arrange
	f := newEngineFixture()
	ctx := context.Background()
	details := testDetails()
	driver := uuid.New()

	require.NoError(t, f.store.InitDispatch(ctx, details.RequestID))
	require.NoError(t, f.engine.Admit(ctx, details, []uuid.UUID{driver}))

	applied, err := f.engine.Respond(ctx, details, driver, VerdictAccept, 5)
	require.NoError(t, err)
	require.True(t, applied)

	// Act: the winning driver retries, then a different driver tries. Neither
	// applies anything; only the first accept did.
	retry, err := f.engine.Respond(ctx, details, driver, VerdictAccept, 5)
	require.NoError(t, err)
	other, err := f.engine.Respond(ctx, details, uuid.New(), VerdictAccept, 5)
	require.NoError(t, err)

	// Assert
	assert.False(t, retry)
	assert.False(t, other)

	assigned, _ := f.store.GetAssignedDriver(ctx, details.RequestID)
	assert.Equal(t, driver.String(), assigned)

	responses, _ := f.store.Responses(ctx, details.RequestID)
	assert.Len(t, responses, 1)
}

func TestEngine_ConcurrentAcceptsApplyOnce(t *testing.T) {
	// Arrange
	f := newEngineFixture()
	ctx := context.Background()
	details := testDetails()
	driver := uuid.New()

	require.NoError(t, f.store.InitDispatch(ctx, details.RequestID))
	require.NoError(t, f.engine.Admit(ctx, details, []uuid.UUID{driver}))

	// Act: the same driver races two accepts for one offer.
	const racers = 8
	results := make([]bool, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			applied, err := f.engine.Respond(ctx, details, driver, VerdictAccept, 5)
			assert.NoError(t, err)
			results[i] = applied
		}(i)
	}
	wg.Wait()

	// Assert: exactly one call applied the accept.
	appliedCount := 0
	for _, applied := range results {
		if applied {
			appliedCount++
		}
	}
	assert.Equal(t, 1, appliedCount)

	assigned, _ := f.store.GetAssignedDriver(ctx, details.RequestID)
	assert.Equal(t, driver.String(), assigned)
}

func TestEngine_AcceptRetryAfterCanonicalFailure(t *testing.T) {
	// Arrange: the canonical write fails on the first accept.
	f := newEngineFixture()
	ctx := context.Background()
	details := testDetails()
	driver := uuid.New()

	require.NoError(t, f.store.InitDispatch(ctx, details.RequestID))
	require.NoError(t, f.engine.Admit(ctx, details, []uuid.UUID{driver}))

	f.canonical.mu.Lock()
	f.canonical.acceptErr = errors.New("canonical store unavailable")
	f.canonical.mu.Unlock()

	// Act
	applied, err := f.engine.Respond(ctx, details, driver, VerdictAccept, 5)

	// Assert: the failed accept surfaces the error and the driver keeps the
	// offer, so a retry of the same accept applies cleanly.
	require.Error(t, err)
	assert.False(t, applied)

	current, _ := f.store.GetCurrentOfferee(ctx, details.RequestID)
	assert.Equal(t, driver.String(), current)

	status, _ := f.store.GetStatus(ctx, details.RequestID)
	assert.Equal(t, StatusPending, status)

	retry, err := f.engine.Respond(ctx, details, driver, VerdictAccept, 5)
	require.NoError(t, err)
	assert.True(t, retry)

	status, _ = f.store.GetStatus(ctx, details.RequestID)
	assert.Equal(t, StatusAccepted, status)
	assert.Equal(t, driver, f.canonical.accepted[details.RequestID])

	assigned, _ := f.store.GetAssignedDriver(ctx, details.RequestID)
	assert.Equal(t, driver.String(), assigned)
}

func TestEngine_StaleCandidateSkippedLikeDecline(t *testing.T) {
	// Arrange
	f := newEngineFixture()
	ctx := context.Background()
	details := testDetails()
	stale, live := uuid.New(), uuid.New()
	f.presence.stale[stale] = true

	require.NoError(t, f.store.InitDispatch(ctx, details.RequestID))

	// Act
	require.NoError(t, f.engine.Admit(ctx, details, []uuid.UUID{stale, live}))

	// Assert: the stale candidate never got the offer.
	current, _ := f.store.GetCurrentOfferee(ctx, details.RequestID)
	assert.Equal(t, live.String(), current)

	responses, _ := f.store.Responses(ctx, details.RequestID)
	require.Len(t, responses, 1)
	assert.Equal(t, stale, responses[0].DriverID)
	assert.Equal(t, ResponseDecline, responses[0].Response)
}

func TestEngine_TimeoutAfterResolutionIsNoOp(t *testing.T) {
	// Arrange
	f := newEngineFixture()
	ctx := context.Background()
	details := testDetails()
	driver := uuid.New()

	require.NoError(t, f.store.InitDispatch(ctx, details.RequestID))
	require.NoError(t, f.engine.Admit(ctx, details, []uuid.UUID{driver}))

	applied, err := f.engine.Respond(ctx, details, driver, VerdictAccept, 5)
	require.NoError(t, err)
	require.True(t, applied)

	// Act: a late timer fires after the accept already won.
	require.NoError(t, f.engine.Timeout(ctx, details, driver))

	// Assert
	status, _ := f.store.GetStatus(ctx, details.RequestID)
	assert.Equal(t, StatusAccepted, status)

	responses, _ := f.store.Responses(ctx, details.RequestID)
	require.Len(t, responses, 1)
	assert.Equal(t, ResponseAccept, responses[0].Response)
}

func TestEngine_TimeoutForSupersededDriverIsNoOp(t *testing.T) {
	// Arrange
	f := newEngineFixture()
	ctx := context.Background()
	details := testDetails()
	first, second := uuid.New(), uuid.New()

	require.NoError(t, f.store.InitDispatch(ctx, details.RequestID))
	require.NoError(t, f.engine.Admit(ctx, details, []uuid.UUID{first, second}))

	applied, err := f.engine.Respond(ctx, details, first, VerdictDecline, 0)
	require.NoError(t, err)
	require.True(t, applied)

	// Act: the first driver's stale timer fires while the second holds the
	// offer.
	require.NoError(t, f.engine.Timeout(ctx, details, first))

	// Assert: no timeout entry was added for the superseded driver.
	responses, _ := f.store.Responses(ctx, details.RequestID)
	require.Len(t, responses, 1)
	assert.Equal(t, ResponseDecline, responses[0].Response)

	current, _ := f.store.GetCurrentOfferee(ctx, details.RequestID)
	assert.Equal(t, second.String(), current)
}

func TestEngine_SyntheticTimeoutOnlyOncePerOffer(t *testing.T) {
	// Arrange: the offeree key expired with a dead worker, leaving no current
	// offeree. The sweeper path synthesizes the timeout exactly once.
	f := newEngineFixture()
	ctx := context.Background()
	details := testDetails()
	first, second := uuid.New(), uuid.New()

	require.NoError(t, f.store.InitDispatch(ctx, details.RequestID))
	_, err := f.queue.Seed(ctx, details.RequestID, []uuid.UUID{second})
	require.NoError(t, err)
	require.NoError(t, f.store.RecordOffer(ctx, details.RequestID, first))

	// Act
	require.NoError(t, f.engine.Timeout(ctx, details, first))
	require.NoError(t, f.engine.Timeout(ctx, details, first))

	// Assert: one timeout entry for the dead offer, offer moved to second.
	responses, _ := f.store.Responses(ctx, details.RequestID)
	require.Len(t, responses, 1)
	assert.Equal(t, first, responses[0].DriverID)
	assert.Equal(t, ResponseTimeout, responses[0].Response)

	current, _ := f.store.GetCurrentOfferee(ctx, details.RequestID)
	assert.Equal(t, second.String(), current)
}

func TestEngine_CancelPendingRequest(t *testing.T) {
	// Arrange
	f := newEngineFixture()
	ctx := context.Background()
	details := testDetails()
	driver := uuid.New()

	require.NoError(t, f.store.InitDispatch(ctx, details.RequestID))
	require.NoError(t, f.engine.Admit(ctx, details, []uuid.UUID{driver}))

	// Act
	applied, err := f.engine.Cancel(ctx, details.RequestID)

	// Assert
	require.NoError(t, err)
	assert.True(t, applied)

	status, _ := f.store.GetStatus(ctx, details.RequestID)
	assert.Equal(t, StatusCancelled, status)

	// Terminal state holds against a second cancel and a late response.
	again, err := f.engine.Cancel(ctx, details.RequestID)
	require.NoError(t, err)
	assert.False(t, again)

	late, err := f.engine.Respond(ctx, details, driver, VerdictAccept, 5)
	require.NoError(t, err)
	assert.False(t, late)
}
