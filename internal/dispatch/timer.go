package dispatch

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TimerSet tracks one in-process acceptance timer per request. Arming a
// request replaces any previous timer, so at most one fire is outstanding per
// request. Timers are process-local; the Sweeper provides durability when a
// worker dies with armed timers.
type TimerSet struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*offerTimer
	closed bool
}

type offerTimer struct {
	driverID uuid.UUID
	timer    *time.Timer
}

// NewTimerSet creates an empty timer set.
func NewTimerSet() *TimerSet {
	return &TimerSet{timers: make(map[uuid.UUID]*offerTimer)}
}

// Arm schedules fire after d for the offer (requestID, driverID), replacing
// any timer already armed for the request.
func (ts *TimerSet) Arm(requestID, driverID uuid.UUID, d time.Duration, fire func()) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.closed {
		return
	}

	if existing, ok := ts.timers[requestID]; ok {
		existing.timer.Stop()
	}

	ts.timers[requestID] = &offerTimer{
		driverID: driverID,
		timer: time.AfterFunc(d, func() {
			ts.remove(requestID, driverID)
			fire()
		}),
	}
}

// Disarm cancels any outstanding timer for a request.
func (ts *TimerSet) Disarm(requestID uuid.UUID) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if existing, ok := ts.timers[requestID]; ok {
		existing.timer.Stop()
		delete(ts.timers, requestID)
	}
}

// remove clears the bookkeeping entry when a timer fires, but only if it
// still belongs to the same offer (Arm may have replaced it).
func (ts *TimerSet) remove(requestID, driverID uuid.UUID) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if existing, ok := ts.timers[requestID]; ok && existing.driverID == driverID {
		delete(ts.timers, requestID)
	}
}

// Armed reports whether a timer is outstanding for the request.
func (ts *TimerSet) Armed(requestID uuid.UUID) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	_, ok := ts.timers[requestID]
	return ok
}

// Shutdown stops all outstanding timers and rejects further arming. Used on
// graceful shutdown so no fire races the process exit.
func (ts *TimerSet) Shutdown() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.closed = true
	for id, t := range ts.timers {
		t.timer.Stop()
		delete(ts.timers, id)
	}
}
