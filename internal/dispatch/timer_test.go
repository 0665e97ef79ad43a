package dispatch

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTimerSet_FiresAfterDuration(t *testing.T) {
	ts := NewTimerSet()
	requestID := uuid.New()

	fired := make(chan struct{})
	ts.Arm(requestID, uuid.New(), 10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	assert.False(t, ts.Armed(requestID))
}

func TestTimerSet_DisarmPreventsFire(t *testing.T) {
	ts := NewTimerSet()
	requestID := uuid.New()

	var fired atomic.Bool
	ts.Arm(requestID, uuid.New(), 20*time.Millisecond, func() { fired.Store(true) })
	ts.Disarm(requestID)

	time.Sleep(60 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.False(t, ts.Armed(requestID))
}

func TestTimerSet_ArmReplacesExistingTimer(t *testing.T) {
	ts := NewTimerSet()
	requestID := uuid.New()

	var firstFired, secondFired atomic.Bool
	ts.Arm(requestID, uuid.New(), 20*time.Millisecond, func() { firstFired.Store(true) })
	ts.Arm(requestID, uuid.New(), 10*time.Millisecond, func() { secondFired.Store(true) })

	time.Sleep(80 * time.Millisecond)
	assert.False(t, firstFired.Load())
	assert.True(t, secondFired.Load())
}

func TestTimerSet_ShutdownStopsEverything(t *testing.T) {
	ts := NewTimerSet()

	var fired atomic.Bool
	ts.Arm(uuid.New(), uuid.New(), 20*time.Millisecond, func() { fired.Store(true) })
	ts.Shutdown()

	// Arming after shutdown is rejected.
	rejected := uuid.New()
	ts.Arm(rejected, uuid.New(), time.Millisecond, func() { fired.Store(true) })

	time.Sleep(60 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.False(t, ts.Armed(rejected))
}
