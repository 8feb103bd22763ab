package tasks

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modmail/internal/shared/logger"
)

func TestTrackerDrainWhenIdle(t *testing.T) {
	tracker := NewTracker()

	select {
	case <-tracker.Drain():
	case <-time.After(time.Second):
		t.Fatal("drain of an idle tracker should resolve immediately")
	}
}

func TestTrackerDrainWaitsForInflight(t *testing.T) {
	tracker := NewTracker()
	log := logger.NewLogger()

	release := make(chan struct{})
	var finished atomic.Int32
	for i := 0; i < 5; i++ {
		tracker.Go(log, "unit", func() {
			<-release
			finished.Add(1)
		})
	}

	drained := tracker.Drain()
	select {
	case <-drained:
		t.Fatal("drain resolved while work was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("drain did not resolve after all work finished")
	}
	assert.Equal(t, int32(5), finished.Load())
	assert.Equal(t, 0, tracker.InFlight())
}

func TestTrackerDecrementsOnPanic(t *testing.T) {
	tracker := NewTracker()
	log := logger.NewLogger()

	tracker.Go(log, "panicking-unit", func() {
		panic("boom")
	})

	select {
	case <-tracker.Drain():
	case <-time.After(time.Second):
		t.Fatal("panicking unit did not release its tracker slot")
	}
	require.Equal(t, 0, tracker.InFlight())
}

func TestTrackerReusableAfterDrain(t *testing.T) {
	tracker := NewTracker()
	log := logger.NewLogger()

	tracker.Go(log, "unit", func() {})
	<-tracker.Drain()

	done := make(chan struct{})
	tracker.Go(log, "unit", func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tracker did not run work after a previous drain")
	}
	<-tracker.Drain()
}
