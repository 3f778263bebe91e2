package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/Suraj-B12/HLS-Monitor/internal/monitor/playlist"
)

func TestScheduler_sweepOnce_pollsEveryKnownStream(t *testing.T) {
	streams := NewInMemoryStreamStore()
	streams.Seed(&StreamRecord{ID: "a", URL: "http://127.0.0.1:1"})
	streams.Seed(&StreamRecord{ID: "b", URL: "http://127.0.0.1:1"})

	eval := &Evaluator{
		Fetcher:   playlist.NewFetcher(time.Second),
		PollCache: NewPollCache(),
		Streams:   streams,
		Events:    NewInMemoryEventBus(),
		Clock:     SystemClock,
	}
	sched := &Scheduler{Streams: streams, Evaluator: eval}

	sched.sweepOnce(context.Background())

	for _, id := range []StreamID{"a", "b"} {
		rec, err := streams.GetStream(id)
		if err != nil {
			t.Fatalf("GetStream(%s): %v", id, err)
		}
		if rec.Status != StatusError {
			t.Errorf("stream %s Status = %v, want error (connection refused)", id, rec.Status)
		}
		if len(rec.StreamErrors) != 1 || rec.StreamErrors[0].ErrorType != ErrorManifestRetrieval {
			t.Errorf("stream %s expected one Manifest Retrieval entry, got %+v", id, rec.StreamErrors)
		}
	}
}

func TestScheduler_sweepOnce_singleFlightGuard(t *testing.T) {
	streams := NewInMemoryStreamStore()
	streams.Seed(&StreamRecord{ID: "a", URL: "http://127.0.0.1:1"})
	eval := &Evaluator{Streams: streams, Clock: SystemClock}
	sched := &Scheduler{Streams: streams, Evaluator: eval}

	sched.inFlight.Store(true)
	sched.sweepOnce(context.Background()) // must no-op: a sweep is already marked in flight

	rec, _ := streams.GetStream("a")
	if len(rec.StreamErrors) != 0 {
		t.Errorf("expected sweepOnce to no-op while inFlight, but stream was polled: %+v", rec.StreamErrors)
	}
}

func TestScheduler_sweepOnce_recoversFromListStreamsError(t *testing.T) {
	sched := &Scheduler{Streams: erroringStreamStore{}, Evaluator: &Evaluator{}}
	sched.sweepOnce(context.Background()) // must not panic
}

func TestScheduler_sweepOnce_firesOnSweepDurationExactlyOnce(t *testing.T) {
	streams := NewInMemoryStreamStore()
	streams.Seed(&StreamRecord{ID: "a", URL: "http://127.0.0.1:1"})
	eval := &Evaluator{Streams: streams, Clock: SystemClock}

	calls := 0
	var lastDuration time.Duration
	sched := &Scheduler{
		Streams:   streams,
		Evaluator: eval,
		OnSweepDuration: func(d time.Duration) {
			calls++
			lastDuration = d
		},
	}

	sched.sweepOnce(context.Background())

	if calls != 1 {
		t.Fatalf("OnSweepDuration called %d times, want 1", calls)
	}
	if lastDuration < 0 {
		t.Errorf("sweep duration = %v, want >= 0", lastDuration)
	}
}

func TestScheduler_sweepOnce_firesOnSweepDurationEvenOnListStreamsError(t *testing.T) {
	calls := 0
	sched := &Scheduler{
		Streams:         erroringStreamStore{},
		Evaluator:       &Evaluator{},
		OnSweepDuration: func(time.Duration) { calls++ },
	}
	sched.sweepOnce(context.Background())
	if calls != 1 {
		t.Fatalf("OnSweepDuration called %d times, want 1", calls)
	}
}

func TestScheduler_sweepOnce_skipsOnSweepDurationWhileInFlight(t *testing.T) {
	streams := NewInMemoryStreamStore()
	eval := &Evaluator{Streams: streams, Clock: SystemClock}
	calls := 0
	sched := &Scheduler{
		Streams:         streams,
		Evaluator:       eval,
		OnSweepDuration: func(time.Duration) { calls++ },
	}

	sched.inFlight.Store(true)
	sched.sweepOnce(context.Background())

	if calls != 0 {
		t.Errorf("OnSweepDuration called %d times while inFlight, want 0", calls)
	}
}

func TestScheduler_Run_stopsOnContextCancel(t *testing.T) {
	streams := NewInMemoryStreamStore()
	eval := &Evaluator{Streams: streams, Clock: SystemClock}
	sched := &Scheduler{Streams: streams, Evaluator: eval, PollInterval: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Scheduler.Run did not stop after context cancellation")
	}
}

type erroringStreamStore struct{ StreamStore }

func (erroringStreamStore) ListStreams() ([]*StreamRecord, error) {
	return nil, errListFailed
}

var errListFailed = &testError{"list failed"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
