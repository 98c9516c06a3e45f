package speech_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vl-adk/go-console/internal/clock"
	"github.com/vl-adk/go-console/pkg/speech"
	"github.com/vl-adk/go-console/pkg/tts"
)

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestFIFOOrdering(t *testing.T) {
	var mu sync.Mutex
	var played []string

	mock := tts.NewMock()
	q := speech.New(mock, speech.WithSink(func(ctx context.Context, item speech.Item, audio *tts.AudioResult) error {
		mu.Lock()
		played = append(played, item.Text)
		mu.Unlock()
		return nil
	}))
	q.Start()
	defer q.Close()

	q.Enqueue(speech.Item{Text: "first", Author: "pilot"})
	q.Enqueue(speech.Item{Text: "second", Author: "director"})
	q.Enqueue(speech.Item{Text: "third", Author: "observer"})

	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(played) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first", "second", "third"}
	for i, text := range want {
		if played[i] != text {
			t.Errorf("position %d: expected %q, got %q", i, text, played[i])
		}
	}
}

func TestPlaybackSerialized(t *testing.T) {
	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0

	mock := &tts.Mock{
		SynthesizeFunc: func(ctx context.Context, req tts.Request) (*tts.AudioResult, error) {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			return &tts.AudioResult{Audio: []byte{0}}, nil
		},
	}

	q := speech.New(mock)
	q.Start()
	defer q.Close()

	for i := 0; i < 5; i++ {
		q.Enqueue(speech.Item{Text: "go", Author: "pilot"})
	}

	waitUntil(t, func() bool { return mock.CallCount("Synthesize") == 5 && !q.Speaking() })

	mu.Lock()
	defer mu.Unlock()
	if maxInFlight != 1 {
		t.Errorf("expected at most 1 concurrent playback, observed %d", maxInFlight)
	}
}

func TestSuspendSignaledBeforePlayback(t *testing.T) {
	var mu sync.Mutex
	var order []string

	mock := &tts.Mock{
		SynthesizeFunc: func(ctx context.Context, req tts.Request) (*tts.AudioResult, error) {
			mu.Lock()
			order = append(order, "synthesize")
			mu.Unlock()
			return &tts.AudioResult{Audio: []byte{0}}, nil
		},
	}

	q := speech.New(mock, speech.WithSuspendSignal(func() {
		mu.Lock()
		order = append(order, "suspend")
		mu.Unlock()
	}))
	q.Start()
	defer q.Close()

	q.Enqueue(speech.Item{Text: "hello", Author: "pilot"})
	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if order[0] != "suspend" || order[1] != "synthesize" {
		t.Errorf("expected suspend before synthesis, got %v", order)
	}
}

func TestVoiceResolution(t *testing.T) {
	mock := tts.NewMock()
	q := speech.New(mock)
	q.Start()
	defer q.Close()

	q.Enqueue(speech.Item{Text: "on station", Author: "observer"})
	waitUntil(t, func() bool { return mock.CallCount("Synthesize") == 1 })

	last := mock.LastCall()
	if last.Voice != tts.VoiceFor("observer") {
		t.Errorf("expected voice %q, got %q", tts.VoiceFor("observer"), last.Voice)
	}
}

func TestEmptyAfterTagStripDropped(t *testing.T) {
	mock := tts.NewMock()
	q := speech.New(mock)
	q.Start()
	defer q.Close()

	q.Enqueue(speech.Item{Text: "[pilot] ", Author: "pilot"})
	q.Enqueue(speech.Item{Text: "   ", Author: "pilot"})
	q.Enqueue(speech.Item{Text: "[pilot] real text", Author: "pilot"})

	waitUntil(t, func() bool { return mock.CallCount("Synthesize") == 1 })

	last := mock.LastCall()
	if last.Text != "real text" {
		t.Errorf("expected tags stripped from spoken text, got %q", last.Text)
	}
	if q.Pending() != 0 {
		t.Errorf("expected empty pending list, got %d", q.Pending())
	}
}

func TestDisabledEnqueueIsNoOp(t *testing.T) {
	mock := tts.NewMock()
	q := speech.New(mock)
	q.Start()
	defer q.Close()

	q.SetEnabled(false)
	q.Enqueue(speech.Item{Text: "never spoken", Author: "pilot"})

	time.Sleep(10 * time.Millisecond)
	if mock.CallCount("Synthesize") != 0 {
		t.Error("expected no synthesis while disabled")
	}
}

func TestDisableFlushesPendingNotInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var completed sync.WaitGroup
	completed.Add(1)

	mock := &tts.Mock{
		SynthesizeFunc: func(ctx context.Context, req tts.Request) (*tts.AudioResult, error) {
			close(started)
			<-release
			completed.Done()
			return &tts.AudioResult{Audio: []byte{0}}, nil
		},
	}

	q := speech.New(mock)
	q.Start()
	defer q.Close()

	q.Enqueue(speech.Item{Text: "in flight", Author: "pilot"})
	<-started

	q.Enqueue(speech.Item{Text: "pending 1", Author: "pilot"})
	q.Enqueue(speech.Item{Text: "pending 2", Author: "pilot"})
	q.Enqueue(speech.Item{Text: "pending 3", Author: "pilot"})

	q.SetEnabled(false)
	if q.Pending() != 0 {
		t.Errorf("expected pending flushed, got %d", q.Pending())
	}
	if !q.Speaking() {
		t.Error("in-flight item must not be cancelled by disable")
	}

	close(release)
	completed.Wait()
	waitUntil(t, func() bool { return !q.Speaking() })

	if mock.CallCount("Synthesize") != 1 {
		t.Errorf("expected only the in-flight item synthesized, got %d", mock.CallCount("Synthesize"))
	}
}

func TestPlaybackTimeoutKeepsQueueMoving(t *testing.T) {
	fake := clock.NewFake()
	firstStarted := make(chan struct{})
	var calls int
	var mu sync.Mutex

	mock := &tts.Mock{
		SynthesizeFunc: func(ctx context.Context, req tts.Request) (*tts.AudioResult, error) {
			mu.Lock()
			calls++
			first := calls == 1
			mu.Unlock()
			if first {
				close(firstStarted)
				<-ctx.Done() // playback signal lost
				return nil, ctx.Err()
			}
			return &tts.AudioResult{Audio: []byte{0}}, nil
		},
	}

	q := speech.New(mock, speech.WithClock(fake))
	q.Start()
	defer q.Close()

	q.Enqueue(speech.Item{Text: "stuck", Author: "pilot"})
	q.Enqueue(speech.Item{Text: "next", Author: "pilot"})

	<-firstStarted
	fake.Advance(speech.DefaultPlaybackTimeout)

	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 2
	})
	waitUntil(t, func() bool { return !q.Speaking() })
}

func TestItemFailureSwallowed(t *testing.T) {
	var mu sync.Mutex
	var calls int

	mock := &tts.Mock{
		SynthesizeFunc: func(ctx context.Context, req tts.Request) (*tts.AudioResult, error) {
			mu.Lock()
			calls++
			first := calls == 1
			mu.Unlock()
			if first {
				return nil, tts.WrapError("mock", tts.ErrEmptyText)
			}
			return &tts.AudioResult{Audio: []byte{0}}, nil
		},
	}

	q := speech.New(mock)
	q.Start()
	defer q.Close()

	q.Enqueue(speech.Item{Text: "fails", Author: "pilot"})
	q.Enqueue(speech.Item{Text: "succeeds", Author: "pilot"})

	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 2
	})

	if !q.Enabled() {
		t.Error("an ordinary item failure must not disable playback")
	}
}

func TestSustainedQuotaFailuresDisablePlayback(t *testing.T) {
	mock := tts.WithSynthesizeError(&tts.QuotaError{Provider: "mock", Message: "out of quota"})

	q := speech.New(mock, speech.WithFailureThreshold(3))
	q.Start()
	defer q.Close()

	for i := 0; i < 4; i++ {
		q.Enqueue(speech.Item{Text: "doomed", Author: "pilot"})
	}

	waitUntil(t, func() bool { return !q.Enabled() })

	if mock.CallCount("Synthesize") > 3 {
		t.Errorf("expected at most 3 attempts before disable, got %d", mock.CallCount("Synthesize"))
	}
	if q.Pending() != 0 {
		t.Errorf("expected pending flushed on disable, got %d", q.Pending())
	}
}

func TestSpeakingTransitions(t *testing.T) {
	var mu sync.Mutex
	var transitions []bool

	mock := tts.NewMock()
	q := speech.New(mock, speech.WithSpeakingFunc(func(speaking bool) {
		mu.Lock()
		transitions = append(transitions, speaking)
		mu.Unlock()
	}))
	q.Start()
	defer q.Close()

	q.Enqueue(speech.Item{Text: "one", Author: "pilot"})
	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(transitions) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if !transitions[0] || transitions[1] {
		t.Errorf("expected [true false], got %v", transitions)
	}
}
