// Package capture arbitrates exclusive access to the microphone between the
// operator speaking, the system replying, and the system speaking aloud.
//
// The arbiter is a three-state machine: Disarmed, ArmedIdle (listening), and
// ArmedSuspended (armed but paused while the system is active). A silence
// debounce auto-submits the captured utterance; suspension takes effect
// immediately when the system becomes active, and listening resumes after a
// short grace delay once it goes quiet.
package capture

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vl-adk/go-console/internal/clock"
)

// Default timing constants.
const (
	// DefaultDebounce is the silence window after which a captured
	// utterance is auto-submitted.
	DefaultDebounce = 1500 * time.Millisecond

	// DefaultGrace is the pause between the system going quiet and
	// capture restarting, so the tail of playback is not captured.
	DefaultGrace = 500 * time.Millisecond
)

// State is the arbiter's position in its state machine.
type State int

const (
	// Disarmed means capture is off and will not auto-resume.
	Disarmed State = iota

	// ArmedIdle means the capture device is live and listening.
	ArmedIdle

	// ArmedSuspended means the operator wants capture but the system is
	// speaking or replying, so the device is paused.
	ArmedSuspended
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case Disarmed:
		return "disarmed"
	case ArmedIdle:
		return "armed-idle"
	case ArmedSuspended:
		return "armed-suspended"
	default:
		return "unknown"
	}
}

// Device is the capture hardware contract. Implementations push live
// transcript updates back into the arbiter via UpdateTranscript.
type Device interface {
	// Supported reports whether the runtime environment has a usable
	// capture device. When false the arbiter stays permanently Disarmed.
	Supported() bool

	// Start begins capturing.
	Start() error

	// Stop ends capturing.
	Stop()
}

// SubmitFunc receives the trimmed captured utterance when the silence
// debounce fires.
type SubmitFunc func(text string)

// Arbiter governs when the capture device is armed, listening, or
// suspended. All methods are safe for concurrent use.
type Arbiter struct {
	device Device
	submit SubmitFunc
	clock  clock.Clock
	logger *slog.Logger

	debounce time.Duration
	grace    time.Duration

	mu           sync.Mutex
	state        State
	systemActive bool
	partial      string
	supported    bool

	debounceTimer clock.Timer
	graceTimer    clock.Timer

	// generation invalidates timer callbacks scheduled before a state
	// change they must not act on.
	generation uint64
}

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithClock overrides the clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(a *Arbiter) {
		a.clock = c
	}
}

// WithDebounce overrides the silence debounce window.
func WithDebounce(d time.Duration) Option {
	return func(a *Arbiter) {
		a.debounce = d
	}
}

// WithGrace overrides the resume grace delay.
func WithGrace(d time.Duration) Option {
	return func(a *Arbiter) {
		a.grace = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Arbiter) {
		a.logger = logger.With("component", "capture")
	}
}

// New creates an arbiter for the given device. Submit is called with each
// auto-submitted utterance.
func New(device Device, submit SubmitFunc, opts ...Option) *Arbiter {
	a := &Arbiter{
		device:   device,
		submit:   submit,
		clock:    clock.System(),
		logger:   slog.Default().With("component", "capture"),
		debounce: DefaultDebounce,
		grace:    DefaultGrace,
		state:    Disarmed,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.supported = device != nil && device.Supported()
	if !a.supported {
		a.logger.Info("capture device unsupported, controls inert")
	}
	return a
}

// Supported reports the permanent capture capability flag.
func (a *Arbiter) Supported() bool {
	return a.supported
}

// State returns the current state.
func (a *Arbiter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Armed reports whether the operator has capture armed.
func (a *Arbiter) Armed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state != Disarmed
}

// Listening reports whether the device is live.
func (a *Arbiter) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == ArmedIdle
}

// Partial returns the live captured transcript.
func (a *Arbiter) Partial() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.partial
}

// Toggle flips the armed preference: Disarmed starts listening, any armed
// state disarms and discards the partial transcript. Inert when the device
// is unsupported.
func (a *Arbiter) Toggle() {
	if !a.supported {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != Disarmed {
		a.disarmLocked()
		return
	}

	if a.systemActive {
		// Armed while the system is talking: wait for it to finish.
		a.state = ArmedSuspended
		a.logger.Debug("armed while system active", "state", a.state)
		return
	}
	a.startListeningLocked()
}

// SetSystemActive tells the arbiter whether a reply is streaming or audio
// is in flight. Activation suspends capture immediately; deactivation
// resumes it after the grace delay if still armed.
func (a *Arbiter) SetSystemActive(active bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if active == a.systemActive {
		return
	}
	a.systemActive = active

	if active {
		a.cancelGraceLocked()
		if a.state == ArmedIdle {
			a.suspendLocked()
		}
		return
	}

	if a.state == ArmedSuspended {
		a.scheduleResumeLocked()
	}
}

// UpdateTranscript receives the device's live transcript. Each change in
// length re-arms the silence debounce while listening.
func (a *Arbiter) UpdateTranscript(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != ArmedIdle {
		return
	}
	if len(text) == len(a.partial) {
		a.partial = text
		return
	}
	a.partial = text
	a.armDebounceLocked()
}

// Reset forces the arbiter to Disarmed, clearing all timers and buffers.
// System-activity tracking survives so a later toggle behaves correctly.
func (a *Arbiter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Disarmed {
		a.disarmLocked()
	}
	a.partial = ""
}

// startListeningLocked transitions to ArmedIdle and starts the device.
func (a *Arbiter) startListeningLocked() {
	if err := a.device.Start(); err != nil {
		a.logger.Warn("capture device failed to start", "error", err)
		a.state = Disarmed
		return
	}
	a.state = ArmedIdle
	a.partial = ""
	a.logger.Debug("listening", "state", a.state)
}

// suspendLocked stops the device immediately, keeping the armed preference.
func (a *Arbiter) suspendLocked() {
	a.cancelDebounceLocked()
	a.device.Stop()
	a.state = ArmedSuspended
	a.logger.Debug("capture suspended", "state", a.state)
}

// disarmLocked stops everything and drops the partial transcript.
func (a *Arbiter) disarmLocked() {
	a.cancelDebounceLocked()
	a.cancelGraceLocked()
	if a.state == ArmedIdle {
		a.device.Stop()
	}
	a.state = Disarmed
	a.partial = ""
	a.generation++
	a.logger.Debug("disarmed", "state", a.state)
}

// scheduleResumeLocked arms the grace timer that restarts listening.
func (a *Arbiter) scheduleResumeLocked() {
	a.cancelGraceLocked()
	gen := a.generation
	a.graceTimer = a.clock.AfterFunc(a.grace, func() {
		a.resumeAfterGrace(gen)
	})
}

func (a *Arbiter) resumeAfterGrace(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.generation || a.state != ArmedSuspended || a.systemActive {
		return
	}
	a.startListeningLocked()
}

// armDebounceLocked restarts the silence debounce.
func (a *Arbiter) armDebounceLocked() {
	if a.debounceTimer != nil {
		a.debounceTimer.Reset(a.debounce)
		return
	}
	gen := a.generation
	a.debounceTimer = a.clock.AfterFunc(a.debounce, func() {
		a.debounceFired(gen)
	})
}

// debounceFired auto-submits the captured utterance after silence.
func (a *Arbiter) debounceFired(gen uint64) {
	a.mu.Lock()

	if gen != a.generation || a.state != ArmedIdle {
		a.mu.Unlock()
		return
	}

	text := strings.TrimSpace(a.partial)
	a.partial = ""
	if text == "" {
		a.mu.Unlock()
		return
	}

	// Stop capture; the reply cycle this submission starts will keep the
	// arbiter suspended, and listening resumes when it ends.
	a.device.Stop()
	a.state = ArmedSuspended
	submit := a.submit
	a.mu.Unlock()

	a.logger.Debug("auto-submitting captured utterance", "chars", len(text))
	if submit != nil {
		submit(text)
	}
}

func (a *Arbiter) cancelDebounceLocked() {
	if a.debounceTimer != nil {
		a.debounceTimer.Stop()
		a.debounceTimer = nil
	}
}

func (a *Arbiter) cancelGraceLocked() {
	if a.graceTimer != nil {
		a.graceTimer.Stop()
		a.graceTimer = nil
	}
}
