// Package reconnect implements the exponential-backoff-with-jitter
// scheduler of §4.3: at most one timer armed at any instant, generation-
// aware, observable.
package reconnect

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Reason identifies why a reconnect was scheduled.
type Reason string

const (
	ReasonSocketClose     Reason = "socket_close"
	ReasonSocketError     Reason = "socket_error"
	ReasonConnectError    Reason = "connect_error"
	ReasonOpenSocketThrow Reason = "open_socket_throw"
	ReasonManualClose     Reason = "manual_close"
)

// RetryContext is passed to Config.ShouldRetry.
type RetryContext struct {
	Attempt int
	Reason  Reason
	Err     error
}

// Event is emitted to the observer every time the scheduler arms a
// timer.
type Event struct {
	Attempt   int
	NextDelay time.Duration
	Reason    Reason
	Err       error
}

// Config configures the scheduler. Zero-value fields are normalized to
// their documented defaults by NewScheduler.
type Config struct {
	Enabled        bool
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterRatio    float64
	ShouldRetry    func(RetryContext) bool

	// Rand supplies the uniform sample in [0,1) used to derive the
	// jitter draw in [-1,1). Defaults to rand.Float64. Tests inject a
	// fixed source for deterministic assertions.
	Rand func() float64
}

// DefaultConfig returns the §4.3 documented defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		JitterRatio:  0.2,
	}
}

func normalize(cfg Config) Config {
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}
	return cfg
}

// Delay computes the backoff delay for the 1-based attempt n, per the
// formula in §4.3. It is a pure function so the boundary behaviors of
// §8 can be tested without a running scheduler.
func Delay(cfg Config, n int, sample float64) time.Duration {
	cfg = normalize(cfg)

	base := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(n-1))
	if base > float64(cfg.MaxDelay) {
		base = float64(cfg.MaxDelay)
	}

	if cfg.JitterRatio == 0 {
		return time.Duration(math.Floor(base))
	}

	r := sample*2 - 1 // map [0,1) to [-1,1)
	jittered := base * (1 + r*cfg.JitterRatio)
	if jittered < 0 {
		jittered = 0
	}
	if jittered > float64(cfg.MaxDelay) {
		jittered = float64(cfg.MaxDelay)
	}
	return time.Duration(math.Floor(jittered))
}

// Scheduler arms and tracks the single reconnect timer.
type Scheduler struct {
	cfg      Config
	observer func(Event)

	mu          sync.Mutex
	attempt     int
	timer       *time.Timer
	manualClose bool
}

// New creates a Scheduler. observer may be nil.
func New(cfg Config, observer func(Event)) *Scheduler {
	return &Scheduler{cfg: normalize(cfg), observer: observer}
}

// Attempt returns the current attempt counter (0 when idle/connected).
func (s *Scheduler) Attempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// IsArmed reports whether a timer is currently pending.
func (s *Scheduler) IsArmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// ResetAttempt sets the attempt counter to 0. Called on successful open.
func (s *Scheduler) ResetAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt = 0
}

// AllowReconnect clears manual-close, permitting Schedule to arm timers
// again. Called at the start of a fresh connect().
func (s *Scheduler) AllowReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manualClose = false
}

// Cancel cancels any armed timer. Idempotent.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// ManualClose cancels any armed timer and prevents further scheduling
// until AllowReconnect is called again by a new connect().
func (s *Scheduler) ManualClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manualClose = true
	s.cancelLocked()
}

// Schedule arms a reconnect timer that calls fire when it elapses,
// unless: a timer is already armed, the scheduler is disabled, manual
// close is in effect, or ShouldRetry rejects the current context. It
// returns true if a timer was armed.
func (s *Scheduler) Schedule(reason Reason, err error, fire func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		return false
	}
	if !s.cfg.Enabled || s.manualClose {
		return false
	}

	s.attempt++
	rctx := RetryContext{Attempt: s.attempt, Reason: reason, Err: err}
	if s.cfg.ShouldRetry != nil && !s.cfg.ShouldRetry(rctx) {
		s.attempt--
		return false
	}

	delay := Delay(s.cfg, s.attempt, s.cfg.Rand())

	if s.observer != nil {
		s.observer(Event{Attempt: s.attempt, NextDelay: delay, Reason: reason, Err: err})
	}

	s.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.timer = nil
		s.mu.Unlock()
		fire()
	})
	return true
}
