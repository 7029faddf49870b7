package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the breaker refuses a call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker state. Its numeric value is exported as the
// store_breaker_state gauge.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

var stateNames = [...]string{Closed: "closed", Open: "open", HalfOpen: "half_open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// window counts outcomes observed while closed.
type window struct {
	ok, failed int
}

func (w *window) add(success bool) {
	if success {
		w.ok++
	} else {
		w.failed++
	}
}

func (w window) total() int { return w.ok + w.failed }

func (w window) ratio() float64 {
	if w.total() == 0 {
		return 0
	}
	return float64(w.failed) / float64(w.total())
}

// decay halves both counters so older outcomes weigh less.
func (w *window) decay() {
	w.ok = (w.ok + 1) / 2
	w.failed = (w.failed + 1) / 2
}

// Breaker is a failure-ratio circuit breaker guarding one ledger backend.
// It opens once minRequests outcomes were seen and the failure ratio reaches
// the threshold, then admits a single probe after openFor.
type Breaker struct {
	minRequests int
	threshold   float64
	openFor     time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    State
	seen     window
	openedAt time.Time
	target   string
	logger   zerolog.Logger
}

// NewBreaker clamps its inputs to usable values.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	b := &Breaker{
		minRequests: max(minRequests, 1),
		threshold:   failureRatio,
		openFor:     openFor,
		now:         time.Now,
		target:      "default",
		logger:      zerolog.Nop(),
	}
	switch {
	case b.threshold <= 0:
		b.threshold = 0.5
	case b.threshold > 1:
		b.threshold = 1
	}
	if b.openFor <= 0 {
		b.openFor = 30 * time.Second
	}
	return b
}

// WithTarget names the guarded backend in metrics and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t := strings.TrimSpace(target); t != "" {
		b.target = t
	}
	BreakerState.WithLabelValues(b.target).Set(float64(b.state))
	return b
}

// WithLogger sets the fallback logger for transition events.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. The first call after the
// cool-off moves the breaker to half-open and is the probe.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Open {
		return true
	}
	if b.now().Sub(b.openedAt) < b.openFor {
		return false
	}
	b.moveLocked(ctx, HalfOpen)
	return true
}

// Report records the outcome of an admitted call.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
	case HalfOpen:
		if success {
			b.moveLocked(ctx, Closed)
		} else {
			b.moveLocked(ctx, Open)
		}
	case Closed:
		b.seen.add(success)
		switch {
		case b.seen.total() < b.minRequests:
		case b.seen.ratio() >= b.threshold:
			b.moveLocked(ctx, Open)
		case b.seen.total() > 2*b.minRequests:
			b.seen.decay()
		}
	}
}

// Do runs fn when the breaker admits it. failed decides which errors count
// against the backend; nil counts every error.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error, failed func(error) bool) error {
	if !b.Allow(ctx) {
		return ErrOpenCircuit
	}
	err := fn(ctx)
	ok := err == nil || (failed != nil && !failed(err))
	b.Report(ctx, ok)
	return err
}

func (b *Breaker) moveLocked(ctx context.Context, next State) {
	prev := b.state
	b.state = next
	b.seen = window{}
	if next == Open {
		b.openedAt = b.now()
	}
	BreakerState.WithLabelValues(b.target).Set(float64(next))
	if prev == next {
		return
	}
	BreakerTransitions.WithLabelValues(b.target, prev.String(), next.String()).Inc()

	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &b.logger
	}
	evt := logger.Warn().Str("target", b.target).Stringer("from_state", prev).Stringer("to_state", next)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("store breaker state changed")
}
