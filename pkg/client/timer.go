package client

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TimerEvent is a discrete countdown transition. Consumers subscribe to
// events instead of polling remaining time, so reacting to time is decoupled
// from telling it.
type TimerEvent string

const (
	EventWarning TimerEvent = "warning"
	EventUrgent  TimerEvent = "urgent"
	EventExpired TimerEvent = "expired"
)

// TimerConfig tunes thresholds and tick rate. Zero values fall back to the
// defaults: warning at five minutes, urgent at one, ticking once per second.
type TimerConfig struct {
	WarningAt time.Duration
	UrgentAt  time.Duration
	Tick      time.Duration

	// OnExpire runs once after EventExpired is emitted, typically wired to
	// the submit call with timed-out semantics.
	OnExpire func()

	// now is swapped out in tests.
	now func() time.Time
}

const (
	defaultWarningAt = 5 * time.Minute
	defaultUrgentAt  = time.Minute
	defaultTick      = time.Second
)

// AttemptTimer counts down to an absolute deadline. The deadline is computed
// once from the attempt's start and persisted through the AttemptStore, so a
// reload or a second tab reads the same deadline instead of restarting the
// countdown.
type AttemptTimer struct {
	store     *AttemptStore
	attemptID uint
	deadline  time.Time
	cfg       TimerConfig

	events   chan TimerEvent
	stop     chan struct{}
	stopOnce sync.Once
}

// NewAttemptTimer resolves the deadline for the attempt: a previously
// persisted deadline wins over recomputing from startedAt + limit.
func NewAttemptTimer(store *AttemptStore, attemptID uint, startedAt time.Time, limit time.Duration, cfg TimerConfig) (*AttemptTimer, error) {
	if cfg.WarningAt <= 0 {
		cfg.WarningAt = defaultWarningAt
	}
	if cfg.UrgentAt <= 0 {
		cfg.UrgentAt = defaultUrgentAt
	}
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}

	deadline, ok, err := store.Deadline(attemptID)
	if err != nil {
		return nil, err
	}
	if !ok {
		deadline = startedAt.Add(limit)
		if err := store.SetDeadline(attemptID, deadline); err != nil {
			return nil, err
		}
	}

	return &AttemptTimer{
		store:     store,
		attemptID: attemptID,
		deadline:  deadline,
		cfg:       cfg,
		events:    make(chan TimerEvent, 3),
		stop:      make(chan struct{}),
	}, nil
}

// Deadline returns the absolute end time the timer counts down to.
func (t *AttemptTimer) Deadline() time.Time {
	return t.deadline
}

// Remaining returns the time left, never negative.
func (t *AttemptTimer) Remaining() time.Duration {
	r := t.deadline.Sub(t.cfg.now())
	if r < 0 {
		return 0
	}
	return r
}

// Events delivers each transition at most once. The channel is closed after
// EventExpired or Stop.
func (t *AttemptTimer) Events() <-chan TimerEvent {
	return t.events
}

// Start begins ticking in a goroutine. Thresholds already passed at start
// fire immediately so a resumed attempt shows the right state.
func (t *AttemptTimer) Start() {
	go t.run()
}

// Stop ends ticking without expiring the attempt.
func (t *AttemptTimer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *AttemptTimer) run() {
	ticker := time.NewTicker(t.cfg.Tick)
	defer ticker.Stop()
	defer close(t.events)

	var warned, urgent bool
	for {
		remaining := t.deadline.Sub(t.cfg.now())
		if remaining <= 0 {
			t.emit(EventExpired)
			if err := t.store.ClearDeadline(t.attemptID); err != nil {
				log.Warn().Err(err).Uint("attempt_id", t.attemptID).Msg("Failed to clear stored deadline")
			}
			if t.cfg.OnExpire != nil {
				t.cfg.OnExpire()
			}
			return
		}
		if !urgent && remaining <= t.cfg.UrgentAt {
			urgent, warned = true, true
			t.emit(EventUrgent)
		} else if !warned && remaining <= t.cfg.WarningAt {
			warned = true
			t.emit(EventWarning)
		}

		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}
	}
}

func (t *AttemptTimer) emit(ev TimerEvent) {
	select {
	case t.events <- ev:
	default:
		log.Debug().Str("event", string(ev)).Msg("Timer event dropped, no listener")
	}
}
