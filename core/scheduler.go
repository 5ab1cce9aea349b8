package core

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Controller changes a device's actual power state. Implementations are
// best-effort and must return promptly; a returned error is logged by the
// scheduler and the schedule proceeds regardless.
type Controller interface {
	SetOn(device string) error
	SetOff(device string) error
}

// ApplyCallback is invoked after each successful state application with the
// scheduled instant, the device and the state that was applied. May be nil.
type ApplyCallback func(when time.Time, device string, state PowerState)

var (
	ErrSchedulerRunning = errors.New("scheduler already running")
	ErrSchedulerStopped = errors.New("scheduler already stopped")
)

// PowerScheduler drives the power state of a single device from its schedule
// table. Start resolves the state that should currently be in force, applies
// it, then sleeps until the next event and applies that, indefinitely, until
// Stop is called. One goroutine per scheduler; schedulers share nothing.
type PowerScheduler struct {
	device  string
	table   *ScheduleTable
	ctrl    Controller
	onApply ApplyCallback
	log     zerolog.Logger

	// now is swapped out in tests.
	now func() time.Time

	mu      sync.Mutex
	running bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// NewPowerScheduler creates a scheduler for the table's device. It does not
// start it; call Start. onApply may be nil.
func NewPowerScheduler(table *ScheduleTable, ctrl Controller, logger zerolog.Logger, onApply ApplyCallback) *PowerScheduler {
	return &PowerScheduler{
		device:  table.Device(),
		table:   table,
		ctrl:    ctrl,
		onApply: onApply,
		log:     logger.With().Str("device", table.Device()).Logger(),
		now:     time.Now,
	}
}

func (s *PowerScheduler) Device() string {
	return s.device
}

// Start applies the currently scheduled state and begins the transition loop.
func (s *PowerScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSchedulerStopped
	}
	if s.running {
		return ErrSchedulerRunning
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	s.log.Info().Msg("starting scheduler")
	go s.run()
	return nil
}

// Stop terminates the loop without applying any further transitions and
// returns once it has exited. Idempotent; safe to call from any goroutine. A
// transition already being applied is not preempted.
func (s *PowerScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	wasRunning := s.running
	s.mu.Unlock()

	if !wasRunning {
		return
	}
	close(s.stop)
	<-s.done
	s.log.Info().Msg("stopped scheduler")
}

func (s *PowerScheduler) run() {
	defer close(s.done)

	now := s.now().UTC()
	ev, pos, wrapped := s.table.ResolveCurrent(TimeOfDayFrom(now))
	day := now
	if wrapped {
		// The event in force was the last one of the previous day.
		day = now.AddDate(0, 0, -1)
	}
	current := ev.Time.At(day)
	s.apply(current, ev)

	for {
		next, nextPos, dayOffset := s.table.NextAfter(pos)
		wake := next.Time.At(current.AddDate(0, 0, dayOffset))
		if !s.waitUntil(wake) {
			return
		}
		s.apply(wake, next)
		pos, current = nextPos, wake
	}
}

// waitUntil blocks until t or until Stop, whichever comes first, and reports
// whether the scheduler should keep going. An instant at or in the past
// completes immediately.
func (s *PowerScheduler) waitUntil(t time.Time) bool {
	delay := t.Sub(s.now())
	if delay <= 0 {
		select {
		case <-s.stop:
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.stop:
		return false
	}
}

func (s *PowerScheduler) apply(when time.Time, ev ScheduleEvent) {
	var err error
	switch ev.State {
	case PowerOn:
		err = s.ctrl.SetOn(s.device)
	case PowerOff:
		err = s.ctrl.SetOff(s.device)
	}
	if err != nil {
		// A failed application must not stall the schedule; the next
		// transition is still computed from this event.
		s.log.Error().Err(err).Stringer("state", ev.State).Msg("failed to apply power state")
		return
	}

	s.log.Info().Stringer("state", ev.State).Time("scheduled", when).Msg("applied power state")
	if s.onApply != nil {
		s.onApply(when, s.device, ev.State)
	}
}
