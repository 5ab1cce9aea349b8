package core

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeController struct {
	mu     sync.Mutex
	states []PowerState
	failOn map[PowerState]error
}

func newFakeController() *fakeController {
	return &fakeController{failOn: make(map[PowerState]error)}
}

func (c *fakeController) set(state PowerState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failOn[state]; err != nil {
		return err
	}
	c.states = append(c.states, state)
	return nil
}

func (c *fakeController) SetOn(device string) error  { return c.set(PowerOn) }
func (c *fakeController) SetOff(device string) error { return c.set(PowerOff) }

func (c *fakeController) applied() []PowerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PowerState, len(c.states))
	copy(out, c.states)
	return out
}

func waitForApplied(t *testing.T, c *fakeController, count int, timeout time.Duration) []PowerState {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if states := c.applied(); len(states) >= count {
			return states
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected", count, "applications, but got", c.applied())
	return nil
}

func TestStartAppliesResolvedStateOnce(t *testing.T) {
	now := time.Now().UTC()
	// The only event is in the future, so it is understood to have been in
	// force since the previous day and must be applied once at start.
	table := mustTable(t, "light", []TimeOfDay{TimeOfDayFrom(now.Add(time.Hour))}, nil)
	ctrl := newFakeController()

	s := NewPowerScheduler(table, ctrl, zerolog.Nop(), nil)
	if err := s.Start(); err != nil {
		t.Fatal("failed to start scheduler:", err)
	}
	defer s.Stop()

	states := waitForApplied(t, ctrl, 1, time.Second)
	if len(states) != 1 || states[0] != PowerOn {
		t.Fatal("expected a single ON application, but got", states)
	}
	time.Sleep(100 * time.Millisecond)
	if states := ctrl.applied(); len(states) != 1 {
		t.Fatal("expected no further applications before the next event, but got", states)
	}
}

func TestSchedulerAppliesNextTransition(t *testing.T) {
	now := time.Now().UTC()
	table := mustTable(t, "light",
		[]TimeOfDay{TimeOfDayFrom(now.Add(2 * time.Second))},
		[]TimeOfDay{TimeOfDayFrom(now.Add(-time.Hour))})
	ctrl := newFakeController()

	var cbMu sync.Mutex
	var cbStates []PowerState
	s := NewPowerScheduler(table, ctrl, zerolog.Nop(), func(when time.Time, device string, state PowerState) {
		cbMu.Lock()
		cbStates = append(cbStates, state)
		cbMu.Unlock()
		if device != "light" {
			t.Error("expected callback for device light, but got", device)
		}
	})
	if err := s.Start(); err != nil {
		t.Fatal("failed to start scheduler:", err)
	}
	defer s.Stop()

	states := waitForApplied(t, ctrl, 2, 4*time.Second)
	if states[0] != PowerOff || states[1] != PowerOn {
		t.Fatal("expected [OFF ON], but got", states)
	}

	cbMu.Lock()
	defer cbMu.Unlock()
	if len(cbStates) < 2 || cbStates[0] != PowerOff || cbStates[1] != PowerOn {
		t.Fatal("expected the callback for both applications, but got", cbStates)
	}
}

func TestApplyErrorDoesNotStallSchedule(t *testing.T) {
	now := time.Now().UTC()
	table := mustTable(t, "pump",
		[]TimeOfDay{TimeOfDayFrom(now.Add(2 * time.Second))},
		[]TimeOfDay{TimeOfDayFrom(now.Add(-time.Hour))})
	ctrl := newFakeController()
	ctrl.failOn[PowerOff] = errors.New("relay unreachable")

	s := NewPowerScheduler(table, ctrl, zerolog.Nop(), nil)
	if err := s.Start(); err != nil {
		t.Fatal("failed to start scheduler:", err)
	}
	defer s.Stop()

	// The initial OFF application fails; the ON transition must still fire.
	states := waitForApplied(t, ctrl, 1, 4*time.Second)
	if states[0] != PowerOn {
		t.Fatal("expected ON after the failed OFF, but got", states)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	table := mustTable(t, "light", []TimeOfDay{TimeOfDayFrom(now.Add(time.Hour))}, nil)
	ctrl := newFakeController()

	s := NewPowerScheduler(table, ctrl, zerolog.Nop(), nil)
	if err := s.Start(); err != nil {
		t.Fatal("failed to start scheduler:", err)
	}
	waitForApplied(t, ctrl, 1, time.Second)

	s.Stop()
	s.Stop()

	if err := s.Start(); !errors.Is(err, ErrSchedulerStopped) {
		t.Fatal("expected ErrSchedulerStopped on restart, but got", err)
	}
	if states := ctrl.applied(); len(states) != 1 {
		t.Fatal("expected no applications after stop, but got", states)
	}
}

func TestStopInterruptsWait(t *testing.T) {
	now := time.Now().UTC()
	table := mustTable(t, "light", []TimeOfDay{TimeOfDayFrom(now.Add(time.Hour))}, nil)
	ctrl := newFakeController()

	s := NewPowerScheduler(table, ctrl, zerolog.Nop(), nil)
	if err := s.Start(); err != nil {
		t.Fatal("failed to start scheduler:", err)
	}
	waitForApplied(t, ctrl, 1, time.Second)

	started := time.Now()
	s.Stop()
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatal("expected stop to interrupt the wait, but it took", elapsed)
	}
}

func TestStopBeforeStart(t *testing.T) {
	table := mustTable(t, "light", []TimeOfDay{NewTimeOfDay(6, 0, 0)}, nil)
	s := NewPowerScheduler(table, newFakeController(), zerolog.Nop(), nil)

	s.Stop()
	if err := s.Start(); !errors.Is(err, ErrSchedulerStopped) {
		t.Fatal("expected ErrSchedulerStopped after early stop, but got", err)
	}
}

func TestWaitUntilPastInstantFiresImmediately(t *testing.T) {
	table := mustTable(t, "light", []TimeOfDay{NewTimeOfDay(6, 0, 0)}, nil)
	s := NewPowerScheduler(table, newFakeController(), zerolog.Nop(), nil)
	s.stop = make(chan struct{})

	started := time.Now()
	if !s.waitUntil(time.Now().Add(-time.Hour)) {
		t.Fatal("expected waitUntil to report continue")
	}
	if elapsed := time.Since(started); elapsed > 100*time.Millisecond {
		t.Fatal("expected an immediate return for a past instant, but it took", elapsed)
	}
}
