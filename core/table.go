package core

import (
	"errors"
	"fmt"
	"sort"
)

// ErrEmptySchedule is returned when a device's schedule has no events at all.
// A device with zero events has no well-defined state.
var ErrEmptySchedule = errors.New("schedule has no events")

// ScheduleTable is the immutable, time-ordered daily event table for one
// device. Events recur every 24 hours; the table itself carries no dates.
type ScheduleTable struct {
	device string
	events []ScheduleEvent
}

// NewScheduleTable merges the on and off time lists into a single table,
// sorted ascending by time of day. The sort is stable and on-times are merged
// ahead of off-times, so at an equal time the OFF entry sorts later and wins
// as "current" at that instant.
func NewScheduleTable(device string, onTimes, offTimes []TimeOfDay) (*ScheduleTable, error) {
	if len(onTimes)+len(offTimes) == 0 {
		return nil, fmt.Errorf("device %q: %w", device, ErrEmptySchedule)
	}

	events := make([]ScheduleEvent, 0, len(onTimes)+len(offTimes))
	for _, t := range onTimes {
		events = append(events, ScheduleEvent{Time: t, State: PowerOn})
	}
	for _, t := range offTimes {
		events = append(events, ScheduleEvent{Time: t, State: PowerOff})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.Before(events[j].Time)
	})

	return &ScheduleTable{device: device, events: events}, nil
}

func (t *ScheduleTable) Device() string {
	return t.device
}

// Events returns a copy of the event sequence in table order.
func (t *ScheduleTable) Events() []ScheduleEvent {
	out := make([]ScheduleEvent, len(t.events))
	copy(out, t.events)
	return out
}

func (t *ScheduleTable) Len() int {
	return len(t.events)
}

// ResolveCurrent returns the event in force at now: the latest event whose
// time is at or before now, together with its table position. When now
// precedes the first event of the day the table wraps and the last event is
// returned with wrapped set, meaning it took effect the previous day. This is
// the policy used once, at scheduler start, to establish the device's state
// without waiting for the next transition.
func (t *ScheduleTable) ResolveCurrent(now TimeOfDay) (ev ScheduleEvent, pos int, wrapped bool) {
	pos = -1
	for i, e := range t.events {
		if !e.Time.After(now) {
			pos = i
		}
	}
	if pos < 0 {
		last := len(t.events) - 1
		return t.events[last], last, true
	}
	return t.events[pos], pos, false
}

// NextAfter returns the event following position pos in cyclic table order.
// dayOffset is 0 when the next event falls on the same calendar day as the
// event at pos, 1 when the table wraps to its first event on the following
// day. Equal-time events are visited in table order, so a duplicated time
// never yields a self-transition loop, and cycling NextAfter visits every
// event exactly once per day.
func (t *ScheduleTable) NextAfter(pos int) (ev ScheduleEvent, nextPos int, dayOffset int) {
	nextPos = pos + 1
	if nextPos >= len(t.events) {
		return t.events[0], 0, 1
	}
	return t.events[nextPos], nextPos, 0
}
