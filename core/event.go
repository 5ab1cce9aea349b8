// Package core implements the per-device power scheduling engine: the daily
// event table and the scheduler loop that keeps a device in the state the
// table dictates.
package core

import (
	"fmt"
	"strings"
	"time"
)

type PowerState uint8

const (
	PowerOff PowerState = iota
	PowerOn
)

func (s PowerState) String() string {
	if s == PowerOn {
		return "ON"
	}
	return "OFF"
}

func (s PowerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PowerState) UnmarshalText(text []byte) error {
	state, err := ParsePowerState(string(text))
	if err != nil {
		return err
	}
	*s = state
	return nil
}

func ParsePowerState(s string) (PowerState, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ON":
		return PowerOn, nil
	case "OFF":
		return PowerOff, nil
	}
	return PowerOff, fmt.Errorf("unknown power state %q", s)
}

// TimeOfDay is a wall-clock time with no date component, expressed in UTC.
// All comparisons are within one 24-hour cycle.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	Second int `json:"second"`
}

func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute, Second: second}
}

// TimeOfDayFrom takes the clock reading of t in UTC, dropping the date.
func TimeOfDayFrom(t time.Time) TimeOfDay {
	t = t.UTC()
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// ParseTimeOfDay accepts "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

func (t TimeOfDay) seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.seconds() < o.seconds()
}

func (t TimeOfDay) After(o TimeOfDay) bool {
	return t.seconds() > o.seconds()
}

// At combines the time of day with the calendar date of day, in UTC.
func (t TimeOfDay) At(day time.Time) time.Time {
	day = day.UTC()
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, t.Second, 0, time.UTC)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// ScheduleEvent is one daily-recurring transition. Immutable once created.
type ScheduleEvent struct {
	Time  TimeOfDay  `json:"time"`
	State PowerState `json:"state"`
}

func (e ScheduleEvent) String() string {
	return fmt.Sprintf("%s -> %s", e.Time, e.State)
}
