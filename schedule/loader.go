// Package schedule loads per-device on/off time lists from a tab-delimited
// schedule file and converts them to UTC.
package schedule

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ilievs/powercycle/core"
)

// DeviceTimes holds the unordered on and off time lists for one device,
// already converted to UTC.
type DeviceTimes struct {
	On  []core.TimeOfDay
	Off []core.TimeOfDay
}

// LoadFile reads a schedule file with local wall-clock times in the named
// zone. Each line is "device<TAB>time<TAB>state"; a header row is skipped.
func LoadFile(path, zone string) (map[string]DeviceTimes, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", zone, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schedule file: %w", err)
	}
	defer f.Close()

	devices, err := Parse(f, loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return devices, nil
}

// Parse reads tab-delimited schedule rows, converting each local time of day
// in loc to UTC. Malformed rows fail with their line number.
func Parse(r io.Reader, loc *time.Location) (map[string]DeviceTimes, error) {
	devices := make(map[string]DeviceTimes)
	scanner := bufio.NewScanner(r)
	line := 0
	first := true

	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		fields := strings.Split(text, "\t")
		if first {
			first = false
			if isHeader(fields) {
				continue
			}
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 tab-separated fields, got %d", line, len(fields))
		}

		device := strings.TrimSpace(fields[0])
		if device == "" {
			return nil, fmt.Errorf("line %d: empty device name", line)
		}
		local, err := core.ParseTimeOfDay(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		state, err := core.ParsePowerState(fields[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		tod := toUTC(local, loc)
		dt := devices[device]
		if state == core.PowerOn {
			dt.On = append(dt.On, tod)
		} else {
			dt.Off = append(dt.Off, tod)
		}
		devices[device] = dt
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read schedule: %w", err)
	}

	return devices, nil
}

func isHeader(fields []string) bool {
	if len(fields) != 3 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(fields[0]), "device") &&
		strings.EqualFold(strings.TrimSpace(fields[1]), "time") &&
		strings.EqualFold(strings.TrimSpace(fields[2]), "state")
}

// toUTC interprets tod as a wall-clock time on today's date in loc and
// returns the UTC time of day.
func toUTC(tod core.TimeOfDay, loc *time.Location) core.TimeOfDay {
	today := time.Now().In(loc)
	local := time.Date(today.Year(), today.Month(), today.Day(),
		tod.Hour, tod.Minute, tod.Second, 0, loc)
	return core.TimeOfDayFrom(local)
}
