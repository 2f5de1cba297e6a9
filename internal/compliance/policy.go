package compliance

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is a permitted calling range in local minutes-of-day, half-open:
// a call at StartMinute is allowed, a call at EndMinute is not.
type Window struct {
	StartMinute int
	EndMinute   int
}

func (w Window) contains(minute int) bool {
	return minute >= w.StartMinute && minute < w.EndMinute
}

// Policy is an organization's calling-hours configuration.
// Weekdays without an explicit window fall back to the default 08:00-21:00,
// the widest range federal telemarketing rules permit.
type Policy struct {
	Timezone string
	Windows  map[time.Weekday]Window
}

const (
	defaultWindowStart = 8 * 60
	defaultWindowEnd   = 21 * 60
)

func DefaultPolicy(timezone string) Policy {
	return Policy{Timezone: timezone}
}

func (p Policy) window(day time.Weekday) Window {
	if w, ok := p.Windows[day]; ok {
		return w
	}
	return Window{StartMinute: defaultWindowStart, EndMinute: defaultWindowEnd}
}

// ParseClock converts "HH:MM" to minutes-of-day.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}
