// Package scheduling generates bookable appointment slots for voice agents
// to offer mid-call.
package scheduling

import (
	"errors"
	"fmt"
	"time"
)

// Booking is an existing appointment blocking part of the day.
type Booking struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

var ErrInvalidWindow = errors.New("scheduling: invalid slot window")

// GenerateSlots returns candidate start times for one day. Pure.
//
// Candidates are walked from startTime in steps of duration+buffer; a
// candidate survives when the bare slot fits before endTime and does not
// overlap any booking padded by the buffer. The buffer only spaces
// consecutive slots and pads bookings, it is not required to fit inside
// the window.
// Overlap is half-open, so a slot may begin exactly when a padded booking
// ends.
func GenerateSlots(date time.Time, startTime, endTime string, durationMin, bufferMin int, bookings []Booking) ([]time.Time, error) {
	if durationMin <= 0 {
		return nil, fmt.Errorf("%w: duration %d", ErrInvalidWindow, durationMin)
	}
	if bufferMin < 0 {
		return nil, fmt.Errorf("%w: buffer %d", ErrInvalidWindow, bufferMin)
	}

	dayStart, err := atClock(date, startTime)
	if err != nil {
		return nil, err
	}
	dayEnd, err := atClock(date, endTime)
	if err != nil {
		return nil, err
	}
	if !dayStart.Before(dayEnd) {
		return nil, fmt.Errorf("%w: %s >= %s", ErrInvalidWindow, startTime, endTime)
	}

	duration := time.Duration(durationMin) * time.Minute
	buffer := time.Duration(bufferMin) * time.Minute
	step := duration + buffer

	var slots []time.Time
	for cursor := dayStart; !cursor.Add(duration).After(dayEnd); cursor = cursor.Add(step) {
		if overlapsAny(cursor, cursor.Add(duration), buffer, bookings) {
			continue
		}
		slots = append(slots, cursor)
	}
	return slots, nil
}

func overlapsAny(slotStart, slotEnd time.Time, buffer time.Duration, bookings []Booking) bool {
	for _, b := range bookings {
		if slotStart.Before(b.End.Add(buffer)) && slotEnd.After(b.Start) {
			return true
		}
	}
	return false
}

// FilterNotice drops slots outside the bookable horizon: too soon to staff
// (minNoticeHours) or too far out to promise (maxAdvanceDays).
func FilterNotice(slots []time.Time, now time.Time, minNoticeHours, maxAdvanceDays int) []time.Time {
	earliest := now.Add(time.Duration(minNoticeHours) * time.Hour)
	latest := now.AddDate(0, 0, maxAdvanceDays)

	var out []time.Time
	for _, s := range slots {
		if s.Before(earliest) {
			continue
		}
		if maxAdvanceDays > 0 && s.After(latest) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func atClock(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad clock %q", ErrInvalidWindow, clock)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}
