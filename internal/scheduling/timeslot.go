package scheduling

import (
	"fmt"
	"sort"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// TimeSlot is a named interval within a calendar date, wire format
// "HH:MM-HH:MM", 24-hour, start strictly before end.
type TimeSlot struct {
	start int // minutes since midnight
	end   int
}

func ParseTimeSlot(s string) (TimeSlot, error) {
	if len(s) != 11 || s[5] != '-' {
		return TimeSlot{}, fmt.Errorf("time slot %q: want HH:MM-HH:MM", s)
	}

	start, err := parseClock(s[:5])
	if err != nil {
		return TimeSlot{}, fmt.Errorf("time slot %q: %w", s, err)
	}
	end, err := parseClock(s[6:])
	if err != nil {
		return TimeSlot{}, fmt.Errorf("time slot %q: %w", s, err)
	}

	if start >= end {
		return TimeSlot{}, fmt.Errorf("time slot %q: start must be before end", s)
	}

	return TimeSlot{start: start, end: end}, nil
}

func (ts TimeSlot) String() string {
	return formatClock(ts.start) + "-" + formatClock(ts.end)
}

func (ts TimeSlot) Minutes() int {
	return ts.end - ts.start
}

// StartOn anchors the slot's start on a calendar date. The date carries
// the clinic location, so the result is a wall-clock instant there.
func (ts TimeSlot) StartOn(date time.Time) time.Time {
	return date.Add(time.Duration(ts.start) * time.Minute)
}

func (ts TimeSlot) EndOn(date time.Time) time.Time {
	return date.Add(time.Duration(ts.end) * time.Minute)
}

// Within reports whether the slot lies inside [start, end] working hours.
func (ts TimeSlot) Within(start, end int) bool {
	return ts.start >= start && ts.end <= end
}

func parseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%02d:%02d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("clock %q: out of range", s)
	}
	return hh*60 + mm, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// SliceRange cuts a working-hours range into contiguous fixed-size slots.
// A trailing remainder shorter than the granule is dropped.
func SliceRange(start, end string, granuleMinutes int) ([]string, error) {
	from, err := parseClock(start)
	if err != nil {
		return nil, err
	}
	to, err := parseClock(end)
	if err != nil {
		return nil, err
	}
	if granuleMinutes <= 0 {
		return nil, fmt.Errorf("slot granularity must be positive, got %d", granuleMinutes)
	}
	if from >= to {
		return nil, fmt.Errorf("working hours %s-%s: start must be before end", start, end)
	}

	var slots []string
	for cur := from; cur+granuleMinutes <= to; cur += granuleMinutes {
		slots = append(slots, TimeSlot{start: cur, end: cur + granuleMinutes}.String())
	}
	return slots, nil
}

// SortSlots orders slot strings chronologically by start time.
// Zero-padded HH:MM makes lexicographic order chronological.
func SortSlots(slots []string) {
	sort.Strings(slots)
}

// ParseDate interprets a YYYY-MM-DD string as a calendar date in the
// given location (midnight, no UTC shifting).
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// DateOf truncates an instant to its calendar date in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
