package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/nearcare/internal/domain/entities"
)

const minutesPerDay = 24 * 60

// weekday labels indexed by the feed's day code minus one (1 = Monday)
var weekdayLabels = [7]string{"월", "화", "수", "목", "금", "토", "일"}

var weekdayKeys = [7]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// dayCode maps a time.Weekday onto the feed's 1..7 numbering
func dayCode(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// parseHHMM parses "HHMM" into minutes after midnight. Values past 2400 mean the next day.
// Leading zeros are optional because the JSON feed sends the times as numbers ("0" is 00:00).
func parseHHMM(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) == 0 || len(raw) > 4 || strings.TrimLeft(raw, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	hours, minutes := n/100, n%100
	if minutes >= 60 || hours > 48 {
		return 0, false
	}
	return hours*60 + minutes, true
}

type window struct {
	open  int
	close int
}

func dayWindow(fields map[string]string, code int) (window, bool) {
	open, ok := parseHHMM(fields[fmt.Sprintf("dutyTime%ds", code)])
	if !ok {
		return window{}, false
	}
	closing, ok := parseHHMM(fields[fmt.Sprintf("dutyTime%dc", code)])
	if !ok {
		return window{}, false
	}
	return window{open: open, close: closing}, true
}

// overnight reports whether the window runs past midnight
func (w window) overnight() bool {
	return w.close < w.open || w.close > minutesPerDay
}

// contains reports whether minute of the window's own day falls inside it
func (w window) contains(minute int) bool {
	switch {
	case w.close > minutesPerDay:
		return minute >= w.open || minute <= w.close-minutesPerDay
	case w.close < w.open:
		return minute >= w.open || minute <= w.close
	default:
		return minute >= w.open && minute <= w.close
	}
}

// spill reports whether minute of the following day is still inside the window
func (w window) spill(minute int) bool {
	switch {
	case w.close > minutesPerDay:
		return minute <= w.close-minutesPerDay
	case w.close < w.open:
		return minute <= w.close
	default:
		return false
	}
}

// pharmacyStatus derives open/closed/unknown from the dutyTime fields at now.
// An overnight window from the previous day that has not closed yet also counts as open.
func pharmacyStatus(fields map[string]string, now time.Time) entities.Status {
	minute := now.Hour()*60 + now.Minute()
	today := dayCode(now.Weekday())
	yesterday := today - 1
	if yesterday == 0 {
		yesterday = 7
	}

	if prev, ok := dayWindow(fields, yesterday); ok && prev.overnight() && prev.spill(minute) {
		return entities.StatusOpen
	}

	w, ok := dayWindow(fields, today)
	if !ok {
		return entities.StatusUnknown
	}
	if w.contains(minute) {
		return entities.StatusOpen
	}
	return entities.StatusClosed
}

func formatHHMM(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) < 4 {
		raw = strings.Repeat("0", 4-len(raw)) + raw
	}
	return raw[:2] + ":" + raw[2:]
}

// weeklyHours returns the per-weekday "HH:MM-HH:MM" windows and a one-line summary.
// The summary is empty when no weekday has usable hours.
func weeklyHours(fields map[string]string) (map[string]string, string) {
	hours := make(map[string]string)
	parts := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		code := i + 1
		openRaw := fields[fmt.Sprintf("dutyTime%ds", code)]
		closeRaw := fields[fmt.Sprintf("dutyTime%dc", code)]
		if _, ok := dayWindow(fields, code); !ok {
			parts = append(parts, weekdayLabels[i]+": 정보없음")
			continue
		}
		span := formatHHMM(openRaw) + "-" + formatHHMM(closeRaw)
		hours[weekdayKeys[i]] = span
		parts = append(parts, weekdayLabels[i]+": "+formatHHMM(openRaw)+" ~ "+formatHHMM(closeRaw))
	}
	if len(hours) == 0 {
		return hours, ""
	}
	return hours, strings.Join(parts, " | ")
}
