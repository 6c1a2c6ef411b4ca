package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format visits are keyed by.
const DateLayout = "2006-01-02"

var (
	clock12Re = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2})\s*([AP])\.?M\.?$`)
	clock24Re = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	dateRe    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// ParseClock converts a visit time such as "09:03 AM" or "14:30" into minutes
// after midnight.
func ParseClock(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	// Collapse runs of whitespace between the time and the meridiem.
	s = spaceRe.ReplaceAllString(s, " ")

	if m := clock12Re.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour < 1 || hour > 12 || minute > 59 {
			return 0, fmt.Errorf("time out of range: %q", raw)
		}
		hour %= 12
		if strings.EqualFold(m[3], "P") {
			hour += 12
		}
		return hour*60 + minute, nil
	}

	if m := clock24Re.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return 0, fmt.Errorf("time out of range: %q", raw)
		}
		return hour*60 + minute, nil
	}

	return 0, fmt.Errorf("unable to parse time: %q", raw)
}

// FormatClock renders minutes after midnight as "hh:mm AM|PM".
func FormatClock(minutes int) string {
	hour := (minutes / 60) % 24
	minute := minutes % 60
	meridiem := "AM"
	if hour >= 12 {
		meridiem = "PM"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%02d:%02d %s", hour, minute, meridiem)
}

// ParseDate validates a YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	if !dateRe.MatchString(raw) {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %q", raw)
	}
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return d, nil
}
