// Package translate converts a small set of natural-language phrases
// into five-field cron expressions. It is a pure pattern matcher: it
// either recognises a phrase or fails, and its output is untrusted —
// callers must re-validate through the expression parser before use.
package translate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnrecognized is returned when no pattern matches the input.
var ErrUnrecognized = errors.New("translate: phrase not recognized")

var weekdays = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

var (
	everyNUnits  = regexp.MustCompile(`^every (\d+) (minute|minutes|hour|hours)$`)
	dailyAt      = regexp.MustCompile(`^(?:every day|daily) at (.+)$`)
	weekdaysAt   = regexp.MustCompile(`^(?:every weekday|weekdays) at (.+)$`)
	weeklyOn     = regexp.MustCompile(`^(?:every|weekly on) ([a-z]+)(?: at (.+))?$`)
	monthlyOn    = regexp.MustCompile(`^(?:every month|monthly) on (?:the )?(\d+)(?:st|nd|rd|th)?(?: at (.+))?$`)
	clockPattern = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
)

// Translate maps a phrase to a cron expression string.
func Translate(phrase string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(phrase))
	p = strings.Join(strings.Fields(p), " ")

	switch p {
	case "":
		return "", ErrUnrecognized
	case "every minute":
		return "* * * * *", nil
	case "every hour", "hourly":
		return "0 * * * *", nil
	case "every day", "daily":
		return "0 0 * * *", nil
	case "midnight", "every midnight", "at midnight":
		return "0 0 * * *", nil
	case "noon", "every noon", "at noon":
		return "0 12 * * *", nil
	case "every week", "weekly":
		return "0 0 * * 0", nil
	case "every month", "monthly":
		return "0 0 1 * *", nil
	}

	if m := everyNUnits.FindStringSubmatch(p); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return "", ErrUnrecognized
		}
		if strings.HasPrefix(m[2], "minute") {
			if n == 1 {
				return "* * * * *", nil
			}
			if n > 59 {
				return "", ErrUnrecognized
			}
			return fmt.Sprintf("*/%d * * * *", n), nil
		}
		if n == 1 {
			return "0 * * * *", nil
		}
		if n > 23 {
			return "", ErrUnrecognized
		}
		return fmt.Sprintf("0 */%d * * *", n), nil
	}

	if m := dailyAt.FindStringSubmatch(p); m != nil {
		hour, min, ok := parseClock(m[1])
		if !ok {
			return "", ErrUnrecognized
		}
		return fmt.Sprintf("%d %d * * *", min, hour), nil
	}

	if m := weekdaysAt.FindStringSubmatch(p); m != nil {
		hour, min, ok := parseClock(m[1])
		if !ok {
			return "", ErrUnrecognized
		}
		return fmt.Sprintf("%d %d * * 1-5", min, hour), nil
	}

	if m := monthlyOn.FindStringSubmatch(p); m != nil {
		day, err := strconv.Atoi(m[1])
		if err != nil || day < 1 || day > 31 {
			return "", ErrUnrecognized
		}
		hour, min := 0, 0
		if m[2] != "" {
			var ok bool
			hour, min, ok = parseClock(m[2])
			if !ok {
				return "", ErrUnrecognized
			}
		}
		return fmt.Sprintf("%d %d %d * *", min, hour, day), nil
	}

	if m := weeklyOn.FindStringSubmatch(p); m != nil {
		dow, ok := weekdays[m[1]]
		if !ok {
			return "", ErrUnrecognized
		}
		hour, min := 0, 0
		if m[2] != "" {
			hour, min, ok = parseClock(m[2])
			if !ok {
				return "", ErrUnrecognized
			}
		}
		return fmt.Sprintf("%d %d * * %d", min, hour, dow), nil
	}

	return "", ErrUnrecognized
}

// parseClock accepts "5", "5pm", "17:30", "9:05 am" and the words
// "midnight" and "noon".
func parseClock(s string) (hour, min int, ok bool) {
	s = strings.TrimSpace(s)
	switch s {
	case "midnight":
		return 0, 0, true
	case "noon":
		return 12, 0, true
	}

	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	if m[2] != "" {
		min, err = strconv.Atoi(m[2])
		if err != nil || min > 59 {
			return 0, 0, false
		}
	}

	switch m[3] {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return 0, 0, false
		}
	}
	return hour, min, true
}
