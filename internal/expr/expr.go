// Package expr implements the five-field cron expression grammar:
// minute, hour, day-of-month, month, and day-of-week, evaluated at
// minute resolution. A parsed Schedule is immutable; callers re-parse
// to change it.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// maxScan bounds the forward scan in Next. An expression that cannot
// fire within this window is considered malformed (e.g. "0 0 31 2 *").
const maxScan = 4 * 366 * 24 * time.Hour

// fieldSpec describes the domain of one cron field.
type fieldSpec struct {
	name string
	min  int
	max  int
}

var (
	minuteSpec = fieldSpec{"minute", 0, 59}
	hourSpec   = fieldSpec{"hour", 0, 23}
	domSpec    = fieldSpec{"day-of-month", 1, 31}
	monthSpec  = fieldSpec{"month", 1, 12}
	dowSpec    = fieldSpec{"day-of-week", 0, 6}
)

// matcher is the compiled form of a single field. A wildcard field
// (bare "*") is unrestricted; everything else carries an explicit
// value set.
type matcher struct {
	any    bool
	values map[int]bool
}

func (m matcher) matches(v int) bool {
	if m.any {
		return true
	}
	return m.values[v]
}

// Schedule is the parsed representation of a five-field expression.
type Schedule struct {
	text   string
	minute matcher
	hour   matcher
	dom    matcher
	month  matcher
	dow    matcher
}

// Parse compiles a five-field cron expression. It returns a
// *ParseError describing the offending field on malformed input.
func Parse(text string) (*Schedule, error) {
	fields := strings.Fields(text)
	if len(fields) != 5 {
		return nil, &ParseError{
			Expr:   text,
			Detail: fmt.Sprintf("expected 5 fields, got %d", len(fields)),
		}
	}

	s := &Schedule{text: text}
	for i, spec := range []struct {
		fs  fieldSpec
		dst *matcher
	}{
		{minuteSpec, &s.minute},
		{hourSpec, &s.hour},
		{domSpec, &s.dom},
		{monthSpec, &s.month},
		{dowSpec, &s.dow},
	} {
		m, err := parseField(fields[i], spec.fs)
		if err != nil {
			return nil, &ParseError{Expr: text, Field: spec.fs.name, Detail: err.Error()}
		}
		*spec.dst = *m
	}
	return s, nil
}

// parseField compiles one field: "*", "*/N", "A", "A-B", "A-B/N",
// or a comma list whose elements are any of the above except "*".
func parseField(raw string, fs fieldSpec) (*matcher, error) {
	if raw == "*" {
		return &matcher{any: true}, nil
	}

	values := make(map[int]bool)
	for _, token := range strings.Split(raw, ",") {
		if token == "" {
			return nil, fmt.Errorf("empty list element in %q", raw)
		}
		if err := parseElement(token, fs, values); err != nil {
			return nil, err
		}
	}
	return &matcher{values: values}, nil
}

// parseElement adds the values of a single list element to the set.
func parseElement(token string, fs fieldSpec, values map[int]bool) error {
	base := token
	step := 1
	if slash := strings.IndexByte(token, '/'); slash >= 0 {
		base = token[:slash]
		n, err := strconv.Atoi(token[slash+1:])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid step in %q", token)
		}
		step = n
	}

	var lo, hi int
	switch {
	case base == "*":
		lo, hi = fs.min, fs.max
	case strings.Contains(base, "-"):
		parts := strings.SplitN(base, "-", 2)
		a, err1 := strconv.Atoi(parts[0])
		b, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return fmt.Errorf("invalid range %q", base)
		}
		if a > b {
			return fmt.Errorf("range %q is inverted", base)
		}
		if a < fs.min || b > fs.max {
			return fmt.Errorf("range %q outside %d-%d", base, fs.min, fs.max)
		}
		lo, hi = a, b
	default:
		v, err := strconv.Atoi(base)
		if err != nil {
			return fmt.Errorf("invalid value %q", base)
		}
		if v < fs.min || v > fs.max {
			return fmt.Errorf("value %d outside %d-%d", v, fs.min, fs.max)
		}
		if step != 1 {
			// "5/2" is not part of the grammar; steps need a range or "*".
			return fmt.Errorf("step requires a range or wildcard base in %q", token)
		}
		values[v] = true
		return nil
	}

	for v := lo; v <= hi; v += step {
		values[v] = true
	}
	return nil
}

// String returns the original expression text.
func (s *Schedule) String() string { return s.text }

// Matches reports whether the schedule is due at t, truncated to
// minute resolution.
func (s *Schedule) Matches(t time.Time) bool {
	t = t.Truncate(time.Minute)
	if !s.minute.matches(t.Minute()) || !s.hour.matches(t.Hour()) || !s.month.matches(int(t.Month())) {
		return false
	}
	return s.dayMatches(t)
}

// dayMatches applies conventional cron day semantics: when both
// day-of-month and day-of-week are restricted the rules are ORed,
// otherwise both must accept (a wildcard accepts everything).
func (s *Schedule) dayMatches(t time.Time) bool {
	domOK := s.dom.matches(t.Day())
	dowOK := s.dow.matches(int(t.Weekday()))
	if !s.dom.any && !s.dow.any {
		return domOK || dowOK
	}
	return domOK && dowOK
}

// Next returns the first due minute strictly after t. It scans forward
// with field-aware jumps and fails with ErrNeverFires once the scan
// exceeds the sanity bound.
func (s *Schedule) Next(after time.Time) (time.Time, error) {
	t := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(maxScan)

	for t.Before(limit) {
		if !s.month.matches(int(t.Month())) {
			// Jump to the first minute of the next month.
			t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
			continue
		}
		if !s.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
			continue
		}
		if !s.hour.matches(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location()).Add(time.Hour)
			continue
		}
		if s.minute.matches(t.Minute()) {
			return t, nil
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("expr: %q: %w", s.text, ErrNeverFires)
}
