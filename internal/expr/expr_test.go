package expr

import (
	"errors"
	"testing"
	"time"
)

func mustParse(t *testing.T, text string) *Schedule {
	t.Helper()
	s, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", text, err)
	}
	return s
}

func at(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func TestParse_FieldCount(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "* * * *", "* * * * * *", "*/5"} {
		if _, err := Parse(text); err == nil {
			t.Errorf("Parse(%q) should fail on field count", text)
		}
	}
}

func TestParse_DomainErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text  string
		field string
	}{
		{"99 * * * *", "minute"},
		{"60 * * * *", "minute"},
		{"* 24 * * *", "hour"},
		{"* * 0 * *", "day-of-month"},
		{"* * 32 * *", "day-of-month"},
		{"* * * 13 *", "month"},
		{"* * * 0 *", "month"},
		{"* * * * 7", "day-of-week"},
		{"10-5 * * * *", "minute"},
		{"* * * * 1-9", "day-of-week"},
		{"*/0 * * * *", "minute"},
		{"*/x * * * *", "minute"},
		{"a * * * *", "minute"},
		{"1,,2 * * * *", "minute"},
		{"5/2 * * * *", "minute"},
	}

	for _, tt := range tests {
		_, err := Parse(tt.text)
		if err == nil {
			t.Errorf("Parse(%q) should fail", tt.text)
			continue
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q) error should be *ParseError, got %T", tt.text, err)
			continue
		}
		if pe.Field != tt.field {
			t.Errorf("Parse(%q) field = %q, want %q", tt.text, pe.Field, tt.field)
		}
	}
}

func TestMatches_DailyAtTwo(t *testing.T) {
	t.Parallel()

	s := mustParse(t, "0 2 * * *")

	if !s.Matches(at(2026, time.March, 14, 2, 0)) {
		t.Error("should match at 02:00")
	}
	if s.Matches(at(2026, time.March, 14, 2, 1)) {
		t.Error("should not match at 02:01")
	}
	if s.Matches(at(2026, time.March, 14, 1, 59)) {
		t.Error("should not match at 01:59")
	}
}

func TestMatches_SteppedWildcard(t *testing.T) {
	t.Parallel()

	s := mustParse(t, "*/5 * * * *")
	for min := 0; min < 60; min++ {
		got := s.Matches(at(2026, time.June, 1, 9, min))
		want := min%5 == 0
		if got != want {
			t.Errorf("minute %d: got %v, want %v", min, got, want)
		}
	}
}

func TestMatches_DayOrSemantics(t *testing.T) {
	t.Parallel()

	// Due on the 15th of any month AND on every Monday.
	s := mustParse(t, "0 0 15 * 1")

	// 2026-06-15 is a Monday, but any 15th qualifies regardless.
	if !s.Matches(at(2026, time.July, 15, 0, 0)) { // Wednesday the 15th
		t.Error("should match on the 15th regardless of weekday")
	}
	if !s.Matches(at(2026, time.July, 6, 0, 0)) { // a Monday, not the 15th
		t.Error("should match on Monday regardless of day-of-month")
	}
	if s.Matches(at(2026, time.July, 7, 0, 0)) { // Tuesday the 7th
		t.Error("should not match a non-Monday non-15th")
	}
}

func TestMatches_DayAndWhenOneWildcard(t *testing.T) {
	t.Parallel()

	// Only day-of-week restricted: it alone decides the day.
	s := mustParse(t, "0 0 * * 1")
	if s.Matches(at(2026, time.July, 15, 0, 0)) { // Wednesday
		t.Error("wildcard day-of-month must not widen a day-of-week rule")
	}
	if !s.Matches(at(2026, time.July, 6, 0, 0)) { // Monday
		t.Error("should match Mondays")
	}
}

func TestMatches_ListsAndRanges(t *testing.T) {
	t.Parallel()

	s := mustParse(t, "0,30 9-17 * * 1-5")

	if !s.Matches(at(2026, time.July, 6, 9, 30)) {
		t.Error("Monday 09:30 should match")
	}
	if !s.Matches(at(2026, time.July, 10, 17, 0)) {
		t.Error("Friday 17:00 should match")
	}
	if s.Matches(at(2026, time.July, 6, 9, 15)) {
		t.Error("minute 15 should not match")
	}
	if s.Matches(at(2026, time.July, 6, 18, 0)) {
		t.Error("hour 18 should not match")
	}
	if s.Matches(at(2026, time.July, 11, 9, 0)) { // Saturday
		t.Error("Saturday should not match")
	}
}

func TestMatches_ListWithRangeAndStepElements(t *testing.T) {
	t.Parallel()

	s := mustParse(t, "1,10-12,40-50/5 * * * *")

	want := map[int]bool{1: true, 10: true, 11: true, 12: true, 40: true, 45: true, 50: true}
	for min := 0; min < 60; min++ {
		if got := s.Matches(at(2026, time.May, 1, 0, min)); got != want[min] {
			t.Errorf("minute %d: got %v, want %v", min, got, want[min])
		}
	}
}

func TestMatches_SecondsIgnored(t *testing.T) {
	t.Parallel()

	s := mustParse(t, "30 12 * * *")
	ts := time.Date(2026, time.April, 2, 12, 30, 59, 123456, time.UTC)
	if !s.Matches(ts) {
		t.Error("sub-minute precision should be truncated before matching")
	}
}

func TestNext_SimpleAdvance(t *testing.T) {
	t.Parallel()

	s := mustParse(t, "*/15 * * * *")
	got, err := s.Next(at(2026, time.March, 3, 10, 7))
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if want := at(2026, time.March, 3, 10, 15); !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
}

func TestNext_StrictlyAfter(t *testing.T) {
	t.Parallel()

	s := mustParse(t, "0 2 * * *")
	got, err := s.Next(at(2026, time.March, 3, 2, 0))
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if want := at(2026, time.March, 4, 2, 0); !got.Equal(want) {
		t.Errorf("Next from a due minute = %v, want the following day %v", got, want)
	}
}

func TestNext_MonthBoundary(t *testing.T) {
	t.Parallel()

	// 31st of the month: skips months without one.
	s := mustParse(t, "0 0 31 * *")
	got, err := s.Next(at(2026, time.April, 1, 0, 0))
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if want := at(2026, time.May, 31, 0, 0); !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
}

func TestNext_YearBoundary(t *testing.T) {
	t.Parallel()

	s := mustParse(t, "30 6 1 1 *")
	got, err := s.Next(at(2026, time.February, 1, 0, 0))
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if want := at(2027, time.January, 1, 6, 30); !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
}

func TestNext_NeverFires(t *testing.T) {
	t.Parallel()

	// February 31st does not exist.
	s := mustParse(t, "0 0 31 2 *")
	_, err := s.Next(at(2026, time.January, 1, 0, 0))
	if !errors.Is(err, ErrNeverFires) {
		t.Fatalf("err = %v, want ErrNeverFires", err)
	}
}

func TestNext_MatchesAgree(t *testing.T) {
	t.Parallel()

	// Whatever Next returns must satisfy Matches.
	exprs := []string{"* * * * *", "*/7 3 * * *", "0 0 15 * 1", "5 4 * 3 *", "59 23 28-31 * *"}
	start := at(2026, time.January, 17, 13, 42)

	for _, text := range exprs {
		s := mustParse(t, text)
		next, err := s.Next(start)
		if err != nil {
			t.Fatalf("Next(%q) failed: %v", text, err)
		}
		if !s.Matches(next) {
			t.Errorf("%q: Next returned %v which does not match", text, next)
		}
		if !next.After(start) {
			t.Errorf("%q: Next returned %v, not after %v", text, next, start)
		}
	}
}

func TestString_RoundTrip(t *testing.T) {
	t.Parallel()

	text := "0,30 9-17 * * 1-5"
	s := mustParse(t, text)
	if s.String() != text {
		t.Errorf("String = %q, want %q", s.String(), text)
	}

	// Re-parsing the formatted text yields an equivalent due-set.
	s2 := mustParse(t, s.String())
	probe := at(2026, time.July, 6, 9, 30)
	for i := 0; i < 3000; i++ {
		ts := probe.Add(time.Duration(i) * time.Minute)
		if s.Matches(ts) != s2.Matches(ts) {
			t.Fatalf("due-set mismatch at %v", ts)
		}
	}
}
