package clock

import (
	"errors"
	"testing"
	"time"
)

func TestFormatZeroPadsAndDropsSubseconds(t *testing.T) {
	input := time.Date(2024, 3, 7, 4, 5, 6, 999_000_000, time.Local)
	if got := Format(input); got != "2024-03-07T04:05:06" {
		t.Fatalf("expected zero padded canonical string, got %q", got)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
	}{
		{name: "new year", in: time.Date(2099, 1, 1, 0, 0, 0, 0, time.Local)},
		{name: "end of day", in: time.Date(2024, 12, 31, 23, 59, 59, 0, time.Local)},
		{name: "leap day", in: time.Date(2024, 2, 29, 12, 30, 1, 0, time.Local)},
		{name: "single digits", in: time.Date(2025, 5, 5, 5, 5, 5, 0, time.Local)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatted := Format(tt.in)
			parsed, err := Parse(formatted)
			if err != nil {
				t.Fatalf("parse %q: %v", formatted, err)
			}
			if parsed.Year() != tt.in.Year() || parsed.Month() != tt.in.Month() || parsed.Day() != tt.in.Day() ||
				parsed.Hour() != tt.in.Hour() || parsed.Minute() != tt.in.Minute() || parsed.Second() != tt.in.Second() {
				t.Fatalf("wall clock changed: %v -> %v", tt.in, parsed)
			}
			if Format(parsed) != formatted {
				t.Fatalf("expected %q after round trip, got %q", formatted, Format(parsed))
			}
		})
	}
}

func TestLexicographicOrderMatchesChronological(t *testing.T) {
	earlier := Format(time.Date(2024, 9, 30, 23, 59, 59, 0, time.Local))
	later := Format(time.Date(2024, 10, 1, 0, 0, 0, 0, time.Local))
	if !(earlier < later) {
		t.Fatalf("expected %q < %q", earlier, later)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "canonical", raw: "2099-01-01T00:00:00", want: "2099-01-01T00:00:00"},
		{name: "datetime-local", raw: "2099-01-01T08:30", want: "2099-01-01T08:30:00"},
		{name: "surrounding spaces", raw: "  2099-01-01T08:30:15 ", want: "2099-01-01T08:30:15"},
		{name: "empty", raw: "", wantErr: true},
		{name: "missing padding", raw: "2099-1-1T8:30:00", wantErr: true},
		{name: "timezone suffix", raw: "2099-01-01T08:30:00Z", wantErr: true},
		{name: "space separator", raw: "2099-01-01 08:30:00", wantErr: true},
		{name: "impossible date", raw: "2099-02-30T08:30:00", wantErr: true},
		{name: "garbage", raw: "tomorrow", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTime) {
					t.Fatalf("expected ErrInvalidTime, got %q, %v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFixedClockAdvance(t *testing.T) {
	c := NewFixed(MustParse("2024-06-01T00:00:00"))
	c.Advance(90 * time.Second)
	if got := NowString(c); got != "2024-06-01T00:01:30" {
		t.Fatalf("expected advanced clock, got %q", got)
	}
	c.Set(MustParse("2099-01-01T00:00:01"))
	if got := NowString(c); got != "2099-01-01T00:00:01" {
		t.Fatalf("expected reset clock, got %q", got)
	}
}

func TestNormalizeRejectsNonexistentLocalTime(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 2024-03-10 02:00 至 03:00 在纽约时区不存在
	for _, raw := range []string{"2024-03-10T02:30:00", "2024-03-10T02:30"} {
		if got, err := normalizeIn(raw, loc); !errors.Is(err, ErrInvalidTime) {
			t.Fatalf("%s: expected ErrInvalidTime, got %q, %v", raw, got, err)
		}
	}

	got, err := normalizeIn("2024-03-10T03:30", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "2024-03-10T03:30:00" {
		t.Fatalf("expected canonical string, got %q", got)
	}
}
