package plan

import (
	"errors"
	"testing"
	"time"
)

func TestResolvePlanDateKeywords(t *testing.T) {
	today := time.Date(2026, 1, 15, 8, 0, 0, 0, time.Local)

	cases := map[string]string{
		"":           "2026-01-15",
		"today":      "2026-01-15",
		"今天":         "2026-01-15",
		"tomorrow":   "2026-01-16",
		"明天":         "2026-01-16",
		"yesterday":  "2026-01-14",
		"2026-02-01": "2026-02-01",
	}

	for target, want := range cases {
		got, err := ResolvePlanDate(target, today, nil)
		if err != nil {
			t.Errorf("ResolvePlanDate(%q) failed: %v", target, err)
			continue
		}
		if got != want {
			t.Errorf("ResolvePlanDate(%q) = %s, want %s", target, got, want)
		}
	}
}

func TestResolvePlanDateUnrecognized(t *testing.T) {
	today := time.Date(2026, 1, 15, 8, 0, 0, 0, time.Local)

	for _, target := range []string{"next week", "01/15", "someday"} {
		if _, err := ResolvePlanDate(target, today, nil); err == nil {
			t.Errorf("ResolvePlanDate(%q) should have failed", target)
		}
	}
}

func TestResolvePlanDateEmbedded(t *testing.T) {
	today := time.Date(2026, 1, 15, 8, 0, 0, 0, time.Local)

	// a single embedded date wins over the default
	batch := []Task{{Title: "a", Start: "2026-01-20 09:00", End: "2026-01-20 10:00"}}
	got, err := ResolvePlanDate("", today, batch)
	if err != nil {
		t.Fatalf("embedded date resolution failed: %v", err)
	}
	if got != "2026-01-20" {
		t.Errorf("expected embedded date 2026-01-20, got %s", got)
	}

	// two distinct embedded dates are ambiguous
	batch = append(batch, Task{Title: "b", Start: "2026-01-21 09:00", End: "2026-01-21 10:00"})
	_, err = ResolvePlanDate("", today, batch)
	var amb *DateAmbiguityError
	if !errors.As(err, &amb) {
		t.Fatalf("expected DateAmbiguityError, got %v", err)
	}
	if len(amb.Dates) != 2 {
		t.Errorf("expected 2 conflicting dates, got %v", amb.Dates)
	}

	// an embedded date that disagrees with the explicit target is ambiguous too
	batch = batch[:1]
	_, err = ResolvePlanDate("2026-01-25", today, batch)
	if !errors.As(err, &amb) {
		t.Errorf("expected DateAmbiguityError for explicit/embedded conflict, got %v", err)
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"2026-01-15 09:30", "2026-01-15 09:30"},
		{"2026-01-15T09:30", "2026-01-15 09:30"},
		{"2026-01-15 09:30:45", "2026-01-15 09:30"},
		{"09:30", "2026-01-15 09:30"},
		{"09:30:00", "2026-01-15 09:30"},
	}

	for _, c := range cases {
		got, ok := NormalizeTimestamp(c.raw, "2026-01-15")
		if !ok {
			t.Errorf("NormalizeTimestamp(%q) failed", c.raw)
			continue
		}
		if got.Format(TimeLayout) != c.want {
			t.Errorf("NormalizeTimestamp(%q) = %s, want %s", c.raw, got.Format(TimeLayout), c.want)
		}
	}
}

func TestNormalizeTimestampRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "soon", "25:99", "next tuesday"} {
		if _, ok := NormalizeTimestamp(raw, "2026-01-15"); ok {
			t.Errorf("NormalizeTimestamp(%q) should have failed", raw)
		}
	}

	// a bare time without a plan date has nothing to anchor to
	if _, ok := NormalizeTimestamp("09:30", ""); ok {
		t.Error("bare time with no plan date should have failed")
	}
}
