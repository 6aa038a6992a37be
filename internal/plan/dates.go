package plan

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	// DateLayout is the canonical plan date format
	DateLayout = "2006-01-02"
	// TimeLayout is the canonical stored task timestamp format
	TimeLayout = "2006-01-02 15:04"
)

var (
	dateOnlyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	embeddedDate    = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

// DateAmbiguityError reports a batch that names more than one calendar
// date. The caller must resubmit with one consistent date.
type DateAmbiguityError struct {
	Dates []string
}

func (e *DateAmbiguityError) Error() string {
	return fmt.Sprintf("conflicting plan dates in request: %s", strings.Join(e.Dates, ", "))
}

// ResolvePlanDate decides which calendar date an operation addresses.
// target may be empty (defaults to today), a keyword (today/tomorrow/
// yesterday and their Chinese synonyms), or an explicit YYYY-MM-DD date.
// Dates embedded in the batch's start/end fields win over the default;
// an embedded date that disagrees with an explicit target, or multiple
// distinct embedded dates, is a DateAmbiguityError.
func ResolvePlanDate(target string, today time.Time, batch []Task) (string, error) {
	explicit := ""
	switch kw := strings.ToLower(strings.TrimSpace(target)); kw {
	case "", "today", "今天", "今日":
		// default resolved below
		if kw != "" {
			explicit = today.Format(DateLayout)
		}
	case "tomorrow", "明天":
		explicit = today.AddDate(0, 0, 1).Format(DateLayout)
	case "yesterday", "昨天":
		explicit = today.AddDate(0, 0, -1).Format(DateLayout)
	default:
		if !dateOnlyPattern.MatchString(kw) {
			return "", fmt.Errorf("unrecognized plan date %q (use YYYY-MM-DD, today, tomorrow or yesterday)", target)
		}
		if _, err := time.Parse(DateLayout, kw); err != nil {
			return "", fmt.Errorf("invalid plan date %q: %w", target, err)
		}
		explicit = kw
	}

	embedded := embeddedDates(batch)

	if explicit == "" {
		switch len(embedded) {
		case 0:
			return today.Format(DateLayout), nil
		case 1:
			return embedded[0], nil
		default:
			return "", &DateAmbiguityError{Dates: embedded}
		}
	}

	for _, d := range embedded {
		if d != explicit {
			all := append([]string{explicit}, embedded...)
			sort.Strings(all)
			return "", &DateAmbiguityError{Dates: dedupe(all)}
		}
	}
	return explicit, nil
}

// embeddedDates returns the distinct dates found in the batch's raw
// start/end strings, in first-seen order.
func embeddedDates(batch []Task) []string {
	var dates []string
	seen := map[string]bool{}
	for _, t := range batch {
		for _, raw := range []string{t.Start, t.End} {
			d := embeddedDate.FindString(raw)
			if d != "" && !seen[d] {
				seen[d] = true
				dates = append(dates, d)
			}
		}
	}
	return dates
}

func dedupe(sorted []string) []string {
	var out []string
	for _, s := range sorted {
		if len(out) == 0 || out[len(out)-1] != s {
			out = append(out, s)
		}
	}
	return out
}

// timestampLayouts are tried in order against a raw value with "T"
// replaced by a space.
var timestampLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var bareTimeLayouts = []string{
	"15:04:05",
	"15:04",
}

// NormalizeTimestamp parses an ISO-like string, "YYYY-MM-DD HH:MM[:SS]",
// or a bare "HH:MM[:SS]" combined with planDate, into an instant in the
// local zone. There is no fallback to "now": unparseable input returns
// ok=false and the caller must report it.
func NormalizeTimestamp(raw, planDate string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	value = strings.Replace(value, "T", " ", 1)

	for _, layout := range timestampLayouts {
		if dt, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return dt.In(time.Local), true
		}
	}

	for _, layout := range bareTimeLayouts {
		if clock, err := time.Parse(layout, value); err == nil {
			day, err := time.ParseInLocation(DateLayout, planDate, time.Local)
			if err != nil {
				return time.Time{}, false
			}
			return time.Date(day.Year(), day.Month(), day.Day(),
				clock.Hour(), clock.Minute(), clock.Second(), 0, time.Local), true
		}
	}

	return time.Time{}, false
}
