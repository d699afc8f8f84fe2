package record

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

var (
	daysAgoRe  = regexp.MustCompile(`(\d+)\s*days?\s*ago`)
	weeksAgoRe = regexp.MustCompile(`(\d+)\s*weeks?\s*ago`)
	isoDateRe  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	mdyRe      = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
)

// DateFromText parses date strings commonly shown in chat UIs relative to
// now: "Today", "Yesterday", "N days ago", "N weeks ago", ISO dates and
// MM/DD/YYYY. Returns an ISO date or "" when nothing matches.
func DateFromText(text string, now time.Time) string {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	if cleaned == "" {
		return ""
	}

	switch cleaned {
	case "today":
		return now.Format(isoDate)
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(isoDate)
	}

	if m := daysAgoRe.FindStringSubmatch(cleaned); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.AddDate(0, 0, -n).Format(isoDate)
	}
	if m := weeksAgoRe.FindStringSubmatch(cleaned); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.AddDate(0, 0, -7*n).Format(isoDate)
	}
	if m := isoDateRe.FindString(cleaned); m != "" {
		return m
	}
	if m := mdyRe.FindStringSubmatch(cleaned); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if int(t.Month()) != month || t.Day() != day {
			return ""
		}
		return t.Format(isoDate)
	}
	return ""
}

// DateFromTimestamp extracts the ISO date from an RFC3339-ish timestamp
// string ("2025-01-15T10:00:00Z" -> "2025-01-15"). Returns "" when the
// prefix is not a valid date.
func DateFromTimestamp(ts string) string {
	if len(ts) < len(isoDate) {
		return ""
	}
	candidate := ts[:len(isoDate)]
	if _, err := time.Parse(isoDate, candidate); err != nil {
		return ""
	}
	return candidate
}

// FilterByAge keeps records dated on or after now minus days. Records with no
// date are kept: over-inclusion beats silently dropping real activity.
func FilterByAge(records []Raw, days int, now time.Time) []Raw {
	cutoff := now.AddDate(0, 0, -days).Format(isoDate)
	out := make([]Raw, 0, len(records))
	for _, r := range records {
		if r.Date == "" || r.Date >= cutoff {
			out = append(out, r)
		}
	}
	return out
}
