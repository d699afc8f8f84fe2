// Package record defines the normalized output shape shared by every
// platform adapter, plus the date helpers used to filter records against a
// lookback window.
package record

import "strings"

// Raw is one collected activity record. Date is an ISO date (YYYY-MM-DD) or
// empty when the platform exposed none. A Raw is immutable once normalized.
type Raw struct {
	Platform string
	Title    string
	URL      string
	Date     string
	Preview  string
}

// Normalize returns a cleaned copy: platform lowercased, title whitespace
// collapsed, URL stripped of trailing slashes.
func Normalize(r Raw) Raw {
	return Raw{
		Platform: strings.ToLower(strings.TrimSpace(r.Platform)),
		Title:    NormalizeTitle(r.Title),
		URL:      NormalizeURL(r.URL),
		Date:     r.Date,
		Preview:  strings.TrimSpace(r.Preview),
	}
}

// NormalizeTitle collapses runs of whitespace into single spaces.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}

// NormalizeURL trims surrounding whitespace and trailing slashes.
func NormalizeURL(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/")
}
