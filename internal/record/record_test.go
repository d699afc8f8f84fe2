package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	got := Normalize(Raw{
		Platform: " Claude ",
		Title:    "  hello   world\n",
		URL:      "https://claude.ai/chat/abc//",
		Preview:  " p ",
	})
	assert.Equal(t, "claude", got.Platform)
	assert.Equal(t, "hello world", got.Title)
	assert.Equal(t, "https://claude.ai/chat/abc", got.URL)
	assert.Equal(t, "p", got.Preview)
}

func TestDateFromText(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		in   string
		want string
	}{
		{"Today", "2025-06-15"},
		{"yesterday", "2025-06-14"},
		{"3 days ago", "2025-06-12"},
		{"1 day ago", "2025-06-14"},
		{"2 weeks ago", "2025-06-01"},
		{"2025-01-15T10:00:00", "2025-01-15"},
		{"6/3/2025", "2025-06-03"},
		{"13/45/2025", ""},
		{"no date here", ""},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DateFromText(c.in, now), "input %q", c.in)
	}
}

func TestDateFromTimestamp(t *testing.T) {
	assert.Equal(t, "2025-01-15", DateFromTimestamp("2025-01-15T10:00:00Z"))
	assert.Equal(t, "", DateFromTimestamp("not-a-date"))
	assert.Equal(t, "", DateFromTimestamp("2025-99-99T00:00:00Z"))
	assert.Equal(t, "", DateFromTimestamp("short"))
}

func TestFilterByAge(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	records := []Raw{
		{Title: "undated"},
		{Title: "recent", Date: "2025-06-10"},
		{Title: "boundary", Date: "2025-06-08"},
		{Title: "old", Date: "2025-06-07"},
	}

	got := FilterByAge(records, 7, now)
	titles := make([]string, len(got))
	for i, r := range got {
		titles[i] = r.Title
	}
	assert.Equal(t, []string{"undated", "recent", "boundary"}, titles)
}
