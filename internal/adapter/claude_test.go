package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeCollect(t *testing.T) {
	recent := time.Now().Format("2006-01-02")
	stale := time.Now().AddDate(0, 0, -90).Format("2006-01-02")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sessionKey=sk-test", r.Header.Get("Cookie"))
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/api/organizations":
			fmt.Fprint(w, `[{"uuid":"org-1"},{"uuid":"org-2"}]`)
		case "/api/organizations/org-1/chat_conversations":
			fmt.Fprintf(w, `[
				{"uuid":"c1","name":"Planning","summary":"sum","updated_at":"%sT10:00:00Z"},
				{"uuid":"c2","name":"Old","updated_at":"%sT10:00:00Z"},
				{"uuid":"c3","created_at":"%sT08:00:00Z"}
			]`, recent, stale, recent)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClaude(stubCookies{values: map[string]string{"sessionKey": "sk-test"}})
	c.BaseURL = srv.URL

	records, err := c.Collect(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, records, 2, "stale conversation must be filtered out")

	assert.Equal(t, "claude", records[0].Platform)
	assert.Equal(t, "Planning", records[0].Title)
	assert.Equal(t, srv.URL+"/chat/c1", records[0].URL)
	assert.Equal(t, recent, records[0].Date)
	assert.Equal(t, "sum", records[0].Preview)

	assert.Equal(t, "Untitled", records[1].Title)
}

func TestClaudeMissingCookieDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected without a session cookie")
	}))
	defer srv.Close()

	c := NewClaude(stubCookies{values: map[string]string{}})
	c.BaseURL = srv.URL

	records, err := c.Collect(context.Background(), 30)
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestClaudeExpiredSessionDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClaude(stubCookies{values: map[string]string{"sessionKey": "stale"}})
	c.BaseURL = srv.URL

	records, err := c.Collect(context.Background(), 30)
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestClaudeCookieReadFailureDegrades(t *testing.T) {
	c := NewClaude(stubCookies{err: assert.AnError})
	c.BaseURL = "http://localhost:0"

	records, err := c.Collect(context.Background(), 30)
	assert.NoError(t, err)
	assert.Empty(t, records)
}
