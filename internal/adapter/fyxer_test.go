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

type stubTokens struct {
	token string
	err   error
}

func (s stubTokens) AccessToken(context.Context, string, string) (string, error) {
	return s.token, s.err
}

type stubAttestation struct {
	token string
}

func (s stubAttestation) Token(context.Context, string) (string, bool) {
	return s.token, s.token != ""
}

func TestUnwrapValue(t *testing.T) {
	doc := firestoreDoc{
		Name: "projects/p/databases/(default)/documents/organisations/org-1/calls/rec-9",
		Fields: map[string]firestoreValue{
			"title":   {"stringValue": []byte(`"Weekly sync"`)},
			"count":   {"integerValue": []byte(`"42"`)},
			"score":   {"doubleValue": []byte(`3.5`)},
			"done":    {"booleanValue": []byte(`true`)},
			"when":    {"timestampValue": []byte(`"2025-06-01T10:00:00Z"`)},
			"nothing": {"nullValue": []byte(`null`)},
			"meta": {"mapValue": []byte(`{"fields":{"text":{"stringValue":"inner"}}}`)},
			"tags": {"arrayValue": []byte(`{"values":[{"stringValue":"a"},{"integerValue":"7"}]}`)},
		},
	}

	fields := unwrapFields(doc)
	assert.Equal(t, "Weekly sync", fields["title"])
	assert.Equal(t, int64(42), fields["count"])
	assert.Equal(t, 3.5, fields["score"])
	assert.Equal(t, true, fields["done"])
	assert.Equal(t, "2025-06-01T10:00:00Z", fields["when"])
	assert.Nil(t, fields["nothing"])
	assert.Equal(t, map[string]any{"text": "inner"}, fields["meta"])
	assert.Equal(t, []any{"a", int64(7)}, fields["tags"])

	assert.Equal(t, "rec-9", doc.id())
}

func TestFieldsHelpers(t *testing.T) {
	fields := map[string]any{
		"meeting_title": "Quarterly review",
		"createdAt":     "2025-06-01T10:00:00Z",
		"summary":       "  key points discussed  ",
	}
	assert.Equal(t, "Quarterly review", fieldsTitle(fields))
	assert.Equal(t, "2025-06-01", fieldsDate(fields))
	assert.Equal(t, "key points discussed", fieldsTranscript(fields))

	assert.Equal(t, "Untitled Call", fieldsTitle(map[string]any{}))
	assert.Empty(t, fieldsDate(map[string]any{"createdAt": "not a date"}))

	nested := map[string]any{"transcript": map[string]any{"text": "spoken words"}}
	assert.Equal(t, "spoken words", fieldsTranscript(nested))
}

func fyxerDocJSON(id, title, created string) string {
	return fmt.Sprintf(`{
		"name": "projects/p/databases/(default)/documents/organisations/org-1/call_recordings/%s",
		"fields": {
			"title": {"stringValue": %q},
			"createdAt": {"timestampValue": "%sT10:00:00Z"},
			"transcript": {"stringValue": "hello there"}
		}
	}`, id, title, created)
}

func TestFyxerCollect(t *testing.T) {
	recent := time.Now().Format("2006-01-02")
	stale := time.Now().AddDate(0, 0, -90).Format("2006-01-02")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer id-token", r.Header.Get("Authorization"))
		assert.Equal(t, "attest-1", r.Header.Get("X-Firebase-AppCheck"))
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/users":
			fmt.Fprint(w, `{"documents":[{"name":"u/1","fields":{"organisationId":{"stringValue":"org-1"}}}]}`)
		case "/organisations/org-1/call_recordings":
			if r.URL.Query().Get("pageSize") == "1" {
				fmt.Fprintf(w, `{"documents":[%s]}`, fyxerDocJSON("probe", "x", recent))
				return
			}
			fmt.Fprintf(w, `{"documents":[%s,%s]}`,
				fyxerDocJSON("rec-1", "Sales call", recent),
				fyxerDocJSON("rec-2", "Ancient call", stale))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := NewFyxer(stubTokens{token: "id-token"}, stubAttestation{token: "attest-1"})
	f.BaseURL = srv.URL

	records, err := f.Collect(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, records, 1, "stale recording must be filtered out")

	assert.Equal(t, "fyxer", records[0].Platform)
	assert.Equal(t, "Sales call", records[0].Title)
	assert.Equal(t, fyxerRecordingBase+"rec-1", records[0].URL)
	assert.Equal(t, recent, records[0].Date)
	assert.Equal(t, "hello there", records[0].Preview)
}

func TestFyxerDetectsCollectionViaListing(t *testing.T) {
	recent := time.Now().Format("2006-01-02")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/users":
			fmt.Fprint(w, `{"documents":[{"name":"u/1","fields":{"organization_id":{"stringValue":"org-1"}}}]}`)
		case r.URL.Path == "/organisations/org-1:listCollectionIds":
			fmt.Fprint(w, `{"collectionIds":["settings","meetingNotes"]}`)
		case r.URL.Path == "/organisations/org-1/meetingNotes":
			fmt.Fprintf(w, `{"documents":[%s]}`, fyxerDocJSON("m-1", "Kickoff", recent))
		default:
			// Known-name probes miss.
			fmt.Fprint(w, `{}`)
		}
	}))
	defer srv.Close()

	f := NewFyxer(stubTokens{token: "id-token"}, nil)
	f.BaseURL = srv.URL

	records, err := f.Collect(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Kickoff", records[0].Title)
}

func TestFyxerPaginatesWithPageTokens(t *testing.T) {
	recent := time.Now().Format("2006-01-02")
	var tokens []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/users":
			fmt.Fprint(w, `{"documents":[{"name":"u/1","fields":{"organisationId":{"stringValue":"org-1"}}}]}`)
		case "/organisations/org-1/call_recordings":
			if r.URL.Query().Get("pageSize") == "1" {
				fmt.Fprintf(w, `{"documents":[%s]}`, fyxerDocJSON("probe", "x", recent))
				return
			}
			token := r.URL.Query().Get("pageToken")
			tokens = append(tokens, token)
			if token == "" {
				fmt.Fprintf(w, `{"documents":[%s],"nextPageToken":"page-2"}`, fyxerDocJSON("rec-1", "First", recent))
			} else {
				fmt.Fprintf(w, `{"documents":[%s]}`, fyxerDocJSON("rec-2", "Second", recent))
			}
		}
	}))
	defer srv.Close()

	f := NewFyxer(stubTokens{token: "id-token"}, nil)
	f.BaseURL = srv.URL

	records, err := f.Collect(context.Background(), 30)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, []string{"", "page-2"}, tokens)
}

func TestFyxerTokenUnavailableDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected without an identity token")
	}))
	defer srv.Close()

	f := NewFyxer(stubTokens{err: assert.AnError}, nil)
	f.BaseURL = srv.URL

	records, err := f.Collect(context.Background(), 30)
	assert.NoError(t, err)
	assert.Empty(t, records)
}
