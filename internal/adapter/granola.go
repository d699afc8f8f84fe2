package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sjbaek/recollect/internal/record"
)

const (
	granolaDocumentsPath = "/v2/get-documents"
	granolaNoteBase      = "https://granola.ai/note/"
	granolaPageSize      = 50
	granolaMaxPages      = 100
	granolaExpiryBuffer  = 5 * time.Minute
)

// Granola collects meeting notes straight from the Granola API, reusing the
// WorkOS token the desktop app keeps on disk. There is no refresh endpoint:
// an expired token means the user has to open the app.
type Granola struct {
	// TokenPath is the desktop app's supabase.json.
	TokenPath string
	BaseURL   string

	http *resty.Client
	now  func() time.Time
}

// NewGranola returns the Granola adapter reading tokens from tokenPath, or
// from the desktop app's default location when empty.
func NewGranola(tokenPath string) *Granola {
	if tokenPath == "" {
		home, _ := os.UserHomeDir()
		tokenPath = filepath.Join(home, "Library", "Application Support", "Granola", "supabase.json")
	}
	return &Granola{
		TokenPath: tokenPath,
		BaseURL:   "https://api.granola.ai",
		http:      newClient(),
		now:       time.Now,
	}
}

func (g *Granola) Platform() string { return "granola" }

type workosTokens struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	ObtainedAt   *float64 `json:"obtained_at"` // unix millis
}

type granolaDoc struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	CreatedAt string          `json:"created_at"`
	Date      string          `json:"date"`
	UpdatedAt string          `json:"updated_at"`
	StartTime string          `json:"start_time"`
	Content   json.RawMessage `json:"content"`
	Notes     json.RawMessage `json:"notes"`
}

// Collect pages through get-documents. The endpoint's ordering is not
// guaranteed, so stale documents are skipped per item rather than stopping
// the pagination early.
func (g *Granola) Collect(ctx context.Context, days int) ([]record.Raw, error) {
	tokens, ok := g.readTokens()
	if !ok {
		return nil, nil
	}
	if g.expired(tokens) {
		slog.Warn("granola token expired, open the Granola app to refresh it")
		return nil, nil
	}

	cut := cutoff(days, g.now())
	var out []record.Raw
	offset := 0

	for page := 0; ; page++ {
		if page == granolaMaxPages {
			slog.Warn("hit granola page bound, results may be incomplete", "pages", granolaMaxPages)
			break
		}

		docs, err := g.fetchDocuments(ctx, tokens.AccessToken, offset)
		if err != nil {
			slog.Error("granola document fetch failed", "error", err, "offset", offset)
			break
		}
		if len(docs) == 0 {
			break
		}

		for _, doc := range docs {
			date := firstTimestampDate(doc.CreatedAt, doc.Date, doc.UpdatedAt, doc.StartTime)
			if date != "" && date < cut {
				continue
			}

			title := doc.Title
			if title == "" {
				title = "Untitled Meeting"
			}
			url := ""
			if doc.ID != "" {
				url = granolaNoteBase + doc.ID
			}

			out = append(out, record.Raw{
				Platform: "granola",
				Title:    title,
				URL:      url,
				Date:     date,
				Preview:  docPreview(doc),
			})
		}

		if len(docs) < granolaPageSize {
			break
		}
		offset += granolaPageSize
	}

	slog.Info("collected granola notes", "count", len(out), "days", days)
	return out, nil
}

// readTokens loads the WorkOS token blob. The workos_tokens field is
// sometimes a JSON object and sometimes a JSON string wrapping one.
func (g *Granola) readTokens() (workosTokens, bool) {
	raw, err := os.ReadFile(g.TokenPath)
	if err != nil {
		slog.Warn("granola not installed, token file missing", "path", g.TokenPath)
		return workosTokens{}, false
	}

	var outer struct {
		WorkosTokens json.RawMessage `json:"workos_tokens"`
	}
	if err := json.Unmarshal(raw, &outer); err != nil || len(outer.WorkosTokens) == 0 {
		slog.Error("granola token file unreadable", "path", g.TokenPath, "error", err)
		return workosTokens{}, false
	}

	inner := outer.WorkosTokens
	if inner[0] == '"' {
		var s string
		if err := json.Unmarshal(inner, &s); err != nil {
			slog.Error("granola workos_tokens not decodable", "error", err)
			return workosTokens{}, false
		}
		inner = json.RawMessage(s)
	}

	var tokens workosTokens
	if err := json.Unmarshal(inner, &tokens); err != nil {
		slog.Error("granola workos_tokens not decodable", "error", err)
		return workosTokens{}, false
	}
	if tokens.AccessToken == "" || tokens.ObtainedAt == nil {
		slog.Error("granola workos_tokens missing access_token or obtained_at")
		return workosTokens{}, false
	}
	return tokens, true
}

func (g *Granola) expired(tokens workosTokens) bool {
	obtained := time.UnixMilli(int64(*tokens.ObtainedAt))
	expiry := obtained.Add(time.Duration(tokens.ExpiresIn)*time.Second - granolaExpiryBuffer)
	return g.now().After(expiry)
}

// fetchDocuments posts one page request. The response body is either a bare
// array or an object wrapping one under docs, documents or data.
func (g *Granola) fetchDocuments(ctx context.Context, token string, offset int) ([]granolaDoc, error) {
	resp, err := g.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]int{"limit": granolaPageSize, "offset": offset}).
		Post(g.BaseURL + granolaDocumentsPath)
	if err != nil {
		return nil, fmt.Errorf("granola: get-documents: %w", err)
	}
	if resp.IsError() {
		return nil, &httpStatusError{op: "granola: get-documents", status: resp.StatusCode()}
	}

	body := resp.Body()
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var docs []granolaDoc
		if err := json.Unmarshal(body, &docs); err != nil {
			return nil, fmt.Errorf("granola: decode documents: %w", err)
		}
		return docs, nil
	}

	var wrapped struct {
		Docs      []granolaDoc `json:"docs"`
		Documents []granolaDoc `json:"documents"`
		Data      []granolaDoc `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("granola: decode documents: %w", err)
	}
	switch {
	case wrapped.Docs != nil:
		return wrapped.Docs, nil
	case wrapped.Documents != nil:
		return wrapped.Documents, nil
	default:
		return wrapped.Data, nil
	}
}

// docPreview flattens the note body into a short plain-text preview.
func docPreview(doc granolaDoc) string {
	content := doc.Content
	if len(content) == 0 {
		content = doc.Notes
	}
	if len(content) == 0 {
		return ""
	}

	var node any
	if err := json.Unmarshal(content, &node); err != nil {
		return ""
	}
	text := strings.TrimSpace(prosemirrorText(node))
	return truncateRunes(text, 200)
}

// prosemirrorText walks a ProseMirror JSON tree collecting text nodes.
// Block-level nodes terminate with a newline so adjacent paragraphs do not
// run together in the preview.
func prosemirrorText(node any) string {
	switch n := node.(type) {
	case string:
		return n
	case []any:
		var b strings.Builder
		for _, child := range n {
			b.WriteString(prosemirrorText(child))
		}
		return b.String()
	case map[string]any:
		var b strings.Builder
		if n["type"] == "text" {
			if text, ok := n["text"].(string); ok {
				b.WriteString(text)
			}
		}
		if content, ok := n["content"].([]any); ok {
			for _, child := range content {
				b.WriteString(prosemirrorText(child))
			}
		}
		switch n["type"] {
		case "paragraph", "heading", "bulletList", "orderedList", "listItem":
			b.WriteString("\n")
		}
		return b.String()
	default:
		return ""
	}
}
