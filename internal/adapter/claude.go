package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sjbaek/recollect/internal/record"
	"github.com/sjbaek/recollect/internal/vault"
)

const (
	claudeDomain = "claude.ai"
	claudeBase   = "https://" + claudeDomain
)

// Claude collects claude.ai conversations by reusing the browser's
// sessionKey cookie directly against the web app's REST endpoints.
type Claude struct {
	Cookies CookieSource
	BaseURL string

	http *resty.Client
}

// NewClaude returns the claude.ai adapter backed by the given cookie source.
func NewClaude(cookies CookieSource) *Claude {
	return &Claude{Cookies: cookies, BaseURL: claudeBase, http: newClient()}
}

func (c *Claude) Platform() string { return "claude" }

type claudeOrg struct {
	UUID string `json:"uuid"`
}

type claudeConversation struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	UpdatedAt string `json:"updated_at"`
	CreatedAt string `json:"created_at"`
}

// Collect lists the first organization's conversations. The endpoint's
// ordering is not documented, so the whole set is fetched and filtered
// rather than stopping at the first stale entry.
func (c *Claude) Collect(ctx context.Context, days int) ([]record.Raw, error) {
	key, ok := c.sessionKey(ctx)
	if !ok {
		return nil, nil
	}

	orgID, err := c.orgID(ctx, key)
	if err != nil {
		if isAuthStatus(err) {
			slog.Warn("claude session expired, log in to claude.ai in Chrome")
			return nil, nil
		}
		return nil, err
	}

	var convos []claudeConversation
	resp, err := c.request(ctx, key).
		SetResult(&convos).
		Get(c.BaseURL + "/api/organizations/" + orgID + "/chat_conversations")
	if err != nil {
		return nil, fmt.Errorf("claude: list conversations: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("claude: list conversations: HTTP %d", resp.StatusCode())
	}

	cut := cutoff(days, time.Now())
	var out []record.Raw
	for _, conv := range convos {
		date := firstTimestampDate(conv.UpdatedAt, conv.CreatedAt)
		if date != "" && date < cut {
			continue
		}

		title := conv.Name
		if title == "" {
			title = conv.Title
		}
		if title == "" {
			title = "Untitled"
		}
		url := ""
		if conv.UUID != "" {
			url = c.BaseURL + "/chat/" + conv.UUID
		}

		out = append(out, record.Raw{
			Platform: "claude",
			Title:    title,
			URL:      url,
			Date:     date,
			Preview:  conv.Summary,
		})
	}

	slog.Info("collected claude conversations", "count", len(out), "days", days)
	return out, nil
}

func (c *Claude) sessionKey(ctx context.Context) (string, bool) {
	set, err := c.Cookies.ReadCookies(ctx, claudeDomain)
	if err != nil {
		slog.Warn("claude cookie extraction failed", "error", err)
		return "", false
	}
	key := set.Values["sessionKey"]
	if key == "" {
		slog.Warn("sessionKey cookie not found, log in to claude.ai in Chrome")
		return "", false
	}
	return key, true
}

func (c *Claude) orgID(ctx context.Context, key string) (string, error) {
	var orgs []claudeOrg
	resp, err := c.request(ctx, key).
		SetResult(&orgs).
		Get(c.BaseURL + "/api/organizations")
	if err != nil {
		return "", fmt.Errorf("claude: organizations: %w", err)
	}
	if resp.IsError() {
		return "", &httpStatusError{op: "claude: organizations", status: resp.StatusCode()}
	}
	if len(orgs) == 0 {
		return "", fmt.Errorf("claude: no organizations found")
	}
	return orgs[0].UUID, nil
}

func (c *Claude) request(ctx context.Context, key string) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("Cookie", "sessionKey="+key).
		SetHeader("Referer", c.BaseURL+"/chats").
		SetHeader("Accept", "application/json")
}

// firstTimestampDate returns the date of the first timestamp that carries a
// valid ISO prefix.
func firstTimestampDate(timestamps ...string) string {
	for _, ts := range timestamps {
		if d := record.DateFromTimestamp(ts); d != "" {
			return d
		}
	}
	return ""
}

var _ CookieSource = (*vault.Vault)(nil)
