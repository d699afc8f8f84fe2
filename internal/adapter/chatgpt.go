package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sjbaek/recollect/internal/record"
)

const (
	chatgptDomain        = "chatgpt.com"
	chatgptBase          = "https://" + chatgptDomain
	chatgptSessionCookie = "__Secure-next-auth.session-token"
	chatgptPageSize      = 28
	chatgptMaxPages      = 50
)

// ChatGPT collects chatgpt.com conversations. The browser's NextAuth
// session cookie is exchanged for a bearer token, which the backend
// conversation API accepts.
type ChatGPT struct {
	Cookies CookieSource
	BaseURL string

	http *resty.Client
}

// NewChatGPT returns the chatgpt.com adapter backed by the given cookie
// source.
func NewChatGPT(cookies CookieSource) *ChatGPT {
	return &ChatGPT{Cookies: cookies, BaseURL: chatgptBase, http: newClient()}
}

func (c *ChatGPT) Platform() string { return "chatgpt" }

type chatgptConversation struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	UpdateTime string `json:"update_time"`
	CreateTime string `json:"create_time"`
}

type chatgptPage struct {
	Items []chatgptConversation `json:"items"`
	Total int                   `json:"total"`
}

// Collect pages through the conversation list. Pagination stops on an empty
// page, a short page, offset reaching the reported total, or the page bound,
// whichever comes first; a mid-run API failure keeps what was already
// fetched.
func (c *ChatGPT) Collect(ctx context.Context, days int) ([]record.Raw, error) {
	token, ok := c.sessionCookie(ctx)
	if !ok {
		return nil, nil
	}

	access, err := c.accessToken(ctx, token)
	if err != nil {
		if isAuthStatus(err) {
			slog.Warn("chatgpt session expired, log in to chatgpt.com in Chrome")
			return nil, nil
		}
		return nil, err
	}

	cut := cutoff(days, time.Now())
	var out []record.Raw
	offset := 0

	for page := 0; ; page++ {
		if page == chatgptMaxPages {
			slog.Warn("hit chatgpt page bound, results may be incomplete", "pages", chatgptMaxPages)
			break
		}

		body, err := c.fetchPage(ctx, access, offset)
		if err != nil {
			slog.Error("chatgpt conversation fetch failed", "error", err, "offset", offset)
			break
		}
		if len(body.Items) == 0 {
			break
		}

		for _, item := range body.Items {
			date := firstTimestampDate(item.UpdateTime, item.CreateTime)
			if date != "" && date < cut {
				continue
			}

			title := item.Title
			if title == "" {
				title = "Untitled"
			}
			url := ""
			if item.ID != "" {
				url = c.BaseURL + "/c/" + item.ID
			}

			out = append(out, record.Raw{
				Platform: "chatgpt",
				Title:    title,
				URL:      url,
				Date:     date,
			})
		}

		offset += chatgptPageSize
		if offset >= body.Total || len(body.Items) < chatgptPageSize {
			break
		}
	}

	slog.Info("collected chatgpt conversations", "count", len(out), "days", days)
	return out, nil
}

func (c *ChatGPT) sessionCookie(ctx context.Context) (string, bool) {
	set, err := c.Cookies.ReadCookies(ctx, chatgptDomain)
	if err != nil {
		slog.Warn("chatgpt cookie extraction failed", "error", err)
		return "", false
	}
	token := set.Values[chatgptSessionCookie]
	if token == "" {
		slog.Warn("chatgpt session cookie not found, log in to chatgpt.com in Chrome")
		return "", false
	}
	return token, true
}

// accessToken exchanges the session cookie for the bearer token the backend
// API expects.
func (c *ChatGPT) accessToken(ctx context.Context, sessionToken string) (string, error) {
	var body struct {
		AccessToken string `json:"accessToken"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Cookie", chatgptSessionCookie+"="+sessionToken).
		SetResult(&body).
		Get(c.BaseURL + "/api/auth/session")
	if err != nil {
		return "", fmt.Errorf("chatgpt: session exchange: %w", err)
	}
	if resp.IsError() {
		return "", &httpStatusError{op: "chatgpt: session exchange", status: resp.StatusCode()}
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("chatgpt: accessToken missing in session response")
	}
	return body.AccessToken, nil
}

func (c *ChatGPT) fetchPage(ctx context.Context, access string, offset int) (chatgptPage, error) {
	var body chatgptPage
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+access).
		SetHeader("Accept", "application/json").
		SetQueryParams(map[string]string{
			"limit":  strconv.Itoa(chatgptPageSize),
			"offset": strconv.Itoa(offset),
		}).
		SetResult(&body).
		Get(c.BaseURL + "/backend-api/conversations")
	if err != nil {
		return chatgptPage{}, err
	}
	if resp.IsError() {
		return chatgptPage{}, &httpStatusError{op: "chatgpt: conversations", status: resp.StatusCode()}
	}
	return body, nil
}
