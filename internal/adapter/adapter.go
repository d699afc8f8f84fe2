// Package adapter implements one collector per platform. Each adapter owns
// its provider's auth pattern and endpoints and emits normalized records; a
// platform is either API-based (plain HTTP with harvested credentials) or
// browser-based (scraped through a CDP tab). Missing or stale credentials
// degrade to an empty result with a logged remediation hint, never an error
// that would abort the other platforms.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sjbaek/recollect/internal/record"
	"github.com/sjbaek/recollect/internal/vault"
)

// userAgent matches a desktop Chrome so provider endpoints treat requests
// like the logged-in browser session whose credentials we reuse.
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// API is a platform collected over plain HTTP.
type API interface {
	Platform() string
	Collect(ctx context.Context, days int) ([]record.Raw, error)
}

// Browser is a platform scraped through a live browser tab. The context
// passed to CheckLogin and ListRecords is a chromedp tab context already
// navigated to EntryURL.
type Browser interface {
	Platform() string
	EntryURL() string
	CheckLogin(ctx context.Context) (bool, error)
	ListRecords(ctx context.Context, days int) ([]record.Raw, error)
}

// CookieSource yields decrypted browser cookies for a domain.
type CookieSource interface {
	ReadCookies(ctx context.Context, domain string) (vault.CookieSet, error)
}

// TokenSource yields a bearer-ready identity token for a domain.
type TokenSource interface {
	AccessToken(ctx context.Context, domain string, apiKey string) (string, error)
}

// Registry maps platform names to their adapters.
type Registry struct {
	apis     map[string]API
	browsers map[string]Browser
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		apis:     make(map[string]API),
		browsers: make(map[string]Browser),
	}
}

// AddAPI registers an API-based adapter under its platform name.
func (r *Registry) AddAPI(a API) { r.apis[a.Platform()] = a }

// AddBrowser registers a browser-based adapter under its platform name.
func (r *Registry) AddBrowser(b Browser) { r.browsers[b.Platform()] = b }

// API looks up an API-based adapter.
func (r *Registry) API(platform string) (API, bool) {
	a, ok := r.apis[platform]
	return a, ok
}

// Browser looks up a browser-based adapter.
func (r *Registry) Browser(platform string) (Browser, bool) {
	b, ok := r.browsers[platform]
	return b, ok
}

// Known reports whether any adapter handles the platform.
func (r *Registry) Known(platform string) bool {
	_, api := r.apis[platform]
	_, browser := r.browsers[platform]
	return api || browser
}

// newClient builds the HTTP client shared by the API adapters.
func newClient() *resty.Client {
	return resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", userAgent)
}

// cutoff is the oldest ISO date still inside the lookback window.
func cutoff(days int, now time.Time) string {
	return now.AddDate(0, 0, -days).Format("2006-01-02")
}

// httpStatusError carries a non-2xx status so callers can distinguish an
// expired credential from a transport failure.
type httpStatusError struct {
	op     string
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.op, e.status)
}

// isAuthStatus reports whether err is an HTTP 401/403, meaning the harvested
// credential is stale and the user has to log in again.
func isAuthStatus(err error) bool {
	var se *httpStatusError
	return errors.As(err, &se) && (se.status == 401 || se.status == 403)
}

// truncateRunes caps s at n runes without splitting a multibyte character.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
