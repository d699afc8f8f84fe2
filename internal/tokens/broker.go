// Package tokens reads provider auth tokens cached by client SDKs in the
// browser's IndexedDB, validates them against an expiry buffer, and refreshes
// them over the network when stale. Tokens are used within one adapter call
// and never written back to the browser's store.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrStoreNotFound means no IndexedDB store exists for the domain in any
	// profile. Distinct from a store that exists but holds garbage.
	ErrStoreNotFound = errors.New("tokens: indexeddb store not found")
	// ErrRecordMalformed means the store was found but the auth record is
	// missing or not shaped as expected.
	ErrRecordMalformed = errors.New("tokens: auth record malformed")
	// ErrTokenRefresh means the refresh endpoint rejected the exchange.
	ErrTokenRefresh = errors.New("tokens: token refresh failed")
)

// expiryBuffer treats tokens as expired this long before their real expiry.
const expiryBuffer = 5 * time.Minute

// AuthRecord is the identity-broker token pair cached by the provider SDK.
type AuthRecord struct {
	UID          string
	Email        string
	RefreshToken string
	AccessToken  string
	ExpiresAt    time.Time
}

// Broker locates and reads SDK token stores and exchanges refresh tokens.
type Broker struct {
	// RegularIDBDir is the user's live profile IndexedDB directory.
	RegularIDBDir string
	// AutomationIDBDirs are automation-profile IndexedDB directories,
	// checked in priority order after the regular profile.
	AutomationIDBDirs []string
	// RefreshURL is the provider's token refresh endpoint.
	RefreshURL string

	http *resty.Client
	now  func() time.Time
}

const defaultRefreshURL = "https://securetoken.googleapis.com/v1/token"

// NewBroker returns a Broker over the given profile IndexedDB directories.
func NewBroker(regularIDBDir string, automationIDBDirs ...string) *Broker {
	return &Broker{
		RegularIDBDir:     regularIDBDir,
		AutomationIDBDirs: automationIDBDirs,
		RefreshURL:        defaultRefreshURL,
		http:              resty.New().SetTimeout(15 * time.Second),
		now:               time.Now,
	}
}

// Locate finds the on-disk IndexedDB store for domain, regular profile
// first, then automation profiles in order. Returns ErrStoreNotFound when
// the domain has no store anywhere.
func (b *Broker) Locate(domain string) (string, error) {
	folder, err := idbFolderName(domain)
	if err != nil {
		return "", err
	}

	candidates := append([]string{b.RegularIDBDir}, b.AutomationIDBDirs...)
	for _, base := range candidates {
		if base == "" {
			continue
		}
		path := filepath.Join(base, folder)
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrStoreNotFound, domain)
}

// idbFolderName builds the browser's IndexedDB directory name for a domain,
// rejecting anything that could escape the profile tree.
func idbFolderName(domain string) (string, error) {
	if domain == "" || strings.ContainsAny(domain, `/\`) || strings.Contains(domain, "..") {
		return "", fmt.Errorf("tokens: invalid domain %q", domain)
	}
	return "https_" + domain + "_0.indexeddb.leveldb", nil
}

// ReadAuthRecord scans the store for the SDK auth record keyed by
// provider+apiKey. A missing or unexpectedly shaped record yields
// ErrRecordMalformed, never a panic.
func (b *Broker) ReadAuthRecord(storePath string, apiKey string) (AuthRecord, error) {
	marker := "firebase:authUser:" + apiKey + ":[DEFAULT]"

	values, err := scanStore(storePath, marker)
	if err != nil {
		return AuthRecord{}, fmt.Errorf("%w: %v", ErrRecordMalformed, err)
	}
	for _, value := range values {
		rec, ok := parseAuthRecord(value)
		if ok {
			return rec, nil
		}
	}
	return AuthRecord{}, fmt.Errorf("%w: no record for key %s", ErrRecordMalformed, marker)
}

// parseAuthRecord pulls the token fields out of one serialized record.
func parseAuthRecord(value []byte) (AuthRecord, bool) {
	refresh, ok := extractString(value, "refreshToken")
	if !ok {
		return AuthRecord{}, false
	}
	access, ok := extractString(value, "accessToken")
	if !ok {
		return AuthRecord{}, false
	}
	expMillis, ok := extractNumber(value, "expirationTime")
	if !ok {
		return AuthRecord{}, false
	}

	rec := AuthRecord{
		RefreshToken: refresh,
		AccessToken:  access,
		ExpiresAt:    time.UnixMilli(int64(expMillis)),
	}
	rec.UID, _ = extractString(value, "uid")
	rec.Email, _ = extractString(value, "email")
	return rec, true
}

// Valid reports whether the record's access token outlives now plus the
// safety buffer. Exactly at the buffer boundary counts as expired.
func (b *Broker) Valid(rec AuthRecord) bool {
	return rec.ExpiresAt.After(b.now().Add(expiryBuffer))
}

// AccessToken returns a bearer-ready token for domain: the cached one when
// still valid, otherwise a fresh one from the refresh endpoint.
func (b *Broker) AccessToken(ctx context.Context, domain string, apiKey string) (string, error) {
	store, err := b.Locate(domain)
	if err != nil {
		return "", err
	}
	rec, err := b.ReadAuthRecord(store, apiKey)
	if err != nil {
		return "", err
	}

	if b.Valid(rec) {
		slog.Info("using cached auth token", "domain", domain)
		return rec.AccessToken, nil
	}

	slog.Info("auth token expired, refreshing", "domain", domain)
	idToken, _, err := b.Refresh(ctx, apiKey, rec.RefreshToken)
	if err != nil {
		return "", err
	}
	return idToken, nil
}

// Refresh exchanges a refresh token at the provider's endpoint. Non-2xx is
// surfaced as ErrTokenRefresh and never auto-retried.
func (b *Broker) Refresh(ctx context.Context, apiKey string, refreshToken string) (idToken string, newRefresh string, err error) {
	var body struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
	}

	resp, err := b.http.R().
		SetContext(ctx).
		SetQueryParam("key", apiKey).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		}).
		SetResult(&body).
		Post(b.RefreshURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}
	if resp.IsError() {
		return "", "", fmt.Errorf("%w: HTTP %d", ErrTokenRefresh, resp.StatusCode())
	}
	if body.IDToken == "" {
		return "", "", fmt.Errorf("%w: empty id_token in response", ErrTokenRefresh)
	}
	return body.IDToken, body.RefreshToken, nil
}
