// Package vault recovers session cookies from the browser's on-disk cookie
// store. The live sqlite database is snapshotted to a private temp file so
// the browser can stay open, values are decrypted with the key derived from
// the OS secret store, and nothing is cached beyond the call.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrSecretMissing means the OS secret store returned no master passphrase.
// Distinct from (and fatal unlike) a per-cookie decryption failure.
var ErrSecretMissing = errors.New("vault: browser safe-storage secret missing")

// CookieSet is the decrypted cookies for one domain. Ephemeral: recomputed
// per call, never persisted.
type CookieSet struct {
	Domain string
	Values map[string]string
}

// Vault reads and decrypts one browser cookie database.
type Vault struct {
	// CookiesDB is the path to the live Cookies sqlite file.
	CookiesDB string
	// Service and Account name the safe-storage secret in the OS store.
	Service string
	Account string
	// Timeout bounds the secret store helper call.
	Timeout time.Duration
}

// New returns a Vault over the given cookie database with Chrome's
// safe-storage secret names.
func New(cookiesDB string) *Vault {
	return &Vault{
		CookiesDB: cookiesDB,
		Service:   "Chrome Safe Storage",
		Account:   "Chrome",
		Timeout:   3 * time.Second,
	}
}

// ReadCookies returns all cookies stored for domain or its dotted-parent
// form, decrypted. The key is derived fresh and the database snapshot is
// removed before returning, even on error.
func (v *Vault) ReadCookies(ctx context.Context, domain string) (CookieSet, error) {
	sets, err := v.ReadCookiesForDomains(ctx, []string{domain})
	if err != nil {
		return CookieSet{}, err
	}
	return sets[domain], nil
}

// ReadCookiesForDomains serves several domains from a single snapshot pass.
// Host keys are mapped back to the bare domain they were requested under.
func (v *Vault) ReadCookiesForDomains(ctx context.Context, domains []string) (map[string]CookieSet, error) {
	key, err := v.deriveKey(ctx)
	if err != nil {
		return nil, err
	}
	return readDomains(ctx, v.CookiesDB, key, domains)
}

func readDomains(ctx context.Context, cookiesDB string, key []byte, domains []string) (map[string]CookieSet, error) {
	snapshot, cleanup, err := snapshotDB(cookiesDB)
	if err != nil {
		return nil, fmt.Errorf("vault: snapshot cookie store: %w", err)
	}
	defer cleanup()

	db, err := openReadOnly(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("vault: open cookie store: %w", err)
	}
	defer func() { _ = db.Close() }()

	metaVersion := metaVersion(ctx, db)
	rows, err := readCookieRows(ctx, db, domains)
	if err != nil {
		return nil, fmt.Errorf("vault: read cookie rows: %w", err)
	}

	out := make(map[string]CookieSet, len(domains))
	for _, d := range domains {
		out[d] = CookieSet{Domain: d, Values: make(map[string]string)}
	}

	for _, row := range rows {
		domain, ok := matchRequested(row.hostKey, domains)
		if !ok {
			continue
		}
		value := row.value
		if value == "" && len(row.encryptedValue) > 0 {
			value = decryptValue(row.encryptedValue, key, metaVersion)
		}
		if value == "" {
			slog.Debug("skipping undecryptable cookie", "domain", domain, "name", row.name)
			continue
		}
		out[domain].Values[row.name] = value
	}
	return out, nil
}

// matchRequested maps a row's host_key ("example.com" or ".example.com")
// back to the requested bare domain.
func matchRequested(hostKey string, domains []string) (string, bool) {
	for _, d := range domains {
		if hostKey == d || hostKey == "."+d {
			return d, true
		}
	}
	return "", false
}
