package tokens

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/sjbaek/recollect/internal/browser"
)

// AppCheck obtains app-attestation tokens. These are minted client-side by
// the provider's SDK, so when no unexpired token is cached on disk the only
// way to get one is a short visible page visit under a seeded automation
// profile. Everything here is best-effort: a missing attestation token costs
// one signal, never the run.
type AppCheck struct {
	Broker *Broker
	// ProfileDir is the dedicated automation profile for attestation
	// bootstraps; it keeps the minted token so later runs skip the browse.
	ProfileDir string
	// RealProfileDir seeds ProfileDir with the user's session files.
	RealProfileDir string
	// ChromeBinary runs the bootstrap browse.
	ChromeBinary string
	// BrowseWait is how long the SDK gets to mint after page load.
	BrowseWait time.Duration

	now func() time.Time
}

// NewAppCheck wires an AppCheck over the broker's store lookup.
func NewAppCheck(broker *Broker, profileDir, realProfileDir, chromeBinary string) *AppCheck {
	return &AppCheck{
		Broker:         broker,
		ProfileDir:     profileDir,
		RealProfileDir: realProfileDir,
		ChromeBinary:   chromeBinary,
		BrowseWait:     12 * time.Second,
		now:            time.Now,
	}
}

// Token returns an attestation token for domain, or ok=false when none could
// be obtained.
func (a *AppCheck) Token(ctx context.Context, domain string) (string, bool) {
	// Cached in a regular or automation profile store.
	if store, err := a.Broker.Locate(domain); err == nil {
		if token, ok := a.readValid(store); ok {
			slog.Info("using app-check token from disk", "domain", domain)
			return token, true
		}
	}

	// Cached from an earlier bootstrap.
	if store, ok := a.bootstrapStore(domain); ok {
		if token, ok := a.readValid(store); ok {
			slog.Info("using cached app-check token from bootstrap profile", "domain", domain)
			return token, true
		}
	}

	slog.Info("minting app-check token via bootstrap browse", "domain", domain)
	if err := a.bootstrapBrowse(ctx, domain); err != nil {
		slog.Warn("app-check bootstrap browse failed", "domain", domain, "error", err)
		return "", false
	}

	store, ok := a.bootstrapStore(domain)
	if !ok {
		slog.Warn("no app-check store after bootstrap browse", "domain", domain)
		return "", false
	}
	token, ok := a.readValid(store)
	if !ok {
		slog.Warn("no valid app-check token after bootstrap browse", "domain", domain)
		return "", false
	}
	return token, true
}

// readValid scans one store for an attestation record with an unexpired
// token. A zero expiry means the record carries none and the token is kept.
func (a *AppCheck) readValid(storePath string) (string, bool) {
	values, err := scanStore(storePath, "expireTimeMillis")
	if err != nil {
		return "", false
	}
	nowMillis := float64(a.now().UnixMilli())
	for _, value := range values {
		token, ok := extractString(value, "token")
		if !ok || token == "" {
			continue
		}
		expire, ok := extractNumber(value, "expireTimeMillis")
		if ok && expire > 0 && expire < nowMillis {
			continue
		}
		return token, true
	}
	return "", false
}

func (a *AppCheck) bootstrapStore(domain string) (string, bool) {
	folder, err := idbFolderName(domain)
	if err != nil {
		return "", false
	}
	path := filepath.Join(a.ProfileDir, "Default", "IndexedDB", folder)
	if !dirExists(path) {
		return "", false
	}
	return path, true
}

// bootstrapBrowse seeds the attestation profile and visits the domain in a
// headed browser. Headless is refused by the attestation backend, so the
// window is visible on purpose.
func (a *AppCheck) bootstrapBrowse(ctx context.Context, domain string) error {
	if err := browser.SeedProfile(a.RealProfileDir, a.ProfileDir); err != nil {
		return err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(a.ChromeBinary),
		chromedp.UserDataDir(a.ProfileDir),
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(800, 600),
	)

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	return chromedp.Run(tabCtx,
		chromedp.Navigate("https://"+domain),
		chromedp.Sleep(a.BrowseWait),
	)
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
