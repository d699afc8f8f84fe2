// Package collector orchestrates a collection run: API platforms first over
// plain HTTP, then browser platforms grouped by automation profile so the
// single debug port is never shared between two identities at once.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/errgroup"

	"github.com/sjbaek/recollect/internal/adapter"
	"github.com/sjbaek/recollect/internal/browser"
	"github.com/sjbaek/recollect/internal/config"
	"github.com/sjbaek/recollect/internal/record"
)

// Sink receives the filtered records of one platform. A sink failure costs
// that platform its count but never stops the run.
type Sink func(ctx context.Context, platform string, records []record.Raw) error

// BrowserControl is the slice of the browser manager the runner needs.
type BrowserControl interface {
	Ensure(ctx context.Context, profileDir string) error
	Terminate(ctx context.Context) error
	DebugURL() string
}

var _ BrowserControl = (*browser.Manager)(nil)

// Request selects what one run collects.
type Request struct {
	// Platforms to collect; nil means every configured platform.
	Platforms []string
	// Days overrides the configured lookback window when positive.
	Days int
	// ProfileOverride forces all browser platforms under one named profile.
	ProfileOverride string
}

// Runner executes collection requests.
type Runner struct {
	Config   config.Config
	Registry *adapter.Registry
	Browser  BrowserControl
	Sink     Sink

	// tab opens a ready browser tab on url. Swappable for tests.
	tab func(ctx context.Context, url string) (context.Context, context.CancelFunc, error)
	now func() time.Time
}

// tabTimeout bounds one platform's scrape end to end.
const tabTimeout = 2 * time.Minute

// New returns a Runner wired to the real browser manager.
func New(cfg config.Config, reg *adapter.Registry, ctl BrowserControl, sink Sink) *Runner {
	r := &Runner{Config: cfg, Registry: reg, Browser: ctl, Sink: sink, now: time.Now}
	r.tab = r.openTab
	return r
}

// Run collects the requested platforms and returns per-platform record
// counts. Platform failures degrade to a zero count; the only errors are a
// platform or profile name nothing is configured for.
func (r *Runner) Run(ctx context.Context, req Request) (map[string]int, error) {
	days := req.Days
	if days <= 0 {
		days = r.Config.Days
	}

	platforms := req.Platforms
	if len(platforms) == 0 {
		platforms = r.configuredPlatforms()
	}
	for _, p := range platforms {
		if !r.Registry.Known(p) {
			return nil, fmt.Errorf("collector: unknown platform %q", p)
		}
	}

	apiPlatforms, browserPlatforms := r.partition(platforms)
	results := make(map[string]int, len(platforms))

	r.runAPI(ctx, apiPlatforms, days, results)

	if len(browserPlatforms) > 0 {
		groups, err := r.browserGroups(browserPlatforms, req.ProfileOverride)
		if err != nil {
			return nil, err
		}
		r.runBrowser(ctx, groups, days, results)
	}
	return results, nil
}

// configuredPlatforms flattens the profile mapping in configured order.
func (r *Runner) configuredPlatforms() []string {
	var out []string
	for _, profile := range r.Config.Profiles {
		for _, p := range profile.Platforms {
			if r.Registry.Known(p) {
				out = append(out, p)
			}
		}
	}
	return out
}

func (r *Runner) partition(platforms []string) (api, browserBased []string) {
	for _, p := range platforms {
		if _, ok := r.Registry.API(p); ok {
			api = append(api, p)
		} else {
			browserBased = append(browserBased, p)
		}
	}
	return api, browserBased
}

// runAPI collects the API platforms concurrently. They share no state and
// need no browser, so there is nothing to serialize.
func (r *Runner) runAPI(ctx context.Context, platforms []string, days int, results map[string]int) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, platform := range platforms {
		platform := platform
		a, _ := r.Registry.API(platform)
		g.Go(func() error {
			slog.Info("collecting via API", "platform", platform)

			count := 0
			records, err := a.Collect(gctx, days)
			if err != nil {
				slog.Error("api collection failed", "platform", platform, "error", err)
			} else {
				count = r.deliver(gctx, platform, records, days)
			}

			mu.Lock()
			results[platform] = count
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// browserGroups resolves the profile grouping, honoring an override.
func (r *Runner) browserGroups(platforms []string, override string) ([]browser.Group, error) {
	if override == "" {
		return browser.GroupByProfile(platforms, r.Config), nil
	}
	profile, ok := r.Config.ProfileNamed(override)
	if !ok {
		return nil, fmt.Errorf("collector: unknown profile %q", override)
	}
	return []browser.Group{{Profile: profile, Platforms: platforms}}, nil
}

// runBrowser walks the profile groups in order. A profile switch terminates
// the previous browser exactly once before the next Ensure; same-profile
// neighbors keep the process alive.
func (r *Runner) runBrowser(ctx context.Context, groups []browser.Group, days int, results map[string]int) {
	started := false
	lastProfile := ""

	for _, group := range groups {
		name := group.Profile.Name
		if started && name != lastProfile {
			slog.Info("switching browser profile", "from", lastProfile, "to", name)
			if err := r.Browser.Terminate(ctx); err != nil {
				slog.Warn("browser terminate failed", "error", err)
			}
		}
		started = true
		lastProfile = name

		profileDir := r.Config.GenericProfileDir()
		if name != "" {
			profileDir = r.Config.AutomationProfileDir(name)
		}

		if err := r.Browser.Ensure(ctx, profileDir); err != nil {
			slog.Error("browser unavailable, skipping group", "profile", name, "error", err)
			for _, p := range group.Platforms {
				results[p] = 0
			}
			continue
		}

		for _, platform := range group.Platforms {
			slog.Info("collecting via browser", "platform", platform, "profile", name)
			results[platform] = r.runBrowserPlatform(ctx, platform, days)
		}
	}

	if started {
		if err := r.Browser.Terminate(ctx); err != nil {
			slog.Warn("browser terminate failed", "error", err)
		}
	}
}

func (r *Runner) runBrowserPlatform(ctx context.Context, platform string, days int) int {
	b, _ := r.Registry.Browser(platform)

	tabCtx, cancel, err := r.tab(ctx, b.EntryURL())
	if err != nil {
		slog.Error("tab open failed", "platform", platform, "error", err)
		return 0
	}
	defer cancel()

	loggedIn, err := b.CheckLogin(tabCtx)
	if err != nil {
		slog.Error("login check failed", "platform", platform, "error", err)
		r.captureDiagnostics(tabCtx, platform)
		return 0
	}
	if !loggedIn {
		slog.Warn("not logged in, log in to the platform in Chrome and rerun", "platform", platform)
		r.captureDiagnostics(tabCtx, platform)
		return 0
	}

	records, err := b.ListRecords(tabCtx, days)
	if err != nil {
		slog.Error("scrape failed", "platform", platform, "error", err)
		r.captureDiagnostics(tabCtx, platform)
		return 0
	}
	if len(records) == 0 {
		slog.Warn("no records found", "platform", platform)
		r.captureDiagnostics(tabCtx, platform)
		return 0
	}

	return r.deliver(ctx, platform, records, days)
}

// deliver normalizes, date-filters and hands records to the sink. Undated
// records survive the filter.
func (r *Runner) deliver(ctx context.Context, platform string, records []record.Raw, days int) int {
	normalized := make([]record.Raw, 0, len(records))
	for _, raw := range records {
		normalized = append(normalized, record.Normalize(raw))
	}

	kept := record.FilterByAge(normalized, days, r.now())
	if len(kept) != len(normalized) {
		slog.Info("date filter applied", "platform", platform,
			"before", len(normalized), "after", len(kept), "days", days)
	}

	if r.Sink != nil {
		if err := r.Sink(ctx, platform, kept); err != nil {
			slog.Error("sink failed", "platform", platform, "error", err)
			return 0
		}
	}
	return len(kept)
}

// openTab attaches to the live browser over CDP, opens a fresh tab and
// navigates it to url. The returned context carries the tab; canceling it
// closes the tab without touching the browser process.
func (r *Runner) openTab(ctx context.Context, url string) (context.Context, context.CancelFunc, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, r.Browser.DebugURL())
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	timeoutCtx, timeoutCancel := context.WithTimeout(tabCtx, tabTimeout)

	cancel := func() {
		timeoutCancel()
		tabCancel()
		allocCancel()
	}

	// Navigate without waiting for the load event: these SPAs keep network
	// activity open indefinitely, so readiness is the DOM being parsed, not
	// the page going quiet.
	err := chromedp.Run(timeoutCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, _, errText, err := page.Navigate(url).Do(ctx)
			if err != nil {
				return err
			}
			if errText != "" {
				return fmt.Errorf("%s", errText)
			}
			return nil
		}),
		chromedp.WaitReady("body"),
	)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("collector: navigate %s: %w", url, err)
	}
	return timeoutCtx, cancel, nil
}
