package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/sjbaek/recollect/internal/poll"
	"github.com/sjbaek/recollect/internal/record"
)

const geminiBase = "https://gemini.google.com"

// geminiSelectors is the ladder tried for the conversation sidebar; the UI
// changes markup often enough that no single selector is trusted.
var geminiSelectors = []string{
	`a[href*="/app/"]`,
	`div[role="listitem"] a`,
	`mat-list-item a`,
}

const (
	geminiWaitAttempts = 6
	geminiWaitInterval = 2 * time.Second
	geminiMaxScrolls   = 5
	geminiScrollDelay  = 2 * time.Second
)

// Gemini scrapes the gemini.google.com conversation sidebar through a CDP
// tab. The app exposes no usable API and no dates in the sidebar, so records
// come back undated.
type Gemini struct{}

// NewGemini returns the gemini adapter.
func NewGemini() *Gemini { return &Gemini{} }

func (g *Gemini) Platform() string { return "gemini" }

func (g *Gemini) EntryURL() string { return geminiBase + "/app" }

// CheckLogin reports whether the tab stayed on the app instead of bouncing
// to a Google sign-in page.
func (g *Gemini) CheckLogin(ctx context.Context) (bool, error) {
	var loc string
	if err := chromedp.Run(ctx, chromedp.Location(&loc)); err != nil {
		return false, fmt.Errorf("gemini: read location: %w", err)
	}
	if strings.Contains(loc, "/signin") || strings.Contains(loc, "accounts.google") {
		return false, nil
	}
	return true, nil
}

type geminiLink struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// ListRecords waits for the sidebar to render, scrolls until the entry count
// settles, then reads every link in one evaluation.
func (g *Gemini) ListRecords(ctx context.Context, days int) ([]record.Raw, error) {
	g.openSidebar(ctx)

	selector, err := g.waitForContent(ctx)
	if err != nil {
		return nil, err
	}
	if selector == "" {
		slog.Warn("no gemini conversation elements found")
		return nil, nil
	}

	if err := g.scrollToLoadAll(ctx, selector); err != nil {
		return nil, err
	}

	var links []geminiLink
	expr := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(a => ({href: a.getAttribute("href") || "", text: (a.innerText || "").trim()}))`,
		selector)
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &links)); err != nil {
		return nil, fmt.Errorf("gemini: extract links: %w", err)
	}

	var out []record.Raw
	for _, link := range links {
		if link.Href == "" {
			continue
		}
		title := link.Text
		if title == "" {
			title = "Untitled"
		}
		url := link.Href
		if !strings.HasPrefix(url, "http") {
			url = geminiBase + url
		}
		out = append(out, record.Raw{
			Platform: "gemini",
			Title:    title,
			URL:      url,
		})
	}

	slog.Info("collected gemini conversations", "count", len(out), "days", days)
	return out, nil
}

// openSidebar clicks the menu button when the conversation list is
// collapsed. Best effort; absence of the button is normal.
func (g *Gemini) openSidebar(ctx context.Context) {
	expr := `(() => {
		const btn = document.querySelector('button[aria-label*="menu"], button[aria-label*="Menu"]');
		if (btn) { btn.click(); return true; }
		return false;
	})()`
	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &clicked)); err != nil {
		return
	}
	if clicked {
		_ = chromedp.Run(ctx, chromedp.Sleep(time.Second))
	}
}

// waitForContent polls the selector ladder until one matches. Returns the
// winning selector, or "" when the page never rendered a list.
func (g *Gemini) waitForContent(ctx context.Context) (string, error) {
	var found string
	err := poll.Until(ctx, geminiWaitAttempts, geminiWaitInterval, func(ctx context.Context) (bool, error) {
		for _, selector := range geminiSelectors {
			n, err := g.count(ctx, selector)
			if err != nil {
				return false, err
			}
			if n > 0 {
				found = selector
				return true, nil
			}
		}
		return false, nil
	})
	if errors.Is(err, poll.ErrExhausted) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return found, nil
}

// scrollToLoadAll scrolls the page bottom-ward until the element count stops
// growing, bounded so an infinite feed cannot stall the run.
func (g *Gemini) scrollToLoadAll(ctx context.Context, selector string) error {
	prev, err := g.count(ctx, selector)
	if err != nil {
		return err
	}
	for i := 0; i < geminiMaxScrolls; i++ {
		err := chromedp.Run(ctx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(geminiScrollDelay),
		)
		if err != nil {
			return fmt.Errorf("gemini: scroll: %w", err)
		}
		n, err := g.count(ctx, selector)
		if err != nil {
			return err
		}
		if n == prev {
			break
		}
		slog.Debug("gemini scroll loaded more entries", "before", prev, "after", n)
		prev = n
	}
	return nil
}

func (g *Gemini) count(ctx context.Context, selector string) (int, error) {
	var n int
	expr := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &n)); err != nil {
		return 0, fmt.Errorf("gemini: count %s: %w", selector, err)
	}
	return n, nil
}
