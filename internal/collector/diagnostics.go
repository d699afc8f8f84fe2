package collector

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/chromedp/chromedp"
)

// htmlDumpLimit caps DOM dumps so a heavy SPA page cannot bloat the logs.
const htmlDumpLimit = 50000

// captureDiagnostics saves a screenshot and a truncated DOM dump for a
// failed or empty scrape. Diagnostics are best effort: any failure here is
// logged and swallowed, the run already has its outcome.
func (r *Runner) captureDiagnostics(ctx context.Context, platform string) {
	stamp := r.now().Format("20060102_150405")

	var png []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&png)); err != nil {
		slog.Error("diagnostic screenshot failed", "platform", platform, "error", err)
	} else if path, err := writeDiagnostic(r.Config.ScreenshotDir(), platform+"_"+stamp+".png", png); err != nil {
		slog.Error("diagnostic screenshot write failed", "platform", platform, "error", err)
	} else {
		slog.Info("diagnostic screenshot saved", "path", path)
	}

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html)); err != nil {
		slog.Error("diagnostic html dump failed", "platform", platform, "error", err)
		return
	}
	if len(html) > htmlDumpLimit {
		html = html[:htmlDumpLimit]
	}
	if path, err := writeDiagnostic(r.Config.HTMLDumpDir(), platform+"_"+stamp+".html", []byte(html)); err != nil {
		slog.Error("diagnostic html write failed", "platform", platform, "error", err)
	} else {
		slog.Info("diagnostic html saved", "path", path)
	}
}

func writeDiagnostic(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
