// Command recollect gathers recent personal activity from AI chat and
// meeting platforms, reusing the credentials already present in the user's
// browser session.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/sjbaek/recollect/internal/adapter"
	"github.com/sjbaek/recollect/internal/browser"
	"github.com/sjbaek/recollect/internal/collector"
	"github.com/sjbaek/recollect/internal/config"
	"github.com/sjbaek/recollect/internal/record"
	"github.com/sjbaek/recollect/internal/tokens"
	"github.com/sjbaek/recollect/internal/vault"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		platformsFlag = flag.String("platforms", "", "comma-separated platforms to collect (default: all configured)")
		daysFlag      = flag.Int("days", 0, "lookback window in days (default: from config)")
		profileFlag   = flag.String("profile", "", "force all browser platforms under this profile")
		configFlag    = flag.String("config", defaultConfigPath(), "path to config file")
		outFlag       = flag.String("out", "", "write collected records as JSON lines to this file (default: stdout summary only)")
		verboseFlag   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, closeSink, err := buildSink(*outFlag)
	if err != nil {
		return err
	}
	defer closeSink()

	runner := collector.New(cfg, buildRegistry(cfg), browser.NewManager(
		cfg.ChromeBinary, cfg.DebugPort, cfg.RealProfileDir()), sink)

	req := collector.Request{
		Days:            *daysFlag,
		ProfileOverride: *profileFlag,
	}
	if *platformsFlag != "" {
		for _, p := range strings.Split(*platformsFlag, ",") {
			if p = strings.TrimSpace(p); p != "" {
				req.Platforms = append(req.Platforms, p)
			}
		}
	}

	counts, err := runner.Run(ctx, req)
	if err != nil {
		return err
	}
	printSummary(counts)
	return nil
}

// buildRegistry wires every adapter to the credential plumbing.
func buildRegistry(cfg config.Config) *adapter.Registry {
	cookies := vault.New(filepath.Join(cfg.RealProfileDir(), "Cookies"))

	var automationIDB []string
	for _, profile := range cfg.Profiles {
		automationIDB = append(automationIDB,
			filepath.Join(cfg.AutomationProfileDir(profile.Name), "Default", "IndexedDB"))
	}
	broker := tokens.NewBroker(filepath.Join(cfg.RealProfileDir(), "IndexedDB"), automationIDB...)
	appCheck := tokens.NewAppCheck(broker, cfg.AttestationProfileDir(), cfg.RealProfileDir(), cfg.ChromeBinary)

	reg := adapter.NewRegistry()
	reg.AddAPI(adapter.NewClaude(cookies))
	reg.AddAPI(adapter.NewChatGPT(cookies))
	reg.AddAPI(adapter.NewGranola(""))
	reg.AddAPI(adapter.NewFyxer(broker, appCheck))
	reg.AddBrowser(adapter.NewGemini())
	return reg
}

// buildSink returns a sink writing JSON lines to path, or a no-op sink when
// no path was given.
func buildSink(path string) (collector.Sink, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open output: %w", err)
	}

	enc := json.NewEncoder(f)
	sink := func(_ context.Context, _ string, records []record.Raw) error {
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}
	return sink, func() { _ = f.Close() }, nil
}

func printSummary(counts map[string]int) {
	platforms := make([]string, 0, len(counts))
	for p := range counts {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	total := 0
	for _, p := range platforms {
		fmt.Printf("%-10s %d\n", p, counts[p])
		total += counts[p]
	}
	fmt.Printf("%-10s %d\n", "total", total)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "recollect.ini"
	}
	return filepath.Join(home, ".recollect", "config.ini")
}
