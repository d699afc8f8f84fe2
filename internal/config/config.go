// Package config loads collector settings from an INI file with compiled-in
// defaults, so running without a config file works on a stock macOS Chrome
// install.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-ini/ini"
)

// Profile is one isolated browser identity and the set of platforms that
// share it. Two logical profiles never run under the same live browser
// process at the same time.
type Profile struct {
	Name      string
	Platforms []string
}

// Owns reports whether the profile is configured for the given platform.
func (p Profile) Owns(platform string) bool {
	for _, pl := range p.Platforms {
		if pl == platform {
			return true
		}
	}
	return false
}

// Config holds every tunable the collector uses.
type Config struct {
	// ChromeBinary is the browser executable used for automation launches.
	ChromeBinary string
	// UserDataDir is the user's real browser data root (cookie store,
	// IndexedDB, session files live under <UserDataDir>/<BrowserProfile>).
	UserDataDir string
	// BrowserProfile is the profile directory name inside UserDataDir.
	BrowserProfile string
	// DebugPort is the remote debugging port for the automation browser.
	DebugPort int
	// DataDir holds automation profile directories and diagnostics.
	DataDir string
	// Days is the default lookback window.
	Days int
	// Profiles maps platforms onto isolated automation identities.
	Profiles []Profile
}

const (
	defaultDebugPort = 9222
	defaultDays      = 30
)

func defaults() Config {
	home, _ := os.UserHomeDir()

	cfg := Config{
		BrowserProfile: "Default",
		DebugPort:      defaultDebugPort,
		DataDir:        filepath.Join(home, ".recollect"),
		Days:           defaultDays,
		Profiles: []Profile{
			{Name: "personal", Platforms: []string{"claude", "chatgpt"}},
			{Name: "company", Platforms: []string{"gemini", "fyxer", "granola"}},
		},
	}

	switch runtime.GOOS {
	case "darwin":
		cfg.ChromeBinary = "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		cfg.UserDataDir = filepath.Join(home, "Library", "Application Support", "Google", "Chrome")
	default:
		cfg.ChromeBinary = "/usr/bin/google-chrome"
		cfg.UserDataDir = filepath.Join(home, ".config", "google-chrome")
	}
	return cfg
}

// Load reads path and overlays it onto the defaults. A missing file is not an
// error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := defaults()

	src, err := ini.LooseLoad(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	browser := src.Section("browser")
	if v := browser.Key("binary").String(); v != "" {
		cfg.ChromeBinary = v
	}
	if v := browser.Key("user_data_dir").String(); v != "" {
		cfg.UserDataDir = v
	}
	if v := browser.Key("profile").String(); v != "" {
		cfg.BrowserProfile = v
	}
	if v, err := browser.Key("debug_port").Int(); err == nil && v > 0 {
		cfg.DebugPort = v
	}

	collect := src.Section("collect")
	if v, err := collect.Key("days").Int(); err == nil && v > 0 {
		cfg.Days = v
	}
	if v := src.Section("paths").Key("data_dir").String(); v != "" {
		cfg.DataDir = v
	}

	if profiles := parseProfiles(src); len(profiles) > 0 {
		cfg.Profiles = profiles
	}
	return cfg, nil
}

// parseProfiles reads [profile.<name>] sections with a comma-separated
// platforms key, preserving file order.
func parseProfiles(src *ini.File) []Profile {
	var out []Profile
	for _, sec := range src.Sections() {
		name, ok := strings.CutPrefix(sec.Name(), "profile.")
		if !ok || name == "" {
			continue
		}
		var platforms []string
		for _, p := range strings.Split(sec.Key("platforms").String(), ",") {
			if p = strings.TrimSpace(p); p != "" {
				platforms = append(platforms, p)
			}
		}
		out = append(out, Profile{Name: name, Platforms: platforms})
	}
	return out
}

// RealProfileDir is the user's live browser profile directory.
func (c Config) RealProfileDir() string {
	return filepath.Join(c.UserDataDir, c.BrowserProfile)
}

// AutomationProfileDir is the isolated user-data-dir for a named profile.
func (c Config) AutomationProfileDir(name string) string {
	return filepath.Join(c.DataDir, "chrome_cdp_profiles", name)
}

// GenericProfileDir backs platforms that have no configured profile.
func (c Config) GenericProfileDir() string {
	return filepath.Join(c.DataDir, "chrome_cdp_profile")
}

// AttestationProfileDir is the dedicated profile used only to mint
// app-attestation tokens.
func (c Config) AttestationProfileDir() string {
	return filepath.Join(c.DataDir, "app_check_browser_profile")
}

// ScreenshotDir and HTMLDumpDir hold best-effort scrape diagnostics.
func (c Config) ScreenshotDir() string {
	return filepath.Join(c.DataDir, "logs", "screens")
}

// HTMLDumpDir holds truncated DOM dumps captured on scrape failure.
func (c Config) HTMLDumpDir() string {
	return filepath.Join(c.DataDir, "logs", "html")
}

// ProfileFor returns the profile owning platform, or false when unmapped.
func (c Config) ProfileFor(platform string) (Profile, bool) {
	for _, p := range c.Profiles {
		if p.Owns(platform) {
			return p, true
		}
	}
	return Profile{}, false
}

// ProfileNamed returns the profile with the given name, or false.
func (c Config) ProfileNamed(name string) (Profile, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}
