package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.ini"))
	require.NoError(t, err)

	assert.Equal(t, 9222, cfg.DebugPort)
	assert.Equal(t, 30, cfg.Days)
	assert.Equal(t, "Default", cfg.BrowserProfile)
	require.Len(t, cfg.Profiles, 2)
	assert.Equal(t, "personal", cfg.Profiles[0].Name)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recollect.ini")
	data := `[browser]
binary = /opt/chrome
user_data_dir = /tmp/chrome
debug_port = 9515

[collect]
days = 7

[paths]
data_dir = /tmp/recollect

[profile.work]
platforms = fyxer, granola

[profile.home]
platforms = claude
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/chrome", cfg.ChromeBinary)
	assert.Equal(t, 9515, cfg.DebugPort)
	assert.Equal(t, 7, cfg.Days)
	require.Len(t, cfg.Profiles, 2)
	assert.Equal(t, "work", cfg.Profiles[0].Name)
	assert.Equal(t, []string{"fyxer", "granola"}, cfg.Profiles[0].Platforms)

	p, ok := cfg.ProfileFor("claude")
	require.True(t, ok)
	assert.Equal(t, "home", p.Name)

	_, ok = cfg.ProfileFor("unmapped")
	assert.False(t, ok)

	assert.Equal(t, filepath.Join("/tmp/recollect", "chrome_cdp_profiles", "work"),
		cfg.AutomationProfileDir("work"))
}

func TestProfileNamed(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
	require.NoError(t, err)

	p, ok := cfg.ProfileNamed("company")
	require.True(t, ok)
	assert.True(t, p.Owns("gemini"))

	_, ok = cfg.ProfileNamed("nobody")
	assert.False(t, ok)
}
