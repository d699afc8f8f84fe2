package browser

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// seedFiles is the fixed allow-list of session files copied from the user's
// real profile when an automation profile directory is first used. The
// browser decrypts them through the same OS secret store, so existing logins
// carry over without re-authentication.
var seedFiles = []string{
	"Cookies",
	"Login Data",
	"Web Data",
	"Preferences",
	"Secure Preferences",
}

// SeedProfile copies session files from the real profile directory into the
// Default profile of dstUserDataDir, plus Local State from the real
// user-data root. Individual missing files are skipped.
func SeedProfile(realProfileDir string, dstUserDataDir string) error {
	target := filepath.Join(dstUserDataDir, "Default")
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("browser: seed profile: %w", err)
	}

	for _, name := range seedFiles {
		src := filepath.Join(realProfileDir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copySessionFile(src, filepath.Join(target, name)); err != nil {
			slog.Warn("could not copy session file", "file", name, "error", err)
		}
	}

	// Local State lives in the user-data root, one level above the profile.
	localState := filepath.Join(filepath.Dir(realProfileDir), "Local State")
	if _, err := os.Stat(localState); err == nil {
		if err := copySessionFile(localState, filepath.Join(dstUserDataDir, "Local State")); err != nil {
			slog.Warn("could not copy Local State", "error", err)
		}
	}
	return nil
}

func copySessionFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
