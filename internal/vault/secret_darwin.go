//go:build darwin

package vault

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const kdfIterations = 1003

// deriveKey reads the safe-storage passphrase from the macOS Keychain via the
// security CLI and derives the AES key. An empty passphrase is fatal.
func (v *Vault) deriveKey(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, v.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "security", "find-generic-password", "-w", "-a", v.Account, "-s", v.Service)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: security: %s", ErrSecretMissing, msg)
		}
		return nil, fmt.Errorf("%w: %v", ErrSecretMissing, err)
	}

	password := strings.TrimSpace(stdout.String())
	if password == "" {
		return nil, ErrSecretMissing
	}
	return deriveAESKey(password, kdfIterations), nil
}
