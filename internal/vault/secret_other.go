//go:build !darwin

package vault

import (
	"context"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const kdfIterations = 1

// deriveKey reads the safe-storage passphrase from the OS keyring and derives
// the AES key. An empty passphrase is fatal.
func (v *Vault) deriveKey(ctx context.Context) ([]byte, error) {
	_ = ctx

	password, err := keyring.Get(v.Service, v.Account)
	if err != nil {
		return nil, fmt.Errorf("%w: keyring: %v", ErrSecretMissing, err)
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return nil, ErrSecretMissing
	}
	return deriveAESKey(password, kdfIterations), nil
}
