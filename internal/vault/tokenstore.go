package vault

import (
	"errors"

	"github.com/zalando/go-keyring"

	"github.com/systmms/vaultops/internal/logging"
)

const keyringService = "vaultops"

// TokenStore caches Vault session tokens in the OS keyring, keyed by server
// address, so consecutive apply runs reuse the same login. Keyring failures
// (headless hosts, locked keychains) degrade to a fresh login instead of
// failing the run.
type TokenStore struct {
	account string
	logger  *logging.Logger
}

// NewTokenStore creates a token store scoped to one Vault address.
func NewTokenStore(address string, logger *logging.Logger) *TokenStore {
	return &TokenStore{account: address, logger: logger}
}

// Load returns the cached token for this address, if any.
func (s *TokenStore) Load() (string, bool) {
	token, err := keyring.Get(keyringService, s.account)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			s.logger.Debug("Keyring lookup failed: %v", err)
		}
		return "", false
	}
	return token, token != ""
}

// Save stores the session token for this address.
func (s *TokenStore) Save(token string) {
	if err := keyring.Set(keyringService, s.account, token); err != nil {
		s.logger.Debug("Keyring save failed, session will not be reused: %v", err)
	}
}

// Clear removes the cached token for this address.
func (s *TokenStore) Clear() {
	if err := keyring.Delete(keyringService, s.account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		s.logger.Debug("Keyring delete failed: %v", err)
	}
}
