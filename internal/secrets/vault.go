// Package secrets retrieves the exchange API key/secret pair the
// authenticated exchange channel needs, from HashiCorp Vault when
// configured, falling back to the plain environment-variable values
// carried on internal/config.ExchangeConfig otherwise.
package secrets

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"binance-trading-bot/internal/config"
)

// ExchangeKey is the credential pair read from the secret store.
type ExchangeKey struct {
	APIKey    string
	SecretKey string
}

// Store reads the exchange key, caching the last successful read so a
// transient Vault outage doesn't block startup of the public (credential-
// free) channel.
type Store struct {
	client *api.Client
	cfg    config.VaultConfig
	fallback ExchangeKey

	mu     sync.RWMutex
	cached *ExchangeKey
}

// NewStore builds a secrets store. When cfg.Enabled is false, Get always
// returns fallback without contacting Vault.
func NewStore(cfg config.VaultConfig, fallback ExchangeKey) (*Store, error) {
	if !cfg.Enabled {
		return &Store{cfg: cfg, fallback: fallback}, nil
	}

	vaultCfg := api.DefaultConfig()
	vaultCfg.Address = cfg.Address
	client, err := api.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Store{client: client, cfg: cfg, fallback: fallback}, nil
}

// Get returns the exchange API key/secret pair, reading through to Vault on
// the first call and serving the cache afterward.
func (s *Store) Get(ctx context.Context) (ExchangeKey, error) {
	if !s.cfg.Enabled {
		return s.fallback, nil
	}

	s.mu.RLock()
	if s.cached != nil {
		defer s.mu.RUnlock()
		return *s.cached, nil
	}
	s.mu.RUnlock()

	path := fmt.Sprintf("%s/data/%s", s.cfg.MountPath, s.cfg.SecretPath)
	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return s.fallback, fmt.Errorf("failed to read exchange key from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return s.fallback, fmt.Errorf("exchange key not found at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return s.fallback, fmt.Errorf("invalid secret format at %s", path)
	}

	key := ExchangeKey{
		APIKey:    getString(data, "api_key"),
		SecretKey: getString(data, "secret_key"),
	}

	s.mu.Lock()
	s.cached = &key
	s.mu.Unlock()

	return key, nil
}

// Invalidate drops the cached key, forcing the next Get to read through.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
