package exchange

import (
	"context"
	"fmt"

	"binance-trading-bot/internal/config"
	"binance-trading-bot/internal/secrets"
)

// AuthClient is the credential-bearing channel. It only resolves the
// exchange API key/secret pair (Credentials); it issues no balance or
// order request of its own (spec.md explicitly scopes out placing real
// orders — this client never signs an order request). Credentials are resolved
// through internal/secrets, which reads Vault when configured and falls
// back to plain environment-sourced values otherwise.
type AuthClient struct {
	baseURL string
	keys    *secrets.Store
	public  *PublicClient
}

// NewAuthClient builds an AuthClient sharing the PublicClient's rate
// limiter, circuit breaker, and HTTP transport.
func NewAuthClient(baseURL string, keys *secrets.Store, public *PublicClient) *AuthClient {
	return &AuthClient{baseURL: baseURL, keys: keys, public: public}
}

// Credentials returns the exchange API key/secret pair currently in
// effect, resolving through Vault on first use.
func (a *AuthClient) Credentials(ctx context.Context) (secrets.ExchangeKey, error) {
	return a.keys.Get(ctx)
}

// NewCredentialStore ties internal/config.VaultConfig and the plain-env
// fallback together for cmd/ entrypoints wiring the exchange package.
func NewCredentialStore(cfg *config.Config) (*secrets.Store, error) {
	fallback := secrets.ExchangeKey{APIKey: cfg.Exchange.APIKey, SecretKey: cfg.Exchange.SecretKey}
	store, err := secrets.NewStore(cfg.Vault, fallback)
	if err != nil {
		return nil, fmt.Errorf("building secrets store: %w", err)
	}
	return store, nil
}
