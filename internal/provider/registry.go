// Package provider is the provider registry and uniform adapter interface
// (C2, §4.2): the sync engine's only provider-conditional logic is the
// capability-descriptor-driven choice between connection-level and
// account-level pagination (§4.4.4, §9) — everything else is polymorphic
// over this interface.
package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/pkg/model"
)

// Adapter is the uniform operation set a provider implements. A concrete
// adapter only answers the subset its IntegrationType actually supports;
// calling the wrong operation for an integration type returns
// apperr.PermanentProviderError.
type Adapter interface {
	Describe() model.CapabilityDescriptor

	// GetAuthorizationURL builds the redirect target for oauth_redirect
	// providers (§4.2).
	GetAuthorizationURL(ctx context.Context, state string, redirectURI string) (string, error)

	// CreateLinkToken mints a short-lived token a client SDK exchanges for
	// link_token_exchange providers (§4.2).
	CreateLinkToken(ctx context.Context, userRef string) (string, error)

	ExchangeCodeForToken(ctx context.Context, code string) (model.Tokens, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (model.Tokens, error)

	FetchUserInfo(ctx context.Context, tokens model.Tokens) (ProviderUserInfo, error)

	// FetchRawAccounts returns every account visible to tokens/credentials,
	// plus the institution fingerprint the reconnection detector matches on
	// (§4.5).
	FetchRawAccounts(ctx context.Context, credentials Credentials) ([]RawAccount, model.InstitutionFingerprint, error)

	// SyncTransactions pulls one page. cursor is empty on the first call.
	// Providers without a native cursor MUST emulate one (§4.4.2) so the
	// engine treats every adapter identically.
	SyncTransactions(ctx context.Context, credentials Credentials, cursor string, externalAccountID string) (model.TransactionPage, error)
}

// Credentials is whatever the vault hands the adapter for one call: either
// an OAuth Tokens value or a direct-bank field map, never both populated.
type Credentials struct {
	Tokens model.Tokens
	Direct map[string]string
}

// ProviderUserInfo is fetchUserInfo's result (§4.2).
type ProviderUserInfo struct {
	ProviderUserID string
	DisplayName    string
	Metadata       map[string]any
}

// RawAccount is one account as fetchRawAccounts returns it, before it is
// staged into a ProviderAccount row.
type RawAccount struct {
	ExternalAccountID  string
	Type               string
	Currency           string
	Balance            string // decimal string
	IBAN               string
	Status             string
	AccountNumberLast4 string
	Metadata           map[string]any
}

// Registry enumerates every enabled provider, loaded once at process start
// from configuration (§4.2, §6). A provider reference is acquired by string
// id; unknown ids fail with ProviderNotFound.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// ProviderNotFound is returned by Get/Describe for an unregistered id.
type ProviderNotFound struct {
	ProviderID string
}

func (e ProviderNotFound) Error() string {
	return fmt.Sprintf("provider %q is not registered", e.ProviderID)
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register enrolls an adapter under its own descriptor's ProviderID.
// Intended to be called once per enabled provider at bootstrap.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.adapters[a.Describe().ProviderID] = a
}

func (r *Registry) Get(providerID string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[providerID]
	if !ok {
		return nil, ProviderNotFound{ProviderID: providerID}
	}

	return a, nil
}

func (r *Registry) Describe(providerID string) (model.CapabilityDescriptor, error) {
	a, err := r.Get(providerID)
	if err != nil {
		return model.CapabilityDescriptor{}, err
	}

	return a.Describe(), nil
}

func (r *Registry) List() []model.CapabilityDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.CapabilityDescriptor, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a.Describe())
	}

	return out
}

// unsupported is the shared helper every adapter uses to fail an operation
// its integration type does not implement (§4.2's "polymorphic over the
// capability set").
func unsupported(providerID, op string) error {
	return apperr.PermanentProviderError{
		ProviderID: providerID,
		Err:        fmt.Errorf("operation %q is not supported by this provider's integration type", op),
	}
}
