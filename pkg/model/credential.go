package model

import (
	"time"

	"github.com/google/uuid"
)

// TokenStatus tracks whether a ProviderToken may still be used to derive an
// access token.
type TokenStatus string

const (
	TokenStatusActive  TokenStatus = "active"
	TokenStatusRevoked TokenStatus = "revoked"
)

// ProviderToken is the OAuth-style credential for one Connection (1:1). At
// most one active token exists per connection (§8 property 2); access_token
// and refresh_token are ciphertext at rest, decrypted only inside the vault.
type ProviderToken struct {
	ID               uuid.UUID         `json:"id"`
	ConnectionID     uuid.UUID         `json:"connection_id"`
	ProviderID       string            `json:"provider_id"`
	AccessToken      EncryptedField    `json:"-"`
	RefreshToken     *EncryptedField   `json:"-"`
	TokenType        string            `json:"token_type"`
	ExpiresAt        *time.Time        `json:"expires_at,omitempty"`
	Scopes           []string          `json:"scopes"`
	ProviderUserID   *string           `json:"provider_user_id,omitempty"`
	ProviderMetadata map[string]any    `json:"provider_metadata,omitempty"`
	Status           TokenStatus       `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// EncryptedField is an AEAD-sealed secret: ciphertext, the nonce used to
// seal it, and the authentication tag, stored together per §4.3.
type EncryptedField struct {
	Ciphertext []byte `json:"-"`
	Nonce      []byte `json:"-"`
}

// BankingProviderCredential stores direct-bank client-supplied secrets as a
// map of named fields, each individually AEAD-sealed. Required vs optional
// field names come from the provider's capability descriptor.
type BankingProviderCredential struct {
	ID             uuid.UUID                 `json:"id"`
	TenantID       uuid.UUID                 `json:"tenant_id"`
	ConnectionID   uuid.UUID                 `json:"connection_id"`
	ProviderID     string                    `json:"provider_id"`
	Environment    string                    `json:"environment"`
	EncryptedFields map[string]EncryptedField `json:"-"`
	Notes          string                    `json:"notes,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

// Tokens is the ephemeral, plaintext value returned by the vault's
// accessToken operation and by an adapter's token exchange/refresh calls. It
// never touches a database row.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	TokenType    string
	Scopes       []string
}
