// Package vault is the credential vault (C3, §4.3): the only component
// that ever holds plaintext OAuth tokens or direct-bank secrets. No example
// repo in the retrieval pack wires a vetted AEAD library (no nacl/secretbox,
// no jose/JWE), so sealing uses the standard library's crypto/aes +
// cipher.NewGCM directly — documented in DESIGN.md as the one ambient
// concern this module does not source from the example corpus.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/banktrail/ingestor/internal/adapters/postgres/bankingcredential"
	"github.com/banktrail/ingestor/internal/adapters/postgres/providertoken"
	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/internal/provider"
	"github.com/banktrail/ingestor/pkg/model"
)

// refreshThreshold is how close to expiry a token must be before accessToken
// triggers a refresh instead of returning it as-is (§4.3).
const refreshThreshold = 60 * time.Second

// Vault seals and unseals every stored secret field with AEAD, keyed by a
// single key loaded once at process start (§5: "Encryption key material:
// loaded once at startup; held in memory; never written to logs").
type Vault struct {
	aead       cipher.AEAD
	tokens     providertoken.Repository
	creds      bankingcredential.Repository
	registry   *provider.Registry
	logger     mlog.Logger
}

// New builds a Vault from raw key bytes (the exact length the AEAD
// primitive requires; §6 rejects the wrong length at startup).
func New(key []byte, tokens providertoken.Repository, creds bankingcredential.Repository, registry *provider.Registry, logger mlog.Logger) (*Vault, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperr.ConfigurationError{Field: "CREDENTIAL_ENCRYPTION_KEY", Message: err.Error()}
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperr.ConfigurationError{Field: "CREDENTIAL_ENCRYPTION_KEY", Message: err.Error()}
	}

	return &Vault{aead: aead, tokens: tokens, creds: creds, registry: registry, logger: logger}, nil
}

func (v *Vault) seal(plaintext string) (model.EncryptedField, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return model.EncryptedField{}, err
	}

	ciphertext := v.aead.Seal(nil, nonce, []byte(plaintext), nil)

	return model.EncryptedField{Ciphertext: ciphertext, Nonce: nonce}, nil
}

// open fails closed on any tag mismatch (§4.3).
func (v *Vault) open(f model.EncryptedField) (string, error) {
	plaintext, err := v.aead.Open(nil, f.Nonce, f.Ciphertext, nil)
	if err != nil {
		return "", apperr.IntegrityError{EntityType: "encrypted_field", Reason: "authentication tag mismatch"}
	}

	return string(plaintext), nil
}

// StoreTokens seals a freshly exchanged or refreshed Tokens value and
// upserts it, enforcing at most one active token per connection.
func (v *Vault) StoreTokens(ctx context.Context, connectionID uuid.UUID, providerID string, t model.Tokens, providerUserID *string, metadata map[string]any) error {
	access, err := v.seal(t.AccessToken)
	if err != nil {
		return err
	}

	record := &model.ProviderToken{
		ConnectionID:     connectionID,
		ProviderID:       providerID,
		AccessToken:      access,
		TokenType:        t.TokenType,
		ExpiresAt:        t.ExpiresAt,
		Scopes:           t.Scopes,
		ProviderUserID:   providerUserID,
		ProviderMetadata: metadata,
		Status:           model.TokenStatusActive,
	}

	if t.RefreshToken != "" {
		refresh, err := v.seal(t.RefreshToken)
		if err != nil {
			return err
		}

		record.RefreshToken = &refresh
	}

	return v.tokens.Upsert(ctx, record)
}

// AccessToken returns an ephemeral plaintext Tokens value for the
// connection, refreshing it first if it is within refreshThreshold of
// expiry or already expired (§4.3).
func (v *Vault) AccessToken(ctx context.Context, connectionID uuid.UUID) (model.Tokens, error) {
	record, err := v.tokens.Find(ctx, connectionID)
	if err != nil {
		return model.Tokens{}, err
	}

	if record.Status == model.TokenStatusRevoked {
		return model.Tokens{}, apperr.TokenRevoked{ConnectionID: connectionID.String()}
	}

	plaintext, err := v.open(record.AccessToken)
	if err != nil {
		return model.Tokens{}, err
	}

	tokens := model.Tokens{AccessToken: plaintext, TokenType: record.TokenType, ExpiresAt: record.ExpiresAt, Scopes: record.Scopes}

	if record.ExpiresAt == nil || time.Until(*record.ExpiresAt) > refreshThreshold {
		return tokens, nil
	}

	if record.RefreshToken == nil {
		return model.Tokens{}, apperr.AuthFailure{ConnectionID: connectionID.String(), Reason: "token expired and no refresh token available"}
	}

	refreshPlain, err := v.open(*record.RefreshToken)
	if err != nil {
		return model.Tokens{}, err
	}

	adapter, err := v.registry.Get(record.ProviderID)
	if err != nil {
		return model.Tokens{}, err
	}

	refreshed, err := adapter.RefreshAccessToken(ctx, refreshPlain)
	if err != nil {
		return model.Tokens{}, apperr.AuthFailure{ConnectionID: connectionID.String(), Reason: fmt.Sprintf("refresh failed: %v", err)}
	}

	if err := v.StoreTokens(ctx, connectionID, record.ProviderID, refreshed, record.ProviderUserID, record.ProviderMetadata); err != nil {
		return model.Tokens{}, err
	}

	return refreshed, nil
}

// Revoke marks the token revoked; refresh never un-revokes (§4.3).
func (v *Vault) Revoke(ctx context.Context, connectionID uuid.UUID) error {
	return v.tokens.Revoke(ctx, connectionID)
}

// StoreDirectCredentials validates the supplied fields against the
// provider's required/optional field set, seals each, and writes them
// (§4.3).
func (v *Vault) StoreDirectCredentials(ctx context.Context, tenantID, connectionID uuid.UUID, providerID, environment string, fields map[string]string, notes string) error {
	descriptor, err := v.registry.Describe(providerID)
	if err != nil {
		return err
	}

	for _, required := range descriptor.RequiredCredentialFields {
		if _, ok := fields[required]; !ok {
			return apperr.ValidationError{Message: fmt.Sprintf("missing required credential field %q for provider %s", required, providerID)}
		}
	}

	sealed := make(map[string]model.EncryptedField, len(fields))

	for key, value := range fields {
		field, err := v.seal(value)
		if err != nil {
			return err
		}

		sealed[key] = field
	}

	return v.creds.Upsert(ctx, &model.BankingProviderCredential{
		ID:              uuid.New(),
		TenantID:        tenantID,
		ConnectionID:    connectionID,
		ProviderID:      providerID,
		Environment:     environment,
		EncryptedFields: sealed,
		Notes:           notes,
	})
}

// DirectCredentials returns the decrypted field map for a direct_credentials
// connection.
func (v *Vault) DirectCredentials(ctx context.Context, connectionID uuid.UUID) (map[string]string, error) {
	cred, err := v.creds.Find(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(cred.EncryptedFields))

	for key, field := range cred.EncryptedFields {
		plaintext, err := v.open(field)
		if err != nil {
			return nil, err
		}

		out[key] = plaintext
	}

	return out, nil
}

// KeyFromHex decodes the process configuration's hex-encoded key material
// and validates its length against AES's accepted key sizes (§6: "rejected
// at startup if wrong length").
func KeyFromHex(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, apperr.ConfigurationError{Field: "CREDENTIAL_ENCRYPTION_KEY", Message: "must be hex-encoded"}
	}

	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, apperr.ConfigurationError{Field: "CREDENTIAL_ENCRYPTION_KEY", Message: "must decode to 16, 24, or 32 bytes"}
	}
}
