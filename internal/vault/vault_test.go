package vault

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/banktrail/ingestor/internal/adapters/postgres/bankingcredential"
	"github.com/banktrail/ingestor/internal/adapters/postgres/providertoken"
	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/internal/provider"
	"github.com/banktrail/ingestor/pkg/model"
)

const testProviderID = "testbank"

// refreshAdapter is a minimal provider.Adapter stand-in exercising only the
// refresh path; every other method is unused by these tests.
type refreshAdapter struct {
	refreshed model.Tokens
	err       error
}

func (a *refreshAdapter) Describe() model.CapabilityDescriptor {
	return model.CapabilityDescriptor{
		ProviderID:               testProviderID,
		IntegrationType:          model.IntegrationDirectCredentials,
		RequiredCredentialFields: []string{"username", "password"},
	}
}

func (a *refreshAdapter) GetAuthorizationURL(ctx context.Context, state, redirectURI string) (string, error) {
	return "", nil
}

func (a *refreshAdapter) CreateLinkToken(ctx context.Context, userRef string) (string, error) {
	return "", nil
}

func (a *refreshAdapter) ExchangeCodeForToken(ctx context.Context, code string) (model.Tokens, error) {
	return model.Tokens{}, nil
}

func (a *refreshAdapter) RefreshAccessToken(ctx context.Context, refreshToken string) (model.Tokens, error) {
	return a.refreshed, a.err
}

func (a *refreshAdapter) FetchUserInfo(ctx context.Context, tokens model.Tokens) (provider.ProviderUserInfo, error) {
	return provider.ProviderUserInfo{}, nil
}

func (a *refreshAdapter) FetchRawAccounts(ctx context.Context, credentials provider.Credentials) ([]provider.RawAccount, model.InstitutionFingerprint, error) {
	return nil, model.InstitutionFingerprint{}, nil
}

func (a *refreshAdapter) SyncTransactions(ctx context.Context, credentials provider.Credentials, cursor, externalAccountID string) (model.TransactionPage, error) {
	return model.TransactionPage{}, nil
}

func newTestVault(t *testing.T, ctrl *gomock.Controller, registry *provider.Registry) (*Vault, *providertoken.MockRepository, *bankingcredential.MockRepository) {
	t.Helper()

	tokens := providertoken.NewMockRepository(ctrl)
	creds := bankingcredential.NewMockRepository(ctrl)

	v, err := New([]byte("0123456789abcdef"), tokens, creds, registry, &mlog.NoneLogger{})
	require.NoError(t, err)

	return v, tokens, creds
}

func TestStoreTokens_AccessToken_RoundTripsWithoutRefresh(t *testing.T) {
	ctrl := gomock.NewController(t)
	connectionID := uuid.New()

	v, tokens, _ := newTestVault(t, ctrl, provider.NewRegistry())

	var stored *model.ProviderToken
	tokens.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, t *model.ProviderToken) error {
		stored = t
		return nil
	})

	far := time.Now().Add(24 * time.Hour)
	err := v.StoreTokens(context.Background(), connectionID, testProviderID, model.Tokens{
		AccessToken:  "access-plaintext",
		RefreshToken: "refresh-plaintext",
		TokenType:    "Bearer",
		ExpiresAt:    &far,
	}, nil, nil)
	require.NoError(t, err)

	assert.NotEqual(t, "access-plaintext", string(stored.AccessToken.Ciphertext))
	require.NotNil(t, stored.RefreshToken)

	tokens.EXPECT().Find(gomock.Any(), connectionID).Return(stored, nil)

	result, err := v.AccessToken(context.Background(), connectionID)
	require.NoError(t, err)
	assert.Equal(t, "access-plaintext", result.AccessToken)
}

func TestAccessToken_NearExpiry_RefreshesAndPersistsNewTokens(t *testing.T) {
	ctrl := gomock.NewController(t)
	connectionID := uuid.New()

	registry := provider.NewRegistry()
	adapter := &refreshAdapter{refreshed: model.Tokens{AccessToken: "new-access", TokenType: "Bearer"}}
	registry.Register(adapter)

	v, tokens, _ := newTestVault(t, ctrl, registry)

	soon := time.Now().Add(10 * time.Second)

	var firstStore *model.ProviderToken
	tokens.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, t *model.ProviderToken) error {
		firstStore = t
		return nil
	})

	err := v.StoreTokens(context.Background(), connectionID, testProviderID, model.Tokens{
		AccessToken:  "about-to-expire",
		RefreshToken: "refresh-plaintext",
		TokenType:    "Bearer",
		ExpiresAt:    &soon,
	}, nil, nil)
	require.NoError(t, err)

	tokens.EXPECT().Find(gomock.Any(), connectionID).Return(firstStore, nil)

	var secondStore *model.ProviderToken
	tokens.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, t *model.ProviderToken) error {
		secondStore = t
		return nil
	})

	result, err := v.AccessToken(context.Background(), connectionID)
	require.NoError(t, err)
	assert.Equal(t, "new-access", result.AccessToken)
	require.NotNil(t, secondStore)
}

func TestAccessToken_RevokedToken_FailsClosed(t *testing.T) {
	ctrl := gomock.NewController(t)
	connectionID := uuid.New()

	v, tokens, _ := newTestVault(t, ctrl, provider.NewRegistry())

	tokens.EXPECT().Find(gomock.Any(), connectionID).Return(&model.ProviderToken{
		Status: model.TokenStatusRevoked,
	}, nil)

	_, err := v.AccessToken(context.Background(), connectionID)
	require.Error(t, err)

	_, ok := err.(apperr.TokenRevoked)
	assert.True(t, ok)
}

func TestAccessToken_TamperedCiphertext_FailsClosed(t *testing.T) {
	ctrl := gomock.NewController(t)
	connectionID := uuid.New()

	v, tokens, _ := newTestVault(t, ctrl, provider.NewRegistry())

	var stored *model.ProviderToken
	tokens.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, t *model.ProviderToken) error {
		stored = t
		return nil
	})

	far := time.Now().Add(24 * time.Hour)
	require.NoError(t, v.StoreTokens(context.Background(), connectionID, testProviderID, model.Tokens{
		AccessToken: "access-plaintext",
		ExpiresAt:   &far,
	}, nil, nil))

	stored.AccessToken.Ciphertext[0] ^= 0xFF

	tokens.EXPECT().Find(gomock.Any(), connectionID).Return(stored, nil)

	_, err := v.AccessToken(context.Background(), connectionID)
	require.Error(t, err)

	_, ok := err.(apperr.IntegrityError)
	assert.True(t, ok)
}

func TestStoreDirectCredentials_MissingRequiredField_ReturnsValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)

	registry := provider.NewRegistry()
	registry.Register(&refreshAdapter{})

	v, _, _ := newTestVault(t, ctrl, registry)

	err := v.StoreDirectCredentials(context.Background(), uuid.New(), uuid.New(), testProviderID, "sandbox",
		map[string]string{"username": "alice"}, "")

	require.Error(t, err)
	_, ok := err.(apperr.ValidationError)
	assert.True(t, ok)
}

func TestStoreDirectCredentials_AllFieldsPresent_SealsEachField(t *testing.T) {
	ctrl := gomock.NewController(t)

	registry := provider.NewRegistry()
	registry.Register(&refreshAdapter{})

	v, _, creds := newTestVault(t, ctrl, registry)

	var stored *model.BankingProviderCredential
	creds.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, c *model.BankingProviderCredential) error {
		stored = c
		return nil
	})

	err := v.StoreDirectCredentials(context.Background(), uuid.New(), uuid.New(), testProviderID, "sandbox",
		map[string]string{"username": "alice", "password": "hunter2"}, "test notes")
	require.NoError(t, err)
	require.Len(t, stored.EncryptedFields, 2)

	creds.EXPECT().Find(gomock.Any(), gomock.Any()).Return(stored, nil)

	decoded, err := v.DirectCredentials(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "alice", decoded["username"])
	assert.Equal(t, "hunter2", decoded["password"])
}

func TestKeyFromHex_RejectsWrongLength(t *testing.T) {
	_, err := KeyFromHex("abcd")
	require.Error(t, err)

	_, ok := err.(apperr.ConfigurationError)
	assert.True(t, ok)
}

func TestKeyFromHex_AcceptsValidLengths(t *testing.T) {
	key, err := KeyFromHex("000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)
	assert.Len(t, key, 16)
}
