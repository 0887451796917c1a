package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banktrail/ingestor/pkg/model"
)

type stubAdapter struct {
	descriptor model.CapabilityDescriptor
}

func (a *stubAdapter) Describe() model.CapabilityDescriptor { return a.descriptor }

func (a *stubAdapter) GetAuthorizationURL(ctx context.Context, state, redirectURI string) (string, error) {
	return "", nil
}

func (a *stubAdapter) CreateLinkToken(ctx context.Context, userRef string) (string, error) {
	return "", nil
}

func (a *stubAdapter) ExchangeCodeForToken(ctx context.Context, code string) (model.Tokens, error) {
	return model.Tokens{}, nil
}

func (a *stubAdapter) RefreshAccessToken(ctx context.Context, refreshToken string) (model.Tokens, error) {
	return model.Tokens{}, nil
}

func (a *stubAdapter) FetchUserInfo(ctx context.Context, tokens model.Tokens) (ProviderUserInfo, error) {
	return ProviderUserInfo{}, nil
}

func (a *stubAdapter) FetchRawAccounts(ctx context.Context, credentials Credentials) ([]RawAccount, model.InstitutionFingerprint, error) {
	return nil, model.InstitutionFingerprint{}, nil
}

func (a *stubAdapter) SyncTransactions(ctx context.Context, credentials Credentials, cursor, externalAccountID string) (model.TransactionPage, error) {
	return model.TransactionPage{}, nil
}

func TestRegistry_Get_UnregisteredProvider_ReturnsProviderNotFound(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("nonesuch")
	require.Error(t, err)

	_, ok := err.(ProviderNotFound)
	assert.True(t, ok)
}

func TestRegistry_RegisterThenGet_ReturnsSameAdapter(t *testing.T) {
	r := NewRegistry()
	a := &stubAdapter{descriptor: model.CapabilityDescriptor{ProviderID: "testbank", DisplayName: "Test Bank"}}
	r.Register(a)

	got, err := r.Get("testbank")
	require.NoError(t, err)
	assert.Same(t, Adapter(a), got)
}

func TestRegistry_Describe_ReturnsAdapterDescriptor(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAdapter{descriptor: model.CapabilityDescriptor{ProviderID: "testbank", DisplayName: "Test Bank"}})

	desc, err := r.Describe("testbank")
	require.NoError(t, err)
	assert.Equal(t, "Test Bank", desc.DisplayName)
}

func TestRegistry_Describe_UnregisteredProvider_ReturnsProviderNotFound(t *testing.T) {
	r := NewRegistry()

	_, err := r.Describe("nonesuch")
	require.Error(t, err)

	_, ok := err.(ProviderNotFound)
	assert.True(t, ok)
}

func TestRegistry_List_ReturnsEveryRegisteredDescriptor(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAdapter{descriptor: model.CapabilityDescriptor{ProviderID: "a"}})
	r.Register(&stubAdapter{descriptor: model.CapabilityDescriptor{ProviderID: "b"}})

	list := r.List()
	assert.Len(t, list, 2)
}

func TestRegistry_Register_SameProviderIDOverwrites(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAdapter{descriptor: model.CapabilityDescriptor{ProviderID: "testbank", DisplayName: "First"}})
	r.Register(&stubAdapter{descriptor: model.CapabilityDescriptor{ProviderID: "testbank", DisplayName: "Second"}})

	desc, err := r.Describe("testbank")
	require.NoError(t, err)
	assert.Equal(t, "Second", desc.DisplayName)
	assert.Len(t, r.List(), 1)
}
