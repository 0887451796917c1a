package provider

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"context"

	"github.com/banktrail/ingestor/pkg/model"
)

func TestOAuthAggregatorAdapter_GetAuthorizationURL_EncodesStateAndRedirect(t *testing.T) {
	adapter := NewOAuthAggregatorAdapter("testbank", "Test Bank", "http://api.invalid", "http://auth.invalid/authorize", "client-1", "secret-1")

	authURL, err := adapter.GetAuthorizationURL(context.Background(), "state-xyz", "https://app.invalid/callback")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(authURL, "http://auth.invalid/authorize?"))

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "https://app.invalid/callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
}

func TestOAuthAggregatorAdapter_ExchangeCodeForToken_ParsesTokenResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.FormValue("grant_type"))
		assert.Equal(t, "auth-code-1", r.FormValue("code"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "at-1", "refresh_token": "rt-1", "token_type": "Bearer", "expires_in": 3600}`))
	}))
	defer srv.Close()

	adapter := NewOAuthAggregatorAdapter("testbank", "Test Bank", srv.URL, srv.URL+"/authorize", "client-1", "secret-1")
	tokens, err := adapter.ExchangeCodeForToken(context.Background(), "auth-code-1")
	require.NoError(t, err)
	assert.Equal(t, "at-1", tokens.AccessToken)
	assert.Equal(t, "rt-1", tokens.RefreshToken)
	require.NotNil(t, tokens.ExpiresAt)
}

func TestOAuthAggregatorAdapter_RefreshAccessToken_UsesRefreshGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
		assert.Equal(t, "rt-old", r.FormValue("refresh_token"))

		w.Write([]byte(`{"access_token": "at-new", "token_type": "Bearer"}`))
	}))
	defer srv.Close()

	adapter := NewOAuthAggregatorAdapter("testbank", "Test Bank", srv.URL, srv.URL+"/authorize", "client-1", "secret-1")
	tokens, err := adapter.RefreshAccessToken(context.Background(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "at-new", tokens.AccessToken)
	assert.Nil(t, tokens.ExpiresAt)
}

func TestOAuthAggregatorAdapter_FetchUserInfo_ParsesSubAndName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		w.Write([]byte(`{"sub": "user-1", "name": "Ada Lovelace"}`))
	}))
	defer srv.Close()

	adapter := NewOAuthAggregatorAdapter("testbank", "Test Bank", srv.URL, srv.URL+"/authorize", "client-1", "secret-1")
	info, err := adapter.FetchUserInfo(context.Background(), model.Tokens{AccessToken: "at-1"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", info.ProviderUserID)
	assert.Equal(t, "Ada Lovelace", info.DisplayName)
}

func TestOAuthAggregatorAdapter_FetchRawAccounts_IncludesBestEffortBalance(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"institution": {"id": "inst-1", "name": "Test Bank"},
			"accounts": [{"id": "acc-1", "iban": "GB00TEST00000000000001", "currency": "GBP", "status": "enabled", "product": "current"}]
		}`))
	})
	mux.HandleFunc("/accounts/acc-1/balances", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"balances": [{"balanceAmount": {"amount": "250.75", "currency": "GBP"}, "balanceType": "interimAvailable"}]}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	adapter := NewOAuthAggregatorAdapter("testbank", "Test Bank", srv.URL, srv.URL+"/authorize", "client-1", "secret-1")
	accounts, fp, err := adapter.FetchRawAccounts(context.Background(), Credentials{Tokens: model.Tokens{AccessToken: "at-1"}})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "250.75", accounts[0].Balance)
	assert.Equal(t, "inst-1", fp.InstitutionID)
}

func TestOAuthAggregatorAdapter_FetchRawAccounts_BalanceFetchFailureDefaultsToZero(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accounts": [{"id": "acc-1", "currency": "GBP", "status": "enabled", "product": "current"}], "institution": {"id": "inst-1"}}`))
	})
	mux.HandleFunc("/accounts/acc-1/balances", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	adapter := NewOAuthAggregatorAdapter("testbank", "Test Bank", srv.URL, srv.URL+"/authorize", "client-1", "secret-1")
	accounts, _, err := adapter.FetchRawAccounts(context.Background(), Credentials{})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "0", accounts[0].Balance)
}

func TestOAuthAggregatorAdapter_SyncTransactions_FiltersLastSeenAndIncludesPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acc-1/transactions", r.URL.Path)

		w.Write([]byte(`{
			"transactions": {
				"booked": [
					{"transactionId": "tx-seen", "bookingDate": "2026-01-01", "transactionAmount": {"amount": "-5.00", "currency": "GBP"}},
					{"transactionId": "tx-new", "bookingDate": "2026-01-10", "transactionAmount": {"amount": "-15.00", "currency": "GBP"}, "remittanceInformationUnstructured": "Coffee"}
				],
				"pending": [
					{"transactionId": "tx-pending", "bookingDate": "2026-01-11", "transactionAmount": {"amount": "-3.00", "currency": "GBP"}}
				]
			}
		}`))
	}))
	defer srv.Close()

	adapter := NewOAuthAggregatorAdapter("testbank", "Test Bank", srv.URL, srv.URL+"/authorize", "client-1", "secret-1")
	cursor := EncodeSyntheticCursor(SyntheticCursor{LastExternalID: "tx-seen"})

	page, err := adapter.SyncTransactions(context.Background(), Credentials{Tokens: model.Tokens{AccessToken: "at-1"}}, cursor, "acc-1")
	require.NoError(t, err)
	require.Len(t, page.Added, 2)

	ids := []string{page.Added[0].ExternalTransactionID, page.Added[1].ExternalTransactionID}
	assert.Contains(t, ids, "tx-new")
	assert.Contains(t, ids, "tx-pending")
	assert.False(t, page.HasMore)
}
