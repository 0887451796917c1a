// Package provider: CursorAggregatorAdapter is grounded on Plaid-shaped
// aggregator APIs (link_token_exchange integration, a native `/transactions
// /sync` cursor, one call per connection returning every linked account's
// transactions at once — §4.4.4's connection-level pagination branch).
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/banktrail/ingestor/pkg/model"
)

// CursorAggregatorAdapter implements Adapter for a cursor-native aggregator.
type CursorAggregatorAdapter struct {
	descriptor  model.CapabilityDescriptor
	baseURL     string
	clientID    string
	clientSecret string
	client      *http.Client
}

func NewCursorAggregatorAdapter(providerID, displayName, baseURL, clientID, clientSecret string) *CursorAggregatorAdapter {
	return &CursorAggregatorAdapter{
		descriptor: model.CapabilityDescriptor{
			ProviderID:                providerID,
			DisplayName:               displayName,
			IntegrationType:           model.IntegrationLinkTokenExchange,
			SupportedCountries:        []string{"US", "CA"},
			SupportsAccounts:          true,
			SupportsTransactions:      true,
			SupportsBalances:          true,
			Environments:              model.ProviderEnvironments{Sandbox: true, Production: true},
			ConnectionLevelPagination: true,
		},
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       newHTTPClient(),
	}
}

func (a *CursorAggregatorAdapter) Describe() model.CapabilityDescriptor { return a.descriptor }

func (a *CursorAggregatorAdapter) GetAuthorizationURL(ctx context.Context, state, redirectURI string) (string, error) {
	return "", unsupported(a.descriptor.ProviderID, "GetAuthorizationURL")
}

type linkTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	UserRef      string `json:"user_ref"`
}

type linkTokenResponse struct {
	LinkToken string `json:"link_token"`
}

func (a *CursorAggregatorAdapter) CreateLinkToken(ctx context.Context, userRef string) (string, error) {
	var resp linkTokenResponse

	err := doJSON(ctx, a.client, a.descriptor.ProviderID, http.MethodPost, a.baseURL+"/link/token/create", nil,
		linkTokenRequest{ClientID: a.clientID, ClientSecret: a.clientSecret, UserRef: userRef}, &resp)
	if err != nil {
		return "", err
	}

	return resp.LinkToken, nil
}

type exchangeRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	PublicToken  string `json:"public_token"`
}

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

// ExchangeCodeForToken treats code as the client SDK's public_token, which
// is this integration type's analogue of an OAuth authorization code.
func (a *CursorAggregatorAdapter) ExchangeCodeForToken(ctx context.Context, code string) (model.Tokens, error) {
	var resp exchangeResponse

	err := doJSON(ctx, a.client, a.descriptor.ProviderID, http.MethodPost, a.baseURL+"/item/public_token/exchange", nil,
		exchangeRequest{ClientID: a.clientID, ClientSecret: a.clientSecret, PublicToken: code}, &resp)
	if err != nil {
		return model.Tokens{}, err
	}

	return model.Tokens{AccessToken: resp.AccessToken, TokenType: "bearer"}, nil
}

// RefreshAccessToken is not supported: this aggregator issues no refresh
// token, and the call returns a PermanentProviderError.
func (a *CursorAggregatorAdapter) RefreshAccessToken(ctx context.Context, refreshToken string) (model.Tokens, error) {
	return model.Tokens{}, unsupported(a.descriptor.ProviderID, "RefreshAccessToken")
}

type itemResponse struct {
	Item struct {
		InstitutionID string `json:"institution_id"`
		InstitutionName string `json:"institution_name"`
	} `json:"item"`
}

func (a *CursorAggregatorAdapter) FetchUserInfo(ctx context.Context, tokens model.Tokens) (ProviderUserInfo, error) {
	var resp itemResponse

	err := doJSON(ctx, a.client, a.descriptor.ProviderID, http.MethodPost, a.baseURL+"/item/get",
		map[string]string{"Authorization": "Bearer " + tokens.AccessToken}, map[string]string{"client_id": a.clientID}, &resp)
	if err != nil {
		return ProviderUserInfo{}, err
	}

	return ProviderUserInfo{ProviderUserID: resp.Item.InstitutionID, DisplayName: resp.Item.InstitutionName}, nil
}

type accountsResponse struct {
	Accounts []struct {
		AccountID string `json:"account_id"`
		Name      string `json:"name"`
		Type      string `json:"type"`
		Mask      string `json:"mask"`
		Balances  struct {
			Current   float64 `json:"current"`
			Available float64 `json:"available"`
			Currency  string  `json:"iso_currency_code"`
		} `json:"balances"`
	} `json:"accounts"`
	Item struct {
		InstitutionID   string `json:"institution_id"`
		InstitutionName string `json:"institution_name"`
	} `json:"item"`
}

func (a *CursorAggregatorAdapter) FetchRawAccounts(ctx context.Context, credentials Credentials) ([]RawAccount, model.InstitutionFingerprint, error) {
	var resp accountsResponse

	err := doJSON(ctx, a.client, a.descriptor.ProviderID, http.MethodPost, a.baseURL+"/accounts/get",
		map[string]string{"Authorization": "Bearer " + credentials.Tokens.AccessToken}, map[string]string{"client_id": a.clientID}, &resp)
	if err != nil {
		return nil, model.InstitutionFingerprint{}, err
	}

	raw := make([]RawAccount, 0, len(resp.Accounts))
	refs := make([]model.ExternalAccountRef, 0, len(resp.Accounts))

	for _, acc := range resp.Accounts {
		raw = append(raw, RawAccount{
			ExternalAccountID:  acc.AccountID,
			Type:               acc.Type,
			Currency:           acc.Balances.Currency,
			Balance:            decimal.NewFromFloat(acc.Balances.Current).String(),
			AccountNumberLast4: acc.Mask,
			Status:             "active",
		})
		refs = append(refs, model.ExternalAccountRef{ExternalAccountID: acc.AccountID, AccountNumberLast4: acc.Mask})
	}

	fp := model.InstitutionFingerprint{
		InstitutionID:    resp.Item.InstitutionID,
		DisplayName:      resp.Item.InstitutionName,
		ExternalAccounts: refs,
	}

	return raw, fp, nil
}

type syncTxRequest struct {
	ClientID string `json:"client_id"`
	Cursor   string `json:"cursor,omitempty"`
}

type syncTxResponse struct {
	Added    []txWire `json:"added"`
	Modified []txWire `json:"modified"`
	Removed  []txWire `json:"removed"`
	NextCursor string `json:"next_cursor"`
	HasMore    bool   `json:"has_more"`
}

type txWire struct {
	AccountID       string    `json:"account_id"`
	TransactionID   string    `json:"transaction_id"`
	Amount          float64   `json:"amount"`
	ISOCurrencyCode string    `json:"iso_currency_code"`
	Date            string    `json:"date"`
	Name            string    `json:"name"`
	MerchantName    string    `json:"merchant_name"`
	Pending         bool      `json:"pending"`
}

// SyncTransactions ignores externalAccountID: this provider is
// connection-level (§4.4.4) and returns every account's activity in one
// call, positive amount meaning money left the account (the inverse of this
// module's signed-decimal convention, so the sign is flipped on mapping).
func (a *CursorAggregatorAdapter) SyncTransactions(ctx context.Context, credentials Credentials, cursor, externalAccountID string) (model.TransactionPage, error) {
	var resp syncTxResponse

	err := doJSON(ctx, a.client, a.descriptor.ProviderID, http.MethodPost, a.baseURL+"/transactions/sync",
		map[string]string{"Authorization": "Bearer " + credentials.Tokens.AccessToken},
		syncTxRequest{ClientID: a.clientID, Cursor: cursor}, &resp)
	if err != nil {
		return model.TransactionPage{}, err
	}

	page := model.TransactionPage{NextCursor: resp.NextCursor, HasMore: resp.HasMore}
	page.Added = mapWireTxs(resp.Added)
	page.Modified = mapWireTxs(resp.Modified)
	page.Removed = mapWireTxs(resp.Removed)

	return page, nil
}

func mapWireTxs(wires []txWire) []model.RawTransaction {
	out := make([]model.RawTransaction, 0, len(wires))

	for _, w := range wires {
		date, _ := time.Parse("2006-01-02", w.Date)
		amount := decimal.NewFromFloat(-w.Amount) // flip sign: provider convention is outflow-positive

		booking := model.BookingBooked
		if w.Pending {
			booking = model.BookingPending
		}

		out = append(out, model.RawTransaction{
			ExternalAccountID:     w.AccountID,
			ExternalTransactionID: w.TransactionID,
			Amount:                amount.String(),
			Currency:              w.ISOCurrencyCode,
			Date:                  date,
			Description:           w.Name,
			MerchantName:          w.MerchantName,
			BookingStatus:         string(booking),
			Raw:                   map[string]any{"pending": w.Pending},
		})
	}

	return out
}
