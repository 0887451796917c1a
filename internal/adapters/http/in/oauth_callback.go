package in

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/banktrail/ingestor/internal/adapters/postgres/connection"
	"github.com/banktrail/ingestor/internal/adapters/redis"
	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/internal/platform/nethttp"
	"github.com/banktrail/ingestor/internal/provider"
	"github.com/banktrail/ingestor/internal/reconnect"
	"github.com/banktrail/ingestor/internal/scheduler"
	"github.com/banktrail/ingestor/internal/vault"
	"github.com/banktrail/ingestor/pkg/model"
)

// OAuthCallbackDeps bundles everything the callback needs to go from an
// authorization code to an active, possibly-reconnected Connection with its
// first sync underway (§4.2, §4.3, §4.5).
type OAuthCallbackDeps struct {
	OAuthStates redis.OAuthStateRepository
	Connections connection.Repository
	Vault       *vault.Vault
	Registry    *provider.Registry
	Detector    *reconnect.Detector
	Dispatcher  *scheduler.Dispatcher
	Logger      mlog.Logger
}

// OAuthCallbackHandler completes an oauth_redirect provider's authorization
// flow (§4.2): validates the one-time state, exchanges the code, stores the
// token, runs the reconnection detector, and kicks off the connection's
// first sync in the background.
//
// @Summary     OAuth authorization callback
// @Description Completes a pending connection's authorization
// @Tags        connections
// @Produce     json
// @Param       state query string true "one-time state token"
// @Param       code  query string true "authorization code"
// @Success     200 {object} model.Connection
// @Failure     400 {object} nethttp.ResponseError
// @Failure     401 {object} nethttp.ResponseError
// @Router      /v1/connections/oauth/callback [get]
type OAuthCallbackHandler struct {
	Deps OAuthCallbackDeps
}

func (h *OAuthCallbackHandler) Handle(c *fiber.Ctx) error {
	ctx := c.Context()

	state := c.Query("state")
	code := c.Query("code")

	if state == "" || code == "" {
		return nethttp.BadRequest(c, "0011", "Missing Parameters", "Both 'state' and 'code' query parameters are required.")
	}

	if _, err := h.Deps.OAuthStates.Consume(ctx, state); err != nil {
		return nethttp.WithError(c, err)
	}

	conn, err := h.Deps.Connections.ConsumeOAuthState(ctx, state)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	adapter, err := h.Deps.Registry.Get(conn.ProviderID)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	tokens, err := adapter.ExchangeCodeForToken(ctx, code)
	if err != nil {
		return nethttp.WithError(c, apperr.AuthFailure{ConnectionID: conn.ID.String(), Reason: "code exchange failed", Err: err})
	}

	userInfo, err := adapter.FetchUserInfo(ctx, tokens)
	if err != nil {
		h.Deps.Logger.Warnf("oauth callback: fetchUserInfo failed for connection %s: %v", conn.ID, err)
	}

	var providerUserID *string
	if userInfo.ProviderUserID != "" {
		providerUserID = &userInfo.ProviderUserID
	}

	if err := h.Deps.Vault.StoreTokens(ctx, conn.ID, conn.ProviderID, tokens, providerUserID, userInfo.Metadata); err != nil {
		return nethttp.WithError(c, err)
	}

	if err := h.runReconnectionCheck(ctx, conn, adapter, tokens); err != nil {
		h.Deps.Logger.Warnf("oauth callback: reconnection detector failed for connection %s: %v", conn.ID, err)
	}

	if err := h.Deps.Connections.UpdateStatus(ctx, conn.ID, model.ConnectionStatusActive, nil); err != nil {
		return nethttp.WithError(c, err)
	}

	go h.triggerFirstSync(conn.ID)

	return nethttp.OK(c, conn)
}

// runReconnectionCheck runs the detector once, at authorization time, per
// §4.5 — never on a routine sync tick. It re-fetches raw accounts purely to
// get the institution fingerprint; the engine's own accountsPhase will
// fetch and stage them again on the first real sync.
func (h *OAuthCallbackHandler) runReconnectionCheck(ctx context.Context, conn *model.Connection, adapter provider.Adapter, tokens model.Tokens) error {
	_, fingerprint, err := adapter.FetchRawAccounts(ctx, provider.Credentials{Tokens: tokens})
	if err != nil {
		return err
	}

	proposal, err := h.Deps.Detector.Detect(ctx, conn.TenantID, conn.ProviderID, fingerprint)
	if err != nil {
		return err
	}

	return h.Deps.Detector.Apply(ctx, conn.TenantID, conn.ID, conn.ProviderID, proposal)
}

// triggerFirstSync runs outside the request's lifetime, so it carries its
// own background context rather than the (about to be canceled) request
// context. It still goes through the dispatcher's lease and run deadline
// like a scheduler tick would, so it can never race a tick landing on the
// same connection (§5, §8 property 10, §9 design notes).
func (h *OAuthCallbackHandler) triggerFirstSync(connectionID uuid.UUID) {
	if _, err := h.Deps.Dispatcher.TriggerNow(context.Background(), connectionID); err != nil {
		h.Deps.Logger.Errorf("oauth callback: first sync failed for connection %s: %v", connectionID, err)
	}
}
