package model

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionStatus is the lifecycle state of a Connection: pending -> active
// on successful token exchange, active <-> error via sync outcomes (an auth
// failure or revoked token sets error, a successful run sets active),
// revoked on user action.
type ConnectionStatus string

const (
	ConnectionStatusPending ConnectionStatus = "pending"
	ConnectionStatusActive  ConnectionStatus = "active"
	ConnectionStatusError   ConnectionStatus = "error"
	ConnectionStatusRevoked ConnectionStatus = "revoked"
)

// IntegrationType selects which adapter operations apply (§4.2).
type IntegrationType string

const (
	IntegrationOAuthRedirect      IntegrationType = "oauth_redirect"
	IntegrationLinkTokenExchange  IntegrationType = "link_token_exchange"
	IntegrationDirectCredentials  IntegrationType = "direct_credentials"
)

// SyncSchedule is the dispatch bucket a Connection belongs to.
type SyncSchedule string

const (
	ScheduleManual     SyncSchedule = "manual"
	ScheduleHourly     SyncSchedule = "hourly"
	ScheduleEvery4h    SyncSchedule = "every_4h"
	ScheduleEvery12h   SyncSchedule = "every_12h"
	ScheduleDaily      SyncSchedule = "daily"
	ScheduleWeekly     SyncSchedule = "weekly"
)

// ReconnectionConfidence is recorded on a Connection that the reconnection
// detector (§4.5) matched against an earlier, now-superseded connection.
type ReconnectionConfidence string

const (
	ConfidenceHigh   ReconnectionConfidence = "high"
	ConfidenceMedium ReconnectionConfidence = "medium"
	ConfidenceLow    ReconnectionConfidence = "low"
)

// Connection is a tenant's authorization to one provider. It owns a
// ProviderToken, a ProviderSyncCursor, raw ProviderAccounts and
// ProviderRawTransactions; deleting it cascades to all four.
type Connection struct {
	ID                     uuid.UUID              `json:"id"`
	TenantID               uuid.UUID              `json:"tenant_id"`
	ProviderID              string                 `json:"provider_id"`
	DisplayName            string                 `json:"display_name"`
	InstitutionID          *string                `json:"institution_id,omitempty"`
	Status                 ConnectionStatus       `json:"status"`
	IntegrationType        IntegrationType        `json:"integration_type"`
	SyncSchedule           SyncSchedule           `json:"sync_schedule"`
	SyncEnabled            bool                   `json:"sync_enabled"`
	LastSyncAt             *time.Time             `json:"last_sync_at,omitempty"`
	NextSyncAt             *time.Time             `json:"next_sync_at,omitempty"`
	LastSuccessAt          *time.Time             `json:"last_success_at,omitempty"`
	LastError              *string                `json:"last_error,omitempty"`
	LastErrorAt            *time.Time             `json:"last_error_at,omitempty"`
	ConsecutiveFailures    int                    `json:"consecutive_failures"`
	HealthScore            int                    `json:"health_score"`
	HealthStatus           HealthStatus           `json:"health_status"`
	OAuthState             *string                `json:"-"`
	IsReconnection         bool                   `json:"is_reconnection"`
	ReconnectedFrom        *uuid.UUID             `json:"reconnected_from,omitempty"`
	ReconnectionConfidence ReconnectionConfidence `json:"reconnection_confidence,omitempty"`
	CreatedBy              uuid.UUID              `json:"created_by"`
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`
}

// ConnectionSnapshot is the left-outer enrichment attached to an Account by
// getAccounts (§4.1). All fields are nil for a manual (unlinked) account.
type ConnectionSnapshot struct {
	ProviderID       *string           `json:"provider_id,omitempty"`
	ConnectionName   *string           `json:"connection_name,omitempty"`
	ConnectionStatus *ConnectionStatus `json:"connection_status,omitempty"`
}

// CreateConnectionInput is accepted by the command service's
// CreateConnection operation, before any token has been exchanged.
type CreateConnectionInput struct {
	TenantID        uuid.UUID       `validate:"required"`
	ProviderID      string          `validate:"required"`
	DisplayName     string          `validate:"required,max=256"`
	IntegrationType IntegrationType `validate:"required"`
	SyncSchedule    SyncSchedule    `validate:"required"`
	CreatedBy       uuid.UUID       `validate:"required"`
}

// UpdateScheduleInput is accepted by updateSchedule (§6 admin operations).
type UpdateScheduleInput struct {
	ConnectionID uuid.UUID
	SyncSchedule SyncSchedule
	SyncEnabled  bool
}

// SyncOutcome is the summary recordSyncOutcome persists onto a Connection
// after a sync run completes or fails (§4.1, §4.4.1).
type SyncOutcome struct {
	Success       bool
	OccurredAt    time.Time
	ErrorMessage  *string
	NextSyncAt    time.Time
}
