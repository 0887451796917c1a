// Package model holds the canonical entities shared across every adapter
// and service in the orchestrator, grounded on the teacher's domain model
// packages (internal/domain/onboarding/ledger) but flattened into a single
// package the way the pack's smaller repos lay out their models.
package model

import (
	"time"

	"github.com/google/uuid"
)

// TenantSettings captures the tenant-wide display defaults.
type TenantSettings struct {
	Currency   string `json:"currency" bson:"currency"`
	Timezone   string `json:"timezone" bson:"timezone"`
	DateFormat string `json:"date_format" bson:"date_format"`
}

// Tenant is the top-level isolation boundary: every other row (save global
// metadata) carries a TenantID and every access predicate checks it.
type Tenant struct {
	ID        uuid.UUID      `json:"id"`
	Slug      string         `json:"slug"`
	Plan      string         `json:"plan"`
	Settings  TenantSettings `json:"settings"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Role is a Membership's access level within a tenant.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Membership links a user to a tenant with a role. Every tenant must retain
// at least one owner membership.
type Membership struct {
	UserID    uuid.UUID `json:"user_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateTenantInput is the validated shape accepted when provisioning a
// tenant. The first membership created alongside it is always an owner.
type CreateTenantInput struct {
	Slug     string         `json:"slug" validate:"required,max=64"`
	Plan     string         `json:"plan" validate:"required,max=32"`
	Settings TenantSettings `json:"settings"`
	OwnerID  uuid.UUID      `json:"owner_id" validate:"required"`
}
