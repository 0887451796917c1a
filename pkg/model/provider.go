package model

// ProviderEnvironments names the environments a provider's credentials may
// target (sandbox vs production, per §4.2).
type ProviderEnvironments struct {
	Sandbox    bool `json:"sandbox"`
	Production bool `json:"production"`
}

// CapabilityDescriptor is the static, registry-enumerated description of
// one provider (§4.2). The sync engine's only provider-conditional logic is
// driven by this struct (§4.4.4, §9).
type CapabilityDescriptor struct {
	ProviderID         string               `json:"provider_id"`
	DisplayName        string               `json:"display_name"`
	IntegrationType    IntegrationType      `json:"integration_type"`
	SupportedCountries []string             `json:"supported_countries"`
	SupportsAccounts   bool                 `json:"supports_accounts"`
	SupportsTransactions bool               `json:"supports_transactions"`
	SupportsBalances   bool                 `json:"supports_balances"`
	Environments       ProviderEnvironments `json:"environments"`
	// ConnectionLevelPagination is true for cursor-native aggregators that
	// return transactions for every account of a connection in one call
	// (§4.4.4); false falls back to one syncTransactions call per
	// ProviderAccount.
	ConnectionLevelPagination bool `json:"connection_level_pagination"`
	// RequiredCredentialFields / OptionalCredentialFields apply only to
	// direct_credentials providers (§4.3).
	RequiredCredentialFields []string `json:"required_credential_fields,omitempty"`
	OptionalCredentialFields []string `json:"optional_credential_fields,omitempty"`
	UIHints                  map[string]string `json:"ui_hints,omitempty"`
}

// InstitutionFingerprint is what a new authorization's fetchRawAccounts (or
// fetchUserInfo) call surfaces for reconnection matching (§4.5).
type InstitutionFingerprint struct {
	InstitutionID   string
	DisplayName     string
	ExternalAccounts []ExternalAccountRef
}

// ExternalAccountRef is one account identity surfaced for reconnection
// matching: external_account_id plus whatever partial identifiers the
// provider exposes.
type ExternalAccountRef struct {
	ExternalAccountID string
	AccountNumberLast4 string
	IBAN               string
}
