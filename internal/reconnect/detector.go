// Package reconnect is the reconnection detector (C5, §4.5): it matches a
// freshly authorized Connection's institution fingerprint against canonical
// Accounts left behind by an earlier, now-superseded Connection, scores the
// match's confidence, and on a HIGH-confidence match re-parents the
// accounts' history onto the new connection. It runs once, at authorization
// time — never on a routine sync tick.
package reconnect

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banktrail/ingestor/internal/adapters/postgres/account"
	"github.com/banktrail/ingestor/internal/adapters/postgres/connection"
	"github.com/banktrail/ingestor/internal/adapters/postgres/cursor"
	"github.com/banktrail/ingestor/internal/adapters/postgres/historyevent"
	"github.com/banktrail/ingestor/internal/adapters/postgres/transaction"
	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/internal/provider"
	"github.com/banktrail/ingestor/pkg/model"
)

// Variant names the matcher that produced one Match, per §9's polymorphic
// matcher design ("external_id_match, institution_id_match, iban_match,
// name_match... future matchers are added by extending the variant set").
type Variant string

const (
	VariantExternalID   Variant = "external_id_match"
	VariantInstitutionID Variant = "institution_id_match"
	VariantIBAN         Variant = "iban_match"
	VariantName         Variant = "name_match"
)

// Match pairs a candidate Account with the variant that matched it.
type Match struct {
	Account *model.Account
	Variant Variant
}

// Proposal is the detector's verdict for one new authorization.
type Proposal struct {
	Confidence model.ReconnectionConfidence
	Matches    []Match
}

// AccountIDs returns the deduplicated set of matched Account ids.
func (p *Proposal) AccountIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(p.Matches))

	out := make([]uuid.UUID, 0, len(p.Matches))
	for _, m := range p.Matches {
		if seen[m.Account.ID] {
			continue
		}

		seen[m.Account.ID] = true
		out = append(out, m.Account.ID)
	}

	return out
}

type Deps struct {
	Accounts     account.Repository
	Connections  connection.Repository
	Transactions transaction.Repository
	Cursors      cursor.Repository
	History      historyevent.Repository
	Registry     *provider.Registry
	Logger       mlog.Logger
}

type Detector struct {
	deps Deps
}

func New(deps Deps) *Detector {
	return &Detector{deps: deps}
}

// Detect evaluates one new authorization's fingerprint against every
// candidate account the tenant already has for providerID (§4.5). It
// returns nil if nothing rises above LOW confidence — LOW confidence is not
// actionable and is never proposed.
func (d *Detector) Detect(ctx context.Context, tenantID uuid.UUID, providerID string, fp model.InstitutionFingerprint) (*Proposal, error) {
	externalIDs := make([]string, 0, len(fp.ExternalAccounts))
	ibans := make([]string, 0, len(fp.ExternalAccounts))
	last4s := make([]string, 0, len(fp.ExternalAccounts))

	for _, ref := range fp.ExternalAccounts {
		if ref.ExternalAccountID != "" {
			externalIDs = append(externalIDs, ref.ExternalAccountID)
		}

		if ref.IBAN != "" {
			ibans = append(ibans, ref.IBAN)
		}

		if ref.AccountNumberLast4 != "" {
			last4s = append(last4s, ref.AccountNumberLast4)
		}
	}

	candidates, err := d.deps.Accounts.FindCandidatesForReconnection(ctx, tenantID, providerID, externalIDs, ibans, last4s)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	var high, medium []Match

	for _, acc := range candidates {
		ref, ok := bestRef(acc, fp.ExternalAccounts)
		if !ok {
			continue
		}

		priorConn := d.priorConnection(ctx, acc)

		switch {
		case acc.ExternalAccountID != nil && *acc.ExternalAccountID == ref.ExternalAccountID:
			high = append(high, Match{Account: acc, Variant: VariantExternalID})
		case acc.IBAN != nil && ref.IBAN != "" && *acc.IBAN == ref.IBAN:
			high = append(high, Match{Account: acc, Variant: VariantIBAN})
		case fp.InstitutionID != "" && priorConn != nil && priorConn.InstitutionID != nil &&
			*priorConn.InstitutionID == fp.InstitutionID && partialNumberOverlap(acc, ref):
			high = append(high, Match{Account: acc, Variant: VariantInstitutionID})
		case partialNumberOverlap(acc, ref) && priorConn != nil && namesMatch(priorConn.DisplayName, fp.DisplayName):
			medium = append(medium, Match{Account: acc, Variant: VariantName})
		}
	}

	if len(high) > 0 {
		return &Proposal{Confidence: model.ConfidenceHigh, Matches: high}, nil
	}

	if len(medium) > 0 {
		return &Proposal{Confidence: model.ConfidenceMedium, Matches: medium}, nil
	}

	return nil, nil
}

// bestRef finds the fingerprint ref most likely to correspond to acc, by
// external_account_id, then iban, then last4 overlap.
func bestRef(acc *model.Account, refs []model.ExternalAccountRef) (model.ExternalAccountRef, bool) {
	for _, ref := range refs {
		if acc.ExternalAccountID != nil && ref.ExternalAccountID != "" && *acc.ExternalAccountID == ref.ExternalAccountID {
			return ref, true
		}
	}

	for _, ref := range refs {
		if acc.IBAN != nil && ref.IBAN != "" && *acc.IBAN == ref.IBAN {
			return ref, true
		}
	}

	for _, ref := range refs {
		if partialNumberOverlap(acc, ref) {
			return ref, true
		}
	}

	return model.ExternalAccountRef{}, false
}

func partialNumberOverlap(acc *model.Account, ref model.ExternalAccountRef) bool {
	if acc.IBAN == nil || *acc.IBAN == "" {
		return false
	}

	last4 := lastN(*acc.IBAN, 4)

	if ref.AccountNumberLast4 != "" && strings.EqualFold(last4, ref.AccountNumberLast4) {
		return true
	}

	if ref.IBAN != "" && strings.EqualFold(last4, lastN(ref.IBAN, 4)) {
		return true
	}

	return false
}

func namesMatch(a, b string) bool {
	a = normalizeName(a)
	b = normalizeName(b)

	return a != "" && a == b
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// priorConnection looks up the connection acc was last tied to, for the
// institution_id_match and name_match variants. Returns nil if acc has no
// connection or the lookup fails — neither variant ever matches on nil.
func (d *Detector) priorConnection(ctx context.Context, acc *model.Account) *model.Connection {
	if acc.ConnectionID == nil {
		return nil
	}

	conn, err := d.deps.Connections.FindAny(ctx, *acc.ConnectionID)
	if err != nil {
		return nil
	}

	return conn
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[len(s)-n:]
}

// Apply acts on a Proposal for newConnectionID (§4.5):
//
// HIGH confidence re-points every matched account at the new connection,
// re-parents its transaction history, seeds a resume-from cursor so the
// first sync only pulls what's new, and appends a reconnection
// ConnectionHistoryEvent.
//
// MEDIUM confidence never auto-links; it only appends a ConnectionHistoryEvent
// proposing the match for a human reviewer (§4.5, §9 Open Question: auto-
// linking MEDIUM confidence stays off).
func (d *Detector) Apply(ctx context.Context, tenantID, newConnectionID uuid.UUID, providerID string, proposal *Proposal) error {
	if proposal == nil {
		return nil
	}

	previousConnectionID := findPreviousConnectionID(proposal)

	payload := map[string]any{
		"confidence": string(proposal.Confidence),
		"matches":    summarizeMatches(proposal.Matches),
	}

	if proposal.Confidence != model.ConfidenceHigh {
		return d.deps.History.Append(ctx, &model.ConnectionHistoryEvent{
			TenantID:             tenantID,
			ConnectionID:         newConnectionID,
			PreviousConnectionID: previousConnectionID,
			EventType:            model.HistoryReconnection,
			Payload:              payload,
		})
	}

	accountIDs := proposal.AccountIDs()

	for _, m := range proposal.Matches {
		externalID := ""
		if m.Account.ExternalAccountID != nil {
			externalID = *m.Account.ExternalAccountID
		}

		if err := d.deps.Accounts.Relink(ctx, tenantID, m.Account.ID, newConnectionID, providerID, externalID); err != nil {
			return err
		}
	}

	if err := d.deps.Transactions.ReparentConnection(ctx, accountIDs, newConnectionID); err != nil {
		return err
	}

	resumeFrom, err := d.deps.Transactions.MaxDateForAccounts(ctx, accountIDs)
	if err != nil {
		return err
	}

	payload["resume_from"] = resumeFrom

	if previousConnectionID != nil {
		if err := d.deps.Connections.LinkReconnection(ctx, newConnectionID, *previousConnectionID, model.ConfidenceHigh); err != nil {
			return err
		}
	}

	if err := d.seedResumeCursor(ctx, newConnectionID, providerID, proposal.Matches, resumeFrom); err != nil {
		d.deps.Logger.Warnf("reconnect: failed to seed resume cursor for connection %s: %v", newConnectionID, err)
	}

	return d.deps.History.Append(ctx, &model.ConnectionHistoryEvent{
		TenantID:             tenantID,
		ConnectionID:         newConnectionID,
		PreviousConnectionID: previousConnectionID,
		EventType:            model.HistoryReconnection,
		Payload:              payload,
	})
}

func findPreviousConnectionID(p *Proposal) *uuid.UUID {
	for _, m := range p.Matches {
		if m.Account.ConnectionID != nil {
			id := *m.Account.ConnectionID
			return &id
		}
	}

	return nil
}

func summarizeMatches(matches []Match) []map[string]any {
	out := make([]map[string]any, 0, len(matches))

	for _, m := range matches {
		out = append(out, map[string]any{
			"account_id": m.Account.ID.String(),
			"variant":    string(m.Variant),
		})
	}

	return out
}

// seedResumeCursor lets a reconnection's first sync skip already-held
// history: for providers without connection-level pagination, the engine
// keys its per-account cursor by external_account_id, which every matched
// account already carries, so it can be seeded before the new connection's
// first sync has even run. Connection-level (cursor-native) providers have
// no way to encode a date into their opaque cursor — correctness there still
// holds, since transaction.ReparentConnection has already moved the matched
// accounts' history onto the new connection and upsertByExternalId's
// conflict key (tenant, connection, external_transaction_id) absorbs a
// re-fetched full history as a no-op update rather than a duplicate.
func (d *Detector) seedResumeCursor(ctx context.Context, newConnectionID uuid.UUID, providerID string, matches []Match, resumeFrom *time.Time) error {
	if resumeFrom == nil {
		return nil
	}

	descriptor, err := d.deps.Registry.Describe(providerID)
	if err != nil || descriptor.ConnectionLevelPagination {
		return err
	}

	perAccount := make(map[string]string, len(matches))

	for _, m := range matches {
		if m.Account.ExternalAccountID == nil {
			continue
		}

		perAccount[*m.Account.ExternalAccountID] = provider.EncodeSyntheticCursor(provider.SyntheticCursor{LastSeenAt: *resumeFrom})
	}

	encoded := encodeCursorMap(perAccount)

	return d.deps.Cursors.Persist(ctx, &model.ProviderSyncCursor{
		ConnectionID: newConnectionID,
		Cursor:       &encoded,
	})
}

// encodeCursorMap mirrors the engine package's per-account cursor encoding
// (one opaque ProviderSyncCursor.Cursor string holding a JSON map keyed by
// external_account_id) so a cursor seeded here decodes the same way a
// regular sync run would persist one.
func encodeCursorMap(cursors map[string]string) string {
	b, err := json.Marshal(cursors)
	if err != nil {
		return ""
	}

	return string(b)
}
