// Package engine is the sync engine (C4, §4.4): single-connection
// orchestration from token acquisition through accounts/transactions pull,
// staging, canonical import and job bookkeeping. One Run call handles
// exactly one connection and assumes its caller already holds the
// connection's lease (§5) — the engine itself never acquires or releases it.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banktrail/ingestor/internal/adapters/postgres/account"
	"github.com/banktrail/ingestor/internal/adapters/postgres/connection"
	"github.com/banktrail/ingestor/internal/adapters/postgres/cursor"
	"github.com/banktrail/ingestor/internal/adapters/postgres/ingestionjob"
	"github.com/banktrail/ingestor/internal/adapters/postgres/provideraccount"
	"github.com/banktrail/ingestor/internal/adapters/postgres/rawtransaction"
	"github.com/banktrail/ingestor/internal/adapters/postgres/transaction"
	"github.com/banktrail/ingestor/internal/adapters/rabbitmq"
	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/internal/platform/mopentelemetry"
	"github.com/banktrail/ingestor/internal/provider"
	"github.com/banktrail/ingestor/internal/vault"
	"github.com/banktrail/ingestor/pkg/model"
)

// maxPagesPerRun bounds a connection-level pull so a provider returning
// has_more=true forever cannot starve the per-run deadline (§5).
const maxPagesPerRun = 200

// Deps bundles everything one Run call needs. All fields are required.
type Deps struct {
	Connections      connection.Repository
	Accounts         account.Repository
	ProviderAccounts provideraccount.Repository
	Transactions     transaction.Repository
	RawTransactions  rawtransaction.Repository
	Cursors          cursor.Repository
	Jobs             ingestionjob.Repository
	Vault            *vault.Vault
	Registry         *provider.Registry
	RateLimiters     *provider.RateLimiters
	Events           *rabbitmq.Producer
	Logger           mlog.Logger
}

type Engine struct {
	deps Deps
}

func New(deps Deps) *Engine {
	return &Engine{deps: deps}
}

// Result summarizes one Run call for the caller (scheduler/dispatcher).
type Result struct {
	Job       *model.IngestionJob
	Skipped   bool // true for a rate-limited run: not a failure
	Throttled bool // true when last_sync_at is younger than the schedule's minimum interval (§4.4.3): no job is opened at all
}

// Run executes one full sync cycle for connectionID: token/credential
// acquisition, the accounts phase, the transactions phase, canonical import,
// and job/connection bookkeeping (§4.4.1). Once a job is open, every run
// ends in a closed IngestionJob and a recorded SyncOutcome, and the run's
// error (an adapter error included) is returned alongside the Result. A
// failed connection lookup or job open returns before any job exists; a
// throttled connection returns Result{Throttled: true} without opening one.
func (e *Engine) Run(ctx context.Context, connectionID uuid.UUID) (*Result, error) {
	tracer := mopentelemetry.Tracer("engine")
	ctx, span := tracer.Start(ctx, "engine.run")
	defer span.End()

	logger := e.deps.Logger.WithFields("connection_id", connectionID.String())

	conn, err := e.deps.Connections.FindAny(ctx, connectionID)
	if err != nil {
		mopentelemetry.HandleSpanError(span, "connection lookup failed", err)
		return nil, err
	}

	if throttled(conn, time.Now().UTC()) {
		logger.Debugf("engine: connection throttled, last sync too recent for schedule %s", conn.SyncSchedule)
		return &Result{Throttled: true}, nil
	}

	job, err := e.deps.Jobs.Open(ctx, conn.TenantID, conn.ID, "sync")
	if err != nil {
		mopentelemetry.HandleSpanError(span, "failed to open job", err)
		return nil, err
	}

	logger = logger.WithFields("job_id", job.ID.String(), "tenant_id", conn.TenantID.String())

	outcome, runErr := e.runJob(ctx, conn, job, logger)

	now := time.Now().UTC()
	outcome.OccurredAt = now
	outcome.NextSyncAt = nextSyncAt(conn, outcome.Success, now)

	if err := e.deps.Jobs.Close(ctx, job); err != nil {
		logger.Errorf("failed to close ingestion job: %v", err)
	}

	if err := e.deps.Connections.RecordSyncOutcome(ctx, conn.ID, outcome); err != nil {
		logger.Errorf("failed to record sync outcome: %v", err)
	}

	if !outcome.Success && conn.Status == model.ConnectionStatusError {
		if err := e.deps.Connections.UpdateStatus(ctx, conn.ID, model.ConnectionStatusError, outcome.ErrorMessage); err != nil {
			logger.Errorf("failed to persist connection error status: %v", err)
		}
	}

	e.publishEvent(ctx, conn, job, logger)

	if runErr != nil {
		mopentelemetry.HandleSpanError(span, "sync run failed", runErr)
	}

	skipped := false
	if _, ok := runErr.(apperr.RateLimited); ok {
		skipped = true
	}

	return &Result{Job: job, Skipped: skipped}, runErr
}

func (e *Engine) publishEvent(ctx context.Context, conn *model.Connection, job *model.IngestionJob, logger mlog.Logger) {
	if e.deps.Events == nil {
		return
	}

	event := rabbitmq.SyncEvent{
		ConnectionID:    conn.ID,
		TenantID:        conn.TenantID,
		JobID:           job.ID,
		RecordsImported: job.RecordsImported,
		OccurredAt:      time.Now().UTC(),
	}

	var err error
	if job.Status == model.JobCompleted {
		err = e.deps.Events.PublishCompleted(ctx, event)
	} else {
		if job.ErrorMessage != nil {
			event.ErrorMessage = *job.ErrorMessage
		}

		err = e.deps.Events.PublishFailed(ctx, event)
	}

	if err != nil {
		logger.Warnf("failed to publish sync event: %v", err)
	}
}

// runJob performs the phases and mutates job in place; it never returns a
// job the caller shouldn't close.
func (e *Engine) runJob(ctx context.Context, conn *model.Connection, job *model.IngestionJob, logger mlog.Logger) (model.SyncOutcome, error) {
	descriptor, err := e.deps.Registry.Describe(conn.ProviderID)
	if err != nil {
		return e.fail(conn, job, err), err
	}

	adapter, err := e.deps.Registry.Get(conn.ProviderID)
	if err != nil {
		return e.fail(conn, job, err), err
	}

	if err := e.deps.RateLimiters.Acquire(ctx, conn.ProviderID, 2*time.Second); err != nil {
		job.Status = model.JobCompleted
		msg := err.Error()
		job.ErrorMessage = &msg

		return model.SyncOutcome{Success: true}, err
	}

	credentials, err := e.loadCredentials(ctx, conn)
	if err != nil {
		return e.fail(conn, job, err), err
	}

	providerAccounts, err := e.accountsPhase(ctx, conn, adapter, credentials, logger)
	if err != nil {
		return e.fail(conn, job, err), err
	}

	job.RecordsFetched += len(providerAccounts)

	if err := e.transactionsPhase(ctx, conn, descriptor, adapter, credentials, providerAccounts, job, logger); err != nil {
		return e.fail(conn, job, err), err
	}

	if err := e.importPhase(ctx, conn, providerAccounts, job, logger); err != nil {
		return e.fail(conn, job, err), err
	}

	job.Status = model.JobCompleted

	return model.SyncOutcome{Success: true}, nil
}

func (e *Engine) loadCredentials(ctx context.Context, conn *model.Connection) (provider.Credentials, error) {
	if conn.IntegrationType == model.IntegrationDirectCredentials {
		fields, err := e.deps.Vault.DirectCredentials(ctx, conn.ID)
		if err != nil {
			return provider.Credentials{}, err
		}

		return provider.Credentials{Direct: fields}, nil
	}

	tokens, err := e.deps.Vault.AccessToken(ctx, conn.ID)
	if err != nil {
		return provider.Credentials{}, err
	}

	return provider.Credentials{Tokens: tokens}, nil
}

// accountsPhase pulls every account visible to the connection and upserts
// the raw projection, auto-provisioning a canonical Account for any that
// isn't already linked (§4.4.1).
func (e *Engine) accountsPhase(ctx context.Context, conn *model.Connection, adapter provider.Adapter, credentials provider.Credentials, logger mlog.Logger) ([]*model.ProviderAccount, error) {
	rawAccounts, fingerprint, err := adapter.FetchRawAccounts(ctx, credentials)
	if err != nil {
		return nil, err
	}

	if conn.InstitutionID == nil && fingerprint.InstitutionID != "" {
		if err := e.deps.Connections.SetInstitutionID(ctx, conn.ID, fingerprint.InstitutionID); err != nil {
			logger.Warnf("failed to record institution id: %v", err)
		} else {
			id := fingerprint.InstitutionID
			conn.InstitutionID = &id
		}
	}

	out := make([]*model.ProviderAccount, 0, len(rawAccounts))

	for _, raw := range rawAccounts {
		balance, dErr := parseDecimal(raw.Balance)
		if dErr != nil {
			logger.Warnf("account %s: unparseable balance %q, defaulting to zero", raw.ExternalAccountID, raw.Balance)
		}

		pa := &model.ProviderAccount{
			TenantID:          conn.TenantID,
			ConnectionID:      conn.ID,
			ProviderID:        conn.ProviderID,
			ExternalAccountID: raw.ExternalAccountID,
			Type:              raw.Type,
			Currency:          raw.Currency,
			Balance:           balance,
			Status:            raw.Status,
			ProviderMetadata:  raw.Metadata,
		}

		if raw.IBAN != "" {
			iban := raw.IBAN
			pa.IBAN = &iban
		}

		stored, err := e.deps.ProviderAccounts.Upsert(ctx, pa)
		if err != nil {
			return nil, err
		}

		if stored.AccountID == nil {
			acc, err := e.provisionCanonicalAccount(ctx, conn, raw, model.Balances{Current: balance, Available: balance, Ledger: balance})
			if err != nil {
				return nil, err
			}

			stored.AccountID = &acc.ID
			if _, err := e.deps.ProviderAccounts.Upsert(ctx, stored); err != nil {
				return nil, err
			}
		}

		out = append(out, stored)
	}

	return out, nil
}

func (e *Engine) provisionCanonicalAccount(ctx context.Context, conn *model.Connection, raw provider.RawAccount, balance model.Balances) (*model.Account, error) {
	providerID := conn.ProviderID
	externalID := raw.ExternalAccountID

	acc := &model.Account{
		ID:                uuid.New(),
		AccountID:         fmt.Sprintf("%s:%s", providerID, externalID),
		TenantID:          conn.TenantID,
		AccountName:       fmt.Sprintf("%s account %s", providerID, lastN(externalID, 4)),
		AccountType:       raw.Type,
		Currency:          raw.Currency,
		Balances:          balance,
		AccountStatus:     model.AccountStatusActive,
		ConnectionID:      &conn.ID,
		ProviderID:        &providerID,
		ExternalAccountID: &externalID,
		CreatedBy:         conn.CreatedBy,
	}

	if raw.IBAN != "" {
		iban := raw.IBAN
		acc.IBAN = &iban
	}

	return e.deps.Accounts.Create(ctx, acc)
}

// transactionsPhase stages pages and persists the new cursor only after every
// page has been staged; canonical transactions are never touched here, so a
// crash mid-phase leaves replayable staging rows and an untouched cursor
// (§8 property 4).
func (e *Engine) transactionsPhase(ctx context.Context, conn *model.Connection, descriptor model.CapabilityDescriptor, adapter provider.Adapter, credentials provider.Credentials, providerAccounts []*model.ProviderAccount, job *model.IngestionJob, logger mlog.Logger) error {
	existing, err := e.deps.Cursors.Load(ctx, conn.ID)
	if err != nil {
		return err
	}

	if descriptor.ConnectionLevelPagination {
		return e.pullConnectionLevel(ctx, conn, adapter, credentials, existing, job, logger)
	}

	return e.pullAccountLevel(ctx, conn, adapter, credentials, providerAccounts, existing, job, logger)
}

func (e *Engine) pullConnectionLevel(ctx context.Context, conn *model.Connection, adapter provider.Adapter, credentials provider.Credentials, existing *model.ProviderSyncCursor, job *model.IngestionJob, logger mlog.Logger) error {
	rawCursor := ""
	if existing.Cursor != nil {
		rawCursor = *existing.Cursor
	}

	metrics := model.SyncMetrics{}

	for page := 0; page < maxPagesPerRun; page++ {
		result, err := adapter.SyncTransactions(ctx, credentials, rawCursor, "")
		if err != nil {
			return err
		}

		if err := e.stagePage(ctx, conn, result, job); err != nil {
			return err
		}

		metrics.Added += len(result.Added)
		metrics.Modified += len(result.Modified)
		metrics.Removed += len(result.Removed)
		job.RecordsFetched += len(result.Added) + len(result.Modified) + len(result.Removed)

		rawCursor = result.NextCursor

		if !result.HasMore {
			break
		}
	}

	metrics.HasMore = false
	now := time.Now().UTC()
	cursorCopy := rawCursor

	return e.deps.Cursors.Persist(ctx, &model.ProviderSyncCursor{
		ConnectionID:  conn.ID,
		Cursor:        &cursorCopy,
		LastSyncAt:    &now,
		LastPageCount: metrics.Added + metrics.Modified + metrics.Removed,
		Metrics:       metrics,
	})
}

func (e *Engine) pullAccountLevel(ctx context.Context, conn *model.Connection, adapter provider.Adapter, credentials provider.Credentials, providerAccounts []*model.ProviderAccount, existing *model.ProviderSyncCursor, job *model.IngestionJob, logger mlog.Logger) error {
	perAccount := decodeAccountCursors(existing.Cursor)
	metrics := model.SyncMetrics{}

	for _, pa := range providerAccounts {
		accountCursor := perAccount[pa.ExternalAccountID]

		for page := 0; page < maxPagesPerRun; page++ {
			result, err := adapter.SyncTransactions(ctx, credentials, accountCursor, pa.ExternalAccountID)
			if err != nil {
				return err
			}

			if err := e.stagePage(ctx, conn, result, job); err != nil {
				return err
			}

			metrics.Added += len(result.Added)
			metrics.Modified += len(result.Modified)
			metrics.Removed += len(result.Removed)
			job.RecordsFetched += len(result.Added) + len(result.Modified) + len(result.Removed)

			accountCursor = result.NextCursor

			if !result.HasMore {
				break
			}
		}

		perAccount[pa.ExternalAccountID] = accountCursor
	}

	metrics.HasMore = false
	now := time.Now().UTC()
	encoded := encodeAccountCursors(perAccount)

	return e.deps.Cursors.Persist(ctx, &model.ProviderSyncCursor{
		ConnectionID:  conn.ID,
		Cursor:        &encoded,
		LastSyncAt:    &now,
		LastPageCount: metrics.Added + metrics.Modified + metrics.Removed,
		Metrics:       metrics,
	})
}

func (e *Engine) stagePage(ctx context.Context, conn *model.Connection, page model.TransactionPage, job *model.IngestionJob) error {
	rows := make([]model.ProviderRawTransaction, 0, len(page.Added)+len(page.Modified)+len(page.Removed))

	rows = append(rows, stageRows(page.Added, model.SyncActionAdded)...)
	rows = append(rows, stageRows(page.Modified, model.SyncActionModified)...)
	rows = append(rows, stageRows(page.Removed, model.SyncActionRemoved)...)

	return e.deps.RawTransactions.StagePage(ctx, conn.TenantID, conn.ID, rows)
}

func stageRows(txs []model.RawTransaction, action model.SyncAction) []model.ProviderRawTransaction {
	out := make([]model.ProviderRawTransaction, 0, len(txs))

	for _, tx := range txs {
		raw, err := encodeRawTransaction(tx)
		if err != nil {
			continue
		}

		lastUpdated := tx.Date
		if tx.ValueDate != nil {
			lastUpdated = *tx.ValueDate
		}

		out = append(out, model.ProviderRawTransaction{
			ID:                    uuid.New(),
			ExternalTransactionID: tx.ExternalTransactionID,
			SyncAction:            action,
			RawData:               raw,
			LastUpdatedAt:         lastUpdated,
		})
	}

	return out
}

// importPhase applies every staged-but-unimported row to the canonical
// Transaction table, keyed on external id, then marks those rows imported
// (§4.4.1, §8 property 5/6).
func (e *Engine) importPhase(ctx context.Context, conn *model.Connection, providerAccounts []*model.ProviderAccount, job *model.IngestionJob, logger mlog.Logger) error {
	accountByExternalID := make(map[string]uuid.UUID, len(providerAccounts))

	for _, pa := range providerAccounts {
		if pa.AccountID != nil {
			accountByExternalID[pa.ExternalAccountID] = *pa.AccountID
		}
	}

	pending, err := e.deps.RawTransactions.ListPendingImport(ctx, conn.ID)
	if err != nil {
		return err
	}

	imported := make([]uuid.UUID, 0, len(pending))

	for _, row := range pending {
		tx, err := decodeRawTransaction(row.RawData)
		if err != nil {
			job.RecordsFailed++
			continue
		}

		accountID, ok := accountByExternalID[tx.ExternalAccountID]
		if !ok {
			job.RecordsSkipped++
			continue
		}

		amount, err := parseAmount(tx.Amount)
		if err != nil {
			job.RecordsFailed++
			continue
		}

		fields := model.UpsertTransactionFields{
			AccountID:     accountID,
			Date:          tx.Date,
			ValueDate:     tx.ValueDate,
			Amount:        amount,
			Currency:      tx.Currency,
			Type:          transactionType(amount),
			Description:   tx.Description,
			BookingStatus: model.BookingStatus(tx.BookingStatus),
			ImportJobID:   job.ID,
			Metadata:      tx.Raw,
			Removed:       row.SyncAction == model.SyncActionRemoved,
		}

		if tx.MerchantName != "" {
			v := tx.MerchantName
			fields.MerchantName = &v
		}

		if tx.CounterpartyName != "" {
			v := tx.CounterpartyName
			fields.CounterpartyName = &v
		}

		if tx.CounterpartyIBAN != "" {
			v := tx.CounterpartyIBAN
			fields.CounterpartyIBAN = &v
		}

		if tx.Reference != "" {
			v := tx.Reference
			fields.Reference = &v
		}

		if err := e.deps.Transactions.UpsertByExternalID(ctx, conn.TenantID, conn.ID, tx.ExternalTransactionID, fields); err != nil {
			logger.Errorf("upsert transaction %s failed: %v", tx.ExternalTransactionID, err)
			job.RecordsFailed++

			continue
		}

		job.RecordsProcessed++
		job.RecordsImported++
		imported = append(imported, row.ID)
	}

	return e.deps.RawTransactions.MarkImported(ctx, imported)
}

// fail records the terminal failure on job and, for errors that never
// self-resolve without user action (auth failures, revoked tokens), flags
// the connection in-memory; Run persists that error status with
// UpdateStatus after RecordSyncOutcome (§7).
func (e *Engine) fail(conn *model.Connection, job *model.IngestionJob, err error) model.SyncOutcome {
	job.Status = model.JobFailed
	msg := err.Error()
	job.ErrorMessage = &msg

	switch err.(type) {
	case apperr.AuthFailure, apperr.TokenRevoked:
		conn.Status = model.ConnectionStatusError
	}

	return model.SyncOutcome{Success: false, ErrorMessage: &msg}
}

// nextSyncAt computes the next tick-eligible time: the schedule interval on
// success, exponential backoff off consecutive_failures on failure (§4.4.3).
func nextSyncAt(conn *model.Connection, success bool, now time.Time) time.Time {
	interval := scheduleInterval(conn.SyncSchedule)

	if success {
		return now.Add(interval)
	}

	failures := conn.ConsecutiveFailures + 1
	backoff := backoffConfig(interval).Backoff(failures)

	if backoff > interval {
		return now.Add(backoff)
	}

	return now.Add(interval)
}

// throttled reports whether conn's last sync is younger than its schedule's
// minimum interval (§4.4.3, scenario E). It is the only guard against a
// too-soon run for callers that bypass ListReady's next_sync_at gating
// (on-demand trigger, first sync after authorization).
func throttled(conn *model.Connection, now time.Time) bool {
	if conn.LastSyncAt == nil {
		return false
	}

	return now.Sub(*conn.LastSyncAt) < scheduleInterval(conn.SyncSchedule)
}

func scheduleInterval(bucket model.SyncSchedule) time.Duration {
	switch bucket {
	case model.ScheduleHourly:
		return time.Hour
	case model.ScheduleEvery4h:
		return 4 * time.Hour
	case model.ScheduleEvery12h:
		return 12 * time.Hour
	case model.ScheduleDaily:
		return 24 * time.Hour
	case model.ScheduleWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[len(s)-n:]
}
