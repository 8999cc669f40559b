// Package reconcile imports external contacts into the local contact store.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/rs/xid"
	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/clock"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/messages"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/port"
)

// Reconciler walks an integration's external contacts page by page and
// applies create/update decisions to the contact repository.
type Reconciler struct {
	Contacts     port.ContactRepository
	Integrations port.IntegrationRepository
	Sources      port.SourceFactory

	Clock    clock.Clock
	Sleep    clock.SleepFunc
	Location *time.Location
	Messages *messages.Catalog
	Logger   *slog.Logger

	// PageDelay separates page fetches. There is no delay after the last page.
	PageDelay time.Duration
	// Retries bounds the extra attempts on a retryable source failure. 0 disables retry.
	Retries   int
	RetryBase time.Duration
}

// Run reconciles one integration and persists its ledger. It never fails:
// every error ends up in the result and in the ledger's last error.
func (r *Reconciler) Run(ctx context.Context, in model.IntegrationConfig) model.SyncResult {
	res := model.SyncResult{
		RunID:         xid.New().String(),
		IntegrationID: in.ID,
		CompanyID:     in.CompanyID,
	}
	log := r.logger().With(
		config.LogKeyRun, res.RunID,
		config.LogKeyIntegration, in.ID,
		config.LogKeyCompany, in.CompanyID,
		config.LogKeyType, in.Type,
	)
	start := r.now()
	log.InfoContext(ctx, config.MsgSyncStarted)

	err := r.walk(ctx, log, in, &res)

	res.LastSyncAt = r.now()
	switch {
	case err == nil:
		res.OK = true
		log.InfoContext(ctx, config.MsgSyncFinished,
			config.LogKeyProcessed, res.Processed,
			config.LogKeyUpdated, res.Updated,
			config.LogKeyCreated, res.Created,
			config.LogKeySkipped, res.Skipped,
			config.LogKeyDuration, res.LastSyncAt.Sub(start).Milliseconds(),
		)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		res.LastError, res.Kind = err.Error(), apperror.KindUnexpected
		log.WarnContext(ctx, config.MsgSyncCancelled, config.LogKeyUpdated, res.Updated)
	default:
		res.LastError, res.Kind = err.Error(), apperror.KindOf(err)
		log.ErrorContext(ctx, config.MsgSyncFailed,
			config.LogKeyKind, res.Kind,
			config.LogKeyUpdated, res.Updated,
			config.LogKeyError, err,
		)
	}

	// Partial progress is kept. The ledger is written even when ctx is done.
	ledger := model.Ledger{
		LastSyncAt:       res.LastSyncAt,
		LastUpdatedCount: res.Updated + res.Created,
		LastError:        res.LastError,
	}
	if err := r.Integrations.UpdateLedger(context.WithoutCancel(ctx), in.ID, ledger); err != nil {
		log.ErrorContext(ctx, config.MsgLedgerFailed, config.LogKeyError, err)
	}
	return res
}

// SyncOne runs the reconciliation of one integration on demand.
// Integrations of another tenant are reported as not found.
func (r *Reconciler) SyncOne(ctx context.Context, companyID, integrationID int64) model.SyncResult {
	in, err := r.findIntegration(ctx, companyID, integrationID)
	if err != nil {
		return model.SyncResult{
			IntegrationID: integrationID,
			CompanyID:     companyID,
			Message:       r.Messages.Get(config.TKeySyncFailed, map[string]any{"Error": err.Error()}),
			LastError:     err.Error(),
			Kind:          apperror.KindOf(err),
		}
	}
	if !slices.Contains(config.IntegrationTypes, in.Type) {
		return model.SyncResult{
			IntegrationID: integrationID,
			CompanyID:     companyID,
			Message:       r.Messages.Get(config.TKeySyncWrongType, nil),
			Kind:          apperror.KindInvalidInput,
		}
	}

	res := r.Run(ctx, in)
	if res.OK {
		res.Message = r.Messages.Get(config.TKeySyncOK, map[string]any{"Updated": res.Updated, "Created": res.Created})
	} else {
		res.Message = r.Messages.Get(config.TKeySyncFailed, map[string]any{"Error": res.LastError})
	}
	return res
}

func (r *Reconciler) walk(ctx context.Context, log *slog.Logger, in model.IntegrationConfig, res *model.SyncResult) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = apperror.Unexpected(fmt.Sprintf("%s: %v", config.ErrPanic, p), nil)
		}
	}()

	src, err := r.source(in)
	if err != nil {
		return err
	}
	today := r.today()

	totalPages := 1
	for page := 1; page <= totalPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var p model.Page
		err := r.retry(ctx, log, page, func() error {
			var err error
			p, err = src.ListPage(ctx, page)
			return err
		})
		if err != nil {
			return err
		}
		if p.TotalPages > 0 {
			totalPages = p.TotalPages
		}
		log.DebugContext(ctx, config.MsgPageFetched,
			config.LogKeyPage, page,
			config.LogKeyTotalPages, totalPages,
			config.LogKeyRecords, len(p.Records),
		)

		for _, rec := range p.Records {
			res.Processed++
			a, err := r.apply(ctx, in.CompanyID, rec, today)
			if err != nil {
				return err
			}
			switch a.outcome {
			case outcomeCreated:
				res.Created++
			case outcomeUpdated:
				res.Updated++
			case outcomeInvalidPhone, outcomeNoBirthDate:
				res.Skipped++
				log.DebugContext(ctx, config.MsgRecordSkipped, config.LogKeyExternalID, rec.ExternalID)
			}
		}

		if page < totalPages {
			if err := r.sleep(ctx, r.PageDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// source validates credentials and builds the integration's source.
func (r *Reconciler) source(in model.IntegrationConfig) (port.ContactSource, error) {
	creds, err := model.ParseCredentials(in.Type, in.JSONContent)
	if err != nil {
		return nil, err
	}
	return r.Sources.NewSource(in, creds)
}

// retry calls fn until it succeeds, fails with a non-retryable error or runs
// out of attempts. Backoff doubles from RetryBase up to RetryMaxDelay.
func (r *Reconciler) retry(ctx context.Context, log *slog.Logger, page int, fn func() error) error {
	delay := r.RetryBase
	if delay <= 0 {
		delay = config.RetryBaseDelay
	}
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || attempt > r.Retries || !apperror.Retryable(err) {
			return err
		}
		log.WarnContext(ctx, config.MsgPageRetry,
			config.LogKeyPage, page,
			config.LogKeyAttempt, attempt,
			config.LogKeyDelay, delay.Milliseconds(),
			config.LogKeyError, err,
		)
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
		delay = min(delay*2, config.RetryMaxDelay)
	}
}

func (r *Reconciler) findIntegration(ctx context.Context, companyID, integrationID int64) (model.IntegrationConfig, error) {
	in, err := r.Integrations.FindByID(ctx, integrationID)
	if err != nil {
		return model.IntegrationConfig{}, err
	}
	if in.CompanyID != companyID {
		return model.IntegrationConfig{}, apperror.NotFound("integration", fmt.Sprint(integrationID))
	}
	return in, nil
}

func (r *Reconciler) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return clock.Sleep(ctx, d)
}

func (r *Reconciler) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock.Now()
}

// today is midnight of the current day in the reference timezone.
func (r *Reconciler) today() time.Time {
	return clock.DayOf(r.now(), r.location())
}

func (r *Reconciler) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

func (r *Reconciler) logger() *slog.Logger {
	l := r.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(config.LogKeyComponent, config.CompReconciler)
}
