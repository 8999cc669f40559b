// Package engine runs the daily cycle: birthday dispatch per tenant, then
// reconciliation of every configured integration, then announcement cleanup.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/clock"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/port"
)

// BirthdayFinder lists a tenant's birthday candidates for a reference day.
type BirthdayFinder interface {
	Find(ctx context.Context, companyID int64, s model.BirthdaySettings, today time.Time) (users, contacts []model.BirthdayCandidate, err error)
}

// BirthdayDispatcher announces and greets one tenant's candidates.
type BirthdayDispatcher interface {
	Dispatch(ctx context.Context, companyID int64, s model.BirthdaySettings, users, contacts []model.BirthdayCandidate, today time.Time) model.BirthdayRunResult
}

// IntegrationRunner reconciles integrations and probes single contacts.
type IntegrationRunner interface {
	Run(ctx context.Context, in model.IntegrationConfig) model.SyncResult
	Probe(ctx context.Context, companyID, integrationID int64, phone string) model.ProbeResult
}

// Engine is the daily entry point. A unit (tenant or integration) that fails
// only affects its own result.
type Engine struct {
	Tenants       port.TenantRepository
	Integrations  port.IntegrationRepository
	Announcements port.AnnouncementSink

	Finder     BirthdayFinder
	Dispatcher BirthdayDispatcher
	Reconciler IntegrationRunner

	Clock    clock.Clock
	Location *time.Location
	Logger   *slog.Logger

	// Workers bounds concurrent integration runs. Each integration stays on
	// one worker.
	Workers int

	mu   sync.RWMutex
	last *model.CycleResult
}

// RunToday executes one full cycle and records it as the last cycle.
func (e *Engine) RunToday(ctx context.Context) model.CycleResult {
	res := model.CycleResult{ID: uuid.NewString(), StartedAt: e.now()}
	log := e.logger().With(config.LogKeyRun, res.ID)
	today := clock.DayOf(res.StartedAt, e.location())
	log.InfoContext(ctx, config.MsgCycleStarted, config.LogKeyDate, today.Format(config.DateFormatISO))

	res.Tenants = e.runTenants(ctx, log, today)
	res.Integrations = e.runIntegrations(ctx, log)
	res.AnnouncementsRemoved = e.cleanup(ctx, log)

	res.Cancelled = ctx.Err() != nil
	res.FinishedAt = e.now()
	log.InfoContext(ctx, config.MsgCycleFinished,
		config.LogKeyTenants, len(res.Tenants),
		config.LogKeySyncs, len(res.Integrations),
		config.LogKeyDuration, res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
	)

	e.mu.Lock()
	e.last = &res
	e.mu.Unlock()
	return res
}

// LastCycle returns the result of the latest completed cycle.
func (e *Engine) LastCycle() (model.CycleResult, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return model.CycleResult{}, false
	}
	return *e.last, true
}

// RunIntegrationTest probes one contact against one integration.
func (e *Engine) RunIntegrationTest(ctx context.Context, companyID, integrationID int64, phone string) model.ProbeResult {
	return e.Reconciler.Probe(ctx, companyID, integrationID, phone)
}

func (e *Engine) runTenants(ctx context.Context, log *slog.Logger, today time.Time) []model.BirthdayRunResult {
	tenants, err := e.Tenants.ListActive(ctx)
	if err != nil {
		log.ErrorContext(ctx, config.MsgTenantsFailed, config.LogKeyError, err)
		return nil
	}

	results := make([]model.BirthdayRunResult, 0, len(tenants))
	for _, t := range tenants {
		if ctx.Err() != nil {
			break
		}
		results = append(results, e.runTenant(ctx, log, t, today))
	}
	return results
}

// runTenant finds then dispatches one tenant's birthdays.
func (e *Engine) runTenant(ctx context.Context, log *slog.Logger, t model.Tenant, today time.Time) (res model.BirthdayRunResult) {
	res.CompanyID = t.ID
	log = log.With(config.LogKeyCompany, t.ID)

	defer func() {
		if p := recover(); p != nil {
			res.Error = apperror.Unexpected(fmt.Sprintf("%s: %v", config.ErrPanic, p), nil).Error()
		}
		if res.Error != "" {
			log.ErrorContext(ctx, config.MsgTenantFailed, config.LogKeyError, res.Error)
		}
	}()

	settings, err := e.Tenants.BirthdaySettings(ctx, t.ID)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	users, contacts, err := e.Finder.Find(ctx, t.ID, settings, today)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	log.InfoContext(ctx, config.MsgBirthdaysFound,
		config.LogKeyUsers, len(users),
		config.LogKeyContacts, len(contacts),
	)
	if len(users) == 0 && len(contacts) == 0 {
		return res
	}
	return e.Dispatcher.Dispatch(ctx, t.ID, settings, users, contacts, today)
}

// runIntegrations reconciles every integration of every supported type on a
// bounded worker pool. Integrations of one tenant run one after the other so
// they never write the same contact rows concurrently. Results keep the
// listing order.
func (e *Engine) runIntegrations(ctx context.Context, log *slog.Logger) []model.SyncResult {
	var all []model.IntegrationConfig
	for _, typ := range config.IntegrationTypes {
		list, err := e.Integrations.ListByType(ctx, typ)
		if err != nil {
			log.ErrorContext(ctx, config.MsgListIntegrations, config.LogKeyType, typ, config.LogKeyError, err)
			continue
		}
		all = append(all, list...)
	}
	if len(all) == 0 {
		return nil
	}

	// One job per tenant, in first-seen order.
	var groups [][]int
	byTenant := make(map[int64]int)
	for i, in := range all {
		g, ok := byTenant[in.CompanyID]
		if !ok {
			g = len(groups)
			byTenant[in.CompanyID] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}

	results := make([]model.SyncResult, len(all))
	done := make([]bool, len(all))
	jobs := make(chan []int, len(groups))

	var wg sync.WaitGroup
	for range min(e.workers(), len(groups)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range jobs {
				for _, i := range group {
					if ctx.Err() != nil {
						return
					}
					results[i] = e.runIntegration(ctx, log, all[i])
					done[i] = true
				}
			}
		}()
	}

	for _, group := range groups {
		jobs <- group
	}
	close(jobs)
	wg.Wait()

	out := make([]model.SyncResult, 0, len(all))
	for i, r := range results {
		if done[i] {
			out = append(out, r)
		}
	}
	return out
}

func (e *Engine) runIntegration(ctx context.Context, log *slog.Logger, in model.IntegrationConfig) (res model.SyncResult) {
	defer func() {
		if p := recover(); p != nil {
			err := apperror.Unexpected(fmt.Sprintf("%s: %v", config.ErrPanic, p), nil)
			res = model.SyncResult{
				IntegrationID: in.ID,
				CompanyID:     in.CompanyID,
				LastError:     err.Error(),
				Kind:          apperror.KindUnexpected,
			}
			log.ErrorContext(ctx, config.MsgSyncFailed, config.LogKeyIntegration, in.ID, config.LogKeyError, err)
		}
	}()
	return e.Reconciler.Run(ctx, in)
}

// cleanup removes a bounded number of expired announcements.
func (e *Engine) cleanup(ctx context.Context, log *slog.Logger) int {
	if e.Announcements == nil || ctx.Err() != nil {
		return 0
	}
	n, err := e.Announcements.CleanExpired(ctx, e.now(), config.AnnouncementCleanLimit)
	if err != nil {
		log.ErrorContext(ctx, config.MsgCleanupFailed, config.LogKeyError, err)
		return 0
	}
	log.InfoContext(ctx, config.MsgAnnouncementsSwep, config.LogKeyCount, n)
	return n
}

func (e *Engine) workers() int {
	if e.Workers < 1 {
		return 1
	}
	return e.Workers
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock.Now()
}

func (e *Engine) location() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

func (e *Engine) logger() *slog.Logger {
	l := e.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(config.LogKeyComponent, config.CompEngine)
}
