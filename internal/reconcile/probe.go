package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/normalize"
	"github.com/tartampluch/birthday-sync/internal/port"
)

// Probe looks up one phone number in an integration and applies the same
// decision a full run would. It lets an operator validate credentials and
// field mapping without a full sync.
func (r *Reconciler) Probe(ctx context.Context, companyID, integrationID int64, phone string) (res model.ProbeResult) {
	defer func() {
		if p := recover(); p != nil {
			res = r.probeFailure(apperror.Unexpected(fmt.Sprintf("%s: %v", config.ErrPanic, p), nil))
		}
	}()

	in, err := r.findIntegration(ctx, companyID, integrationID)
	if err != nil {
		return r.probeFailure(err)
	}
	if !slices.Contains(config.IntegrationTypes, in.Type) {
		return r.probeResult(config.TKeyProbeWrongType, apperror.KindInvalidInput)
	}

	src, err := r.source(in)
	if err != nil {
		if errors.Is(err, apperror.ErrInvalidInput) {
			return r.probeResult(config.TKeyProbeTokensMissing, apperror.KindInvalidInput)
		}
		return r.probeFailure(err)
	}

	target, ok := normalize.Phone(phone)
	if !ok {
		return r.probeResult(config.TKeyProbeInvalidNumber, apperror.KindInvalidInput)
	}

	rec, found, err := r.findByPhone(ctx, src, target)
	if err != nil {
		return r.probeFailure(err)
	}
	if !found {
		return r.probeResult(config.TKeyProbeNotFound, apperror.KindNotFound)
	}

	a, err := r.apply(ctx, in.CompanyID, rec, r.today())
	if err != nil {
		return r.probeFailure(err)
	}

	res = model.ProbeResult{ContactID: a.contactID, ExternalID: rec.ExternalID}
	switch a.outcome {
	case outcomeInvalidPhone:
		res.Reason = config.TKeyProbeInvalidPhone
		res.ExternalID = ""
	case outcomeNoBirthDate:
		res.Reason = config.TKeyProbeNoBirthDate
	case outcomeCreated:
		res.Reason, res.Created = config.TKeyProbeCreated, true
	case outcomeUnchanged:
		res.Reason = config.TKeyProbeNoUpdate
	case outcomeUpdated:
		res.Reason, res.Updated = config.TKeyProbeUpdated, true
	}
	res.Message = r.Messages.Get(res.Reason, nil)
	return res
}

// findByPhone searches the phone filter first, preferring exact canonical
// matches, then walks the first pages of the full listing.
func (r *Reconciler) findByPhone(ctx context.Context, src port.ContactSource, target string) (model.ExternalRecord, bool, error) {
	log := r.logger()

	var filtered []model.ExternalRecord
	err := r.retry(ctx, log, 0, func() error {
		var err error
		filtered, err = src.ListByPhone(ctx, normalize.LocalSubscriber(target))
		return err
	})
	if err != nil {
		return model.ExternalRecord{}, false, err
	}

	var exact []model.ExternalRecord
	for _, rec := range filtered {
		if p, ok := normalize.FirstPhone(rec.PhoneCandidates); ok && p == target {
			exact = append(exact, rec)
		}
	}
	if rec, ok := r.pickByBirthDate(exact); ok {
		return rec, true, nil
	}
	if rec, ok := r.pickByBirthDate(filtered); ok {
		return rec, true, nil
	}

	totalPages := config.ProbeSearchPages
	for page := 1; page <= min(totalPages, config.ProbeSearchPages); page++ {
		if err := ctx.Err(); err != nil {
			return model.ExternalRecord{}, false, err
		}
		var p model.Page
		err := r.retry(ctx, log, page, func() error {
			var err error
			p, err = src.ListPage(ctx, page)
			return err
		})
		if err != nil {
			return model.ExternalRecord{}, false, err
		}
		if p.TotalPages > 0 {
			totalPages = p.TotalPages
		}
		for _, rec := range p.Records {
			if ph, ok := normalize.FirstPhone(rec.PhoneCandidates); ok && ph == target {
				return rec, true, nil
			}
		}
		if page < min(totalPages, config.ProbeSearchPages) {
			if err := r.sleep(ctx, r.PageDelay); err != nil {
				return model.ExternalRecord{}, false, err
			}
		}
	}
	return model.ExternalRecord{}, false, nil
}

// pickByBirthDate returns the first record with a usable birth date, else the first record.
func (r *Reconciler) pickByBirthDate(recs []model.ExternalRecord) (model.ExternalRecord, bool) {
	if len(recs) == 0 {
		return model.ExternalRecord{}, false
	}
	today := r.today()
	for _, rec := range recs {
		if _, ok := normalize.BirthDate(rec.BirthDate, today); ok {
			return rec, true
		}
	}
	return recs[0], true
}

// Ping fetches the first page to check an integration's credentials.
func (r *Reconciler) Ping(ctx context.Context, companyID, integrationID int64) model.PingResult {
	in, err := r.findIntegration(ctx, companyID, integrationID)
	if err != nil {
		return r.pingFailure(err)
	}
	if !slices.Contains(config.IntegrationTypes, in.Type) {
		return model.PingResult{Message: r.Messages.Get(config.TKeySyncWrongType, nil), Kind: apperror.KindInvalidInput}
	}
	src, err := r.source(in)
	if err != nil {
		if errors.Is(err, apperror.ErrInvalidInput) {
			return model.PingResult{Message: r.Messages.Get(config.TKeyProbeTokensMissing, nil), Kind: apperror.KindInvalidInput}
		}
		return r.pingFailure(err)
	}
	if _, err := src.ListPage(ctx, 1); err != nil {
		return r.pingFailure(err)
	}
	return model.PingResult{OK: true, Message: r.Messages.Get(config.TKeyPingOK, nil)}
}

func (r *Reconciler) pingFailure(err error) model.PingResult {
	kind := apperror.KindOf(err)
	var msg string
	switch kind {
	case apperror.KindUnauthorized:
		msg = r.Messages.Get(config.TKeyPingUnauthorized, nil)
	case apperror.KindRateLimited:
		msg = r.Messages.Get(config.TKeyPingRateLimited, nil)
	default:
		msg = r.Messages.Get(config.TKeyPingFailed, map[string]any{"Error": err.Error()})
	}
	r.logger().Warn(config.MsgBadStatus, config.LogKeyKind, kind, config.LogKeyError, err)
	return model.PingResult{Message: msg, Kind: kind}
}

func (r *Reconciler) probeResult(reason string, kind apperror.Kind) model.ProbeResult {
	return model.ProbeResult{Reason: reason, Message: r.Messages.Get(reason, nil), Kind: kind}
}

func (r *Reconciler) probeFailure(err error) model.ProbeResult {
	return model.ProbeResult{
		Reason:  config.TKeyProbeFailed,
		Message: r.Messages.Get(config.TKeyProbeFailed, map[string]any{"Error": err.Error()}),
		Kind:    apperror.KindOf(err),
	}
}
