package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/normalize"
)

type outcome int

const (
	outcomeInvalidPhone outcome = iota
	outcomeNoBirthDate
	outcomeUnchanged
	outcomeCreated
	outcomeUpdated
)

type applied struct {
	outcome   outcome
	contactID int64
}

// apply decides and performs the create/update for one external record.
func (r *Reconciler) apply(ctx context.Context, companyID int64, rec model.ExternalRecord, today time.Time) (applied, error) {
	phone, ok := normalize.FirstPhone(rec.PhoneCandidates)
	if !ok {
		return applied{outcome: outcomeInvalidPhone}, nil
	}
	birth, hasBirth := normalize.BirthDate(rec.BirthDate, today)
	name := normalize.Name(rec.Name)

	existing, err := r.Contacts.FindByPhone(ctx, companyID, phone)
	if errors.Is(err, apperror.ErrNotFound) {
		if !hasBirth {
			return applied{outcome: outcomeNoBirthDate}, nil
		}
		if name == "" {
			name = phone
		}
		c, err := r.Contacts.Create(ctx, model.NewContact{
			CompanyID: companyID,
			Number:    phone,
			Name:      name,
			BirthDate: &birth,
		})
		if err != nil {
			return applied{}, err
		}
		r.logger().DebugContext(ctx, config.MsgContactCreated,
			config.LogKeyContact, c.ID,
			config.LogKeyExternalID, rec.ExternalID,
		)
		return applied{outcome: outcomeCreated, contactID: c.ID}, nil
	}
	if err != nil {
		return applied{}, err
	}

	upd := updateFor(existing, name, birth, hasBirth)
	if upd.Empty() {
		return applied{outcome: outcomeUnchanged, contactID: existing.ID}, nil
	}
	if err := r.Contacts.Update(ctx, existing.ID, upd); err != nil {
		return applied{}, err
	}
	r.logger().DebugContext(ctx, config.MsgContactUpdated,
		config.LogKeyContact, existing.ID,
		config.LogKeyExternalID, rec.ExternalID,
	)
	return applied{outcome: outcomeUpdated, contactID: existing.ID}, nil
}

// updateFor computes the fields to change on an existing contact. The birth
// date is compared by calendar day. The name only replaces a bare number.
func updateFor(c model.Contact, name string, birth time.Time, hasBirth bool) model.ContactUpdate {
	var u model.ContactUpdate
	if hasBirth && (c.BirthDate == nil || !normalize.SameDay(*c.BirthDate, birth)) {
		u.BirthDate = &birth
	}
	if normalize.LooksGenerated(c.Name) && name != "" && name != c.Name {
		u.Name = &name
	}
	return u
}
