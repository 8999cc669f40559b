// Package birthday finds today's birthdays and dispatches the greetings.
package birthday

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/normalize"
	"github.com/tartampluch/birthday-sync/internal/port"
)

// DedupKey identifies the greeting of one contact on one reference day.
func DedupKey(companyID, contactID int64, today time.Time) string {
	return fmt.Sprintf("%s:%d:%d:%s", config.DedupKeyPrefix, companyID, contactID, today.Format(config.DateFormatDayKey))
}

// Finder selects the users and contacts of a tenant born on today's month and day.
type Finder struct {
	Contacts port.ContactRepository
	Users    port.UserRepository
	Dedup    port.DedupStore
	Logger   *slog.Logger
	PageSize int
}

// Find returns today's candidates in repository order. Disabled features are
// not queried. today must be a date in the reference timezone.
func (f *Finder) Find(ctx context.Context, companyID int64, s model.BirthdaySettings, today time.Time) (users, contacts []model.BirthdayCandidate, err error) {
	if s.UserBirthdayEnabled {
		if users, err = f.findUsers(ctx, companyID, today); err != nil {
			return nil, nil, err
		}
	}
	if s.ContactBirthdayEnabled {
		if contacts, err = f.findContacts(ctx, companyID, today); err != nil {
			return nil, nil, err
		}
	}

	f.logger().DebugContext(ctx, config.MsgBirthdaysFound,
		config.LogKeyCompany, companyID,
		config.LogKeyUsers, len(users),
		config.LogKeyContacts, len(contacts),
	)
	return users, contacts, nil
}

func (f *Finder) findUsers(ctx context.Context, companyID int64, today time.Time) ([]model.BirthdayCandidate, error) {
	var out []model.BirthdayCandidate
	var cursor int64
	for {
		batch, err := f.Users.ListWithBirthDate(ctx, companyID, cursor, f.pageSize())
		if err != nil {
			return nil, err
		}
		for _, u := range batch {
			cursor = u.ID
			if u.BirthDate == nil || !normalize.SameMonthDay(*u.BirthDate, today) {
				continue
			}
			out = append(out, model.BirthdayCandidate{
				RecipientID: u.ID,
				Kind:        model.CandidateUser,
				CompanyID:   companyID,
				Name:        u.Name,
				Age:         today.Year() - u.BirthDate.Year(),
				BirthDate:   *u.BirthDate,
			})
		}
		if len(batch) < f.pageSize() {
			return out, nil
		}
	}
}

func (f *Finder) findContacts(ctx context.Context, companyID int64, today time.Time) ([]model.BirthdayCandidate, error) {
	var out []model.BirthdayCandidate
	var cursor int64
	for {
		batch, err := f.Contacts.ListActiveWithBirthDate(ctx, companyID, cursor, f.pageSize())
		if err != nil {
			return nil, err
		}
		for _, c := range batch {
			cursor = c.ID
			if !c.Active || c.BirthDate == nil || !normalize.SameMonthDay(*c.BirthDate, today) {
				continue
			}
			cand := model.BirthdayCandidate{
				RecipientID: c.ID,
				Kind:        model.CandidateContact,
				CompanyID:   companyID,
				Name:        c.Name,
				Number:      c.Number,
				ChannelID:   c.ChannelID,
				Age:         today.Year() - c.BirthDate.Year(),
				BirthDate:   *c.BirthDate,
			}
			cand.AlreadyNotifiedToday = f.notified(ctx, companyID, c.ID, today)

			f.logger().InfoContext(ctx, config.MsgBdayToday,
				config.LogKeyCompany, companyID,
				config.LogKeyContact, c.ID,
				config.LogKeyDOB, c.BirthDate.Format(config.DateFormatISO),
			)
			out = append(out, cand)
		}
		if len(batch) < f.pageSize() {
			return out, nil
		}
	}
}

// notified reports a same-day claim. Lookup failures count as not notified:
// the claim made before sending still guards against duplicates.
func (f *Finder) notified(ctx context.Context, companyID, contactID int64, today time.Time) bool {
	if f.Dedup == nil {
		return false
	}
	ok, err := f.Dedup.Exists(ctx, DedupKey(companyID, contactID, today))
	if err != nil {
		f.logger().WarnContext(ctx, config.MsgDedupCheckFailed,
			config.LogKeyContact, contactID,
			config.LogKeyError, err,
		)
		return false
	}
	return ok
}

func (f *Finder) pageSize() int {
	if f.PageSize <= 0 {
		return config.DefaultListLimit
	}
	return f.PageSize
}

func (f *Finder) logger() *slog.Logger {
	l := f.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(config.LogKeyComponent, config.CompFinder)
}
