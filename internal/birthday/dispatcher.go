package birthday

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/clock"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/messages"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/port"
)

// Dispatcher announces user birthdays and greets contacts, at most once per
// contact and reference day. Sends are sequential and spaced by a random delay.
type Dispatcher struct {
	Contacts      port.ContactRepository
	Channels      port.ChannelRepository
	Dedup         port.DedupStore
	Sender        port.NotificationSender
	Ticketing     port.Ticketing
	Announcements port.AnnouncementSink
	Realtime      port.RealtimeNotifier

	Messages *messages.Catalog
	Clock    clock.Clock
	Sleep    clock.SleepFunc
	Logger   *slog.Logger

	DelayMin time.Duration
	DelayMax time.Duration
	DedupTTL time.Duration

	// Int64N draws the random part of the send delay, in [0, n).
	Int64N func(n int64) int64
}

// Dispatch processes one tenant's candidates in the given order and publishes
// a tenant event at the end. It never fails; cancellation stops at the next
// recipient boundary.
func (d *Dispatcher) Dispatch(ctx context.Context, companyID int64, s model.BirthdaySettings, users, contacts []model.BirthdayCandidate, today time.Time) model.BirthdayRunResult {
	res := model.BirthdayRunResult{CompanyID: companyID}
	log := d.logger().With(config.LogKeyCompany, companyID)

	for _, u := range users {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		if d.announce(ctx, log, s, u, today) {
			res.UsersAnnounced++
		}
	}

	for _, c := range contacts {
		if res.Cancelled || ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		if c.AlreadyNotifiedToday {
			log.InfoContext(ctx, config.MsgSendDuplicate, config.LogKeyContact, c.RecipientID)
			res.Record(model.DispatchOutcome{
				ContactID: c.RecipientID,
				Status:    model.OutcomeDuplicate,
				Kind:      apperror.KindDuplicateSend,
			})
			continue
		}

		delay := d.delay()
		log.DebugContext(ctx, config.MsgSendWaiting,
			config.LogKeyContact, c.RecipientID,
			config.LogKeyDelay, delay.Milliseconds(),
		)
		if err := d.sleep(ctx, delay); err != nil {
			res.Cancelled = true
			break
		}
		res.Record(d.attempt(ctx, log, companyID, s, c, today))
	}

	if res.Cancelled {
		log.WarnContext(ctx, config.MsgDispatchCancelled,
			config.LogKeyProcessed, len(res.Outcomes),
			config.LogKeyContacts, len(contacts),
		)
	}

	log.InfoContext(ctx, config.MsgDispatchFinished,
		config.LogKeyUsers, res.UsersAnnounced,
		config.LogKeyContacts, res.ContactsNotified,
		config.LogKeyDuplicates, res.ContactsSkippedDedup,
		config.LogKeyFailed, res.ContactsFailed,
	)

	d.publish(ctx, log, companyID, config.EventBirthdays, map[string]any{
		"action":               config.EventActionCreate,
		"date":                 today.Format(config.DateFormatISO),
		"usersAnnounced":       res.UsersAnnounced,
		"contactsNotified":     res.ContactsNotified,
		"contactsSkippedDedup": res.ContactsSkippedDedup,
		"contactsFailed":       res.ContactsFailed,
	})
	return res
}

// attempt claims the dedup key then delivers. The claim is kept whatever
// happens next: a failed send still counts as attempted today.
func (d *Dispatcher) attempt(ctx context.Context, log *slog.Logger, companyID int64, s model.BirthdaySettings, c model.BirthdayCandidate, today time.Time) (out model.DispatchOutcome) {
	out.ContactID = c.RecipientID
	log = log.With(config.LogKeyContact, c.RecipientID)

	defer func() {
		if p := recover(); p != nil {
			out = failed(c.RecipientID, apperror.Unexpected(fmt.Sprintf("%s: %v", config.ErrPanic, p), nil))
		}
		if out.Status == model.OutcomeFailed {
			log.ErrorContext(ctx, config.MsgSendFailed, config.LogKeyKind, out.Kind, config.LogKeyError, out.Error)
		}
	}()

	key := DedupKey(companyID, c.RecipientID, today)
	claimed, err := d.Dedup.Claim(ctx, key, d.ttl())
	if err != nil {
		return failed(c.RecipientID, err)
	}
	if !claimed {
		log.InfoContext(ctx, config.MsgSendDuplicate, config.LogKeyKey, key)
		return model.DispatchOutcome{
			ContactID: c.RecipientID,
			Status:    model.OutcomeDuplicate,
			Kind:      apperror.KindDuplicateSend,
		}
	}

	contact, err := d.Contacts.FindByID(ctx, c.RecipientID)
	if err != nil {
		return failed(c.RecipientID, err)
	}
	channel, err := d.resolveChannel(ctx, log, companyID, s)
	if err != nil {
		return failed(c.RecipientID, err)
	}

	tpl := s.ContactBirthdayMessage
	if tpl == "" {
		tpl = d.Messages.Get(config.TKeyBirthdayMessage, nil)
	}
	body := Render(tpl, contact.Name, c.Age)

	ticket, err := d.Ticketing.FindOrCreateTicket(ctx, contact, channel)
	if err != nil {
		return failed(c.RecipientID, err)
	}

	deliveryID, err := d.Sender.Send(ctx, channel, ticket, config.MessageBodyPrefix+body)
	if err != nil {
		return failed(c.RecipientID, err)
	}
	log.InfoContext(ctx, config.MsgSendSucceeded,
		config.LogKeyChannel, channel.ID,
		config.LogKeyTicket, ticket.ID,
		config.LogKeyDelivery, deliveryID,
	)

	if err := d.Ticketing.RecordMessage(ctx, model.MessageRecord{
		TicketID:   ticket.ID,
		Body:       body,
		DeliveryID: deliveryID,
		Direction:  config.DirectionOutbound,
		CreatedAt:  d.now(),
	}); err != nil {
		log.WarnContext(ctx, config.MsgHistoryFailed, config.LogKeyTicket, ticket.ID, config.LogKeyError, err)
	}

	return model.DispatchOutcome{ContactID: c.RecipientID, Status: model.OutcomeSent, DeliveryID: deliveryID}
}

// resolveChannel prefers the tenant's configured channel when it is connected,
// and falls back to the tenant's default channel.
func (d *Dispatcher) resolveChannel(ctx context.Context, log *slog.Logger, companyID int64, s model.BirthdaySettings) (model.Channel, error) {
	if s.ChannelID != nil {
		ch, err := d.Channels.FindByID(ctx, *s.ChannelID)
		if err == nil && ch.CompanyID == companyID && ch.Connected() {
			return ch, nil
		}
		log.WarnContext(ctx, config.MsgChannelFallback, config.LogKeyChannel, *s.ChannelID)
	}

	ch, err := d.Channels.FindDefault(ctx, companyID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return model.Channel{}, apperror.ChannelUnavailable(config.ErrChannelMissing, err)
		}
		return model.Channel{}, err
	}
	if !ch.Connected() {
		return model.Channel{}, apperror.ChannelUnavailable(config.ErrChannelDown, nil)
	}
	return ch, nil
}

// announce creates the day's announcement for a user birthday, when the
// tenant enabled announcements.
func (d *Dispatcher) announce(ctx context.Context, log *slog.Logger, s model.BirthdaySettings, u model.BirthdayCandidate, today time.Time) bool {
	if !s.CreateAnnouncementForUsers {
		log.DebugContext(ctx, config.MsgAnnouncementsOff, config.LogKeyUser, u.RecipientID)
		return false
	}

	data := map[string]any{"Name": u.Name, "Age": u.Age}
	bodyKey := config.TKeyAnnouncementBody
	if u.Age > 0 {
		bodyKey = config.TKeyAnnouncementBodyAge
	}

	a, err := d.Announcements.CreateForTenant(ctx, model.Announcement{
		SourceCompanyID: config.SystemCompanyID,
		TargetCompanyID: u.CompanyID,
		Subject:         d.Messages.Get(config.TKeyAnnouncementSubject, data),
		Body:            d.Messages.Get(bodyKey, data),
		ExpiresAt:       today.AddDate(0, 0, 1),
		CreatedAt:       d.now(),
	})
	if err != nil {
		log.ErrorContext(ctx, config.MsgAnnouncementFail, config.LogKeyUser, u.RecipientID, config.LogKeyError, err)
		return false
	}
	log.InfoContext(ctx, config.MsgAnnouncement, config.LogKeyUser, u.RecipientID)

	d.publish(ctx, log, u.CompanyID, config.EventCompanyAnnouncement, map[string]any{
		"action": config.EventActionCreate,
		"record": a,
	})
	return true
}

// publish is best-effort: failures are logged and dropped.
func (d *Dispatcher) publish(ctx context.Context, log *slog.Logger, companyID int64, event string, payload any) {
	if d.Realtime == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.PublishTimeout)
	defer cancel()
	if err := d.Realtime.PublishTenantEvent(pctx, companyID, event, payload); err != nil {
		log.WarnContext(ctx, config.MsgRealtimeFailed, config.LogKeyEvent, event, config.LogKeyError, err)
	}
}

// delay draws uniformly from [DelayMin, DelayMax].
func (d *Dispatcher) delay() time.Duration {
	lo, hi := d.DelayMin, d.DelayMax
	if hi <= lo {
		return lo
	}
	draw := d.Int64N
	if draw == nil {
		draw = rand.Int64N
	}
	return lo + time.Duration(draw(int64(hi-lo)+1))
}

func (d *Dispatcher) ttl() time.Duration {
	if d.DedupTTL <= 0 {
		return config.DedupTTL
	}
	return d.DedupTTL
}

func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	return clock.Sleep(ctx, dur)
}

func (d *Dispatcher) now() time.Time {
	if d.Clock == nil {
		return time.Now()
	}
	return d.Clock.Now()
}

func (d *Dispatcher) logger() *slog.Logger {
	l := d.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(config.LogKeyComponent, config.CompDispatcher)
}

func failed(contactID int64, err error) model.DispatchOutcome {
	return model.DispatchOutcome{
		ContactID: contactID,
		Status:    model.OutcomeFailed,
		Kind:      apperror.KindOf(err),
		Error:     err.Error(),
	}
}
