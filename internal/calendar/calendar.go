// Package calendar renders a tenant's contact birthdays as an iCalendar feed.
package calendar

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tartampluch/birthday-sync/internal/clock"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/messages"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/port"
)

// Entry is a contact birthday as listed next to the feed.
type Entry struct {
	ContactID      int64     `json:"contactId"`
	Name           string    `json:"name"`
	DateOfBirth    time.Time `json:"dateOfBirth"`
	NextOccurrence time.Time `json:"nextOccurrence"`
	AgeNext        int       `json:"ageNext"`
}

// Feed is a rendered calendar.
type Feed struct {
	ICS     []byte
	Entries []Entry
	// Today counts the birthdays falling on the reference day.
	Today int
}

// Builder reads a tenant's active contacts with a birth date and emits one
// all-day event per contact for the previous, current and next year.
type Builder struct {
	Contacts port.ContactRepository
	Clock    clock.Clock
	Location *time.Location
	Messages *messages.Catalog
	Logger   *slog.Logger

	// Reminder is an ISO 8601 duration trigger. Empty means no alarm.
	Reminder string
	PageSize int
}

// Build renders the feed of one tenant. Entries are sorted by next occurrence.
func (b *Builder) Build(ctx context.Context, companyID int64) (Feed, error) {
	start := time.Now()
	log := b.logger().With(config.LogKeyCompany, companyID)

	cal := ical.NewCalendar()
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, config.ICalCalName)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	refresh := ical.NewProp(config.PropRefresh)
	refresh.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refresh)

	// Birthdays follow the reference calendar; only DTSTAMP is UTC.
	now := b.now().In(b.location())
	stamp := ical.NewProp(config.PropDTStamp)
	stamp.SetDateTime(now.UTC())

	var feed Feed
	var cursor int64
	limit := b.pageSize()
	for {
		if err := ctx.Err(); err != nil {
			return Feed{}, err
		}
		batch, err := b.Contacts.ListActiveWithBirthDate(ctx, companyID, cursor, limit)
		if err != nil {
			return Feed{}, err
		}
		for _, c := range batch {
			cursor = c.ID
			if c.CompanyID != companyID || !c.Active || c.BirthDate == nil {
				continue
			}
			birth := *c.BirthDate
			next, age := NextOccurrence(now, birth)
			feed.Entries = append(feed.Entries, Entry{
				ContactID:      c.ID,
				Name:           c.Name,
				DateOfBirth:    birth,
				NextOccurrence: next,
				AgeNext:        age,
			})

			events, isToday := b.events(companyID, c, now)
			if isToday {
				feed.Today++
				log.DebugContext(ctx, config.MsgBdayToday,
					config.LogKeyContact, c.ID,
					config.LogKeyDOB, birth.Format(config.DateFormatISO),
				)
			}
			for _, e := range events {
				e.Props.Set(stamp)
				cal.Children = append(cal.Children, e.Component)
			}
		}
		if len(batch) < limit {
			break
		}
	}

	sort.SliceStable(feed.Entries, func(i, j int) bool {
		return feed.Entries[i].NextOccurrence.Before(feed.Entries[j].NextOccurrence)
	})

	if len(cal.Children) == 0 {
		// An empty VCALENDAR is still a valid feed.
		feed.ICS = []byte(config.StubVCalendar)
		return feed, nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return Feed{}, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}
	feed.ICS = buf.Bytes()

	log.InfoContext(ctx, config.MsgCalendarBuilt,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyCount, len(feed.Entries)),
			slog.Int(config.LogKeyToday, feed.Today),
		),
		config.LogKeyDuration, time.Since(start).Milliseconds(),
	)
	return feed, nil
}

// NextOccurrence returns the next birthday on or after now's day, in now's
// location, and the age reached on it. Feb 29 rolls to Mar 1 in common years.
func NextOccurrence(now, birth time.Time) (time.Time, int) {
	loc := now.Location()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	candidate := time.Date(now.Year(), birth.Month(), birth.Day(), 0, 0, 0, 0, loc)
	if candidate.Before(todayStart) {
		candidate = time.Date(now.Year()+1, birth.Month(), birth.Day(), 0, 0, 0, 0, loc)
	}
	return candidate, candidate.Year() - birth.Year()
}

// events builds the previous, current and next year events, skipping years
// before the contact was born.
func (b *Builder) events(companyID int64, c model.Contact, now time.Time) ([]*ical.Event, bool) {
	birth := *c.BirthDate
	loc := now.Location()
	ty, tm, td := now.Date()

	var events []*ical.Event
	isToday := false
	for _, y := range []int{ty - 1, ty, ty + 1} {
		if y < birth.Year() {
			continue
		}
		age := y - birth.Year()

		event := ical.NewEvent()
		event.Props.SetText(config.PropUID, fmt.Sprintf(config.FormatUID, companyID, c.ID, y, config.ICalDomain))

		summary := b.summary(c.Name, age)
		event.Props.SetText(config.PropSummary, summary)

		day := time.Date(y, birth.Month(), birth.Day(), 0, 0, 0, 0, loc)
		if y == ty && day.Month() == tm && day.Day() == td {
			isToday = true
		}
		start := ical.NewProp(config.PropDTStart)
		start.SetDate(day)
		event.Props.Set(start)

		if b.Reminder != "" {
			addAlarm(event, b.Reminder, summary)
		}
		events = append(events, event)
	}
	return events, isToday
}

func (b *Builder) summary(name string, age int) string {
	data := map[string]any{"Name": name, "Age": age}
	if b.Messages == nil {
		if age > 0 {
			return fmt.Sprintf(config.FallbackSummaryAge, name, age)
		}
		return fmt.Sprintf(config.FallbackSummary, name)
	}
	if age > 0 {
		return b.Messages.Get(config.TKeyEvtSummaryAge, data)
	}
	return b.Messages.Get(config.TKeyEvtSummary, data)
}

// addAlarm appends a DISPLAY alarm to the event.
func addAlarm(event *ical.Event, trigger, description string) {
	alarm := ical.NewComponent(config.ICalComponentAlarm)
	alarm.Props.SetText(config.PropAction, config.ICalActionDisplay)
	alarm.Props.SetText(config.PropDescr, description)

	// Set verbatim to avoid a VALUE=TEXT parameter.
	trig := ical.NewProp(config.PropTrigger)
	trig.Value = trigger
	alarm.Props.Set(trig)

	event.Children = append(event.Children, alarm)
}

func (b *Builder) now() time.Time {
	if b.Clock == nil {
		return time.Now()
	}
	return b.Clock.Now()
}

func (b *Builder) location() *time.Location {
	if b.Location == nil {
		return time.UTC
	}
	return b.Location
}

func (b *Builder) pageSize() int {
	if b.PageSize <= 0 {
		return config.DefaultListLimit
	}
	return b.PageSize
}

func (b *Builder) logger() *slog.Logger {
	l := b.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(config.LogKeyComponent, config.CompCalendar)
}
