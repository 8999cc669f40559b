package calendar_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/birthday-sync/internal/calendar"
	"github.com/tartampluch/birthday-sync/internal/clock"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/messages"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/port"
)

// contactList serves ListActiveWithBirthDate from a slice.
type contactList struct {
	port.ContactRepository
	contacts []model.Contact
}

func (c *contactList) ListActiveWithBirthDate(_ context.Context, companyID, cursor int64, limit int) ([]model.Contact, error) {
	var out []model.Contact
	for _, ct := range c.contacts {
		if ct.CompanyID == companyID && ct.ID > cursor {
			out = append(out, ct)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func born(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	return &t
}

func builder(now time.Time, contacts ...model.Contact) *calendar.Builder {
	return &calendar.Builder{
		Contacts: &contactList{contacts: contacts},
		Clock:    clock.Fixed{T: now},
		Location: time.UTC,
		Messages: messages.New("en"),
	}
}

func TestBuild_GeneratesYearRange(t *testing.T) {
	b := builder(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		model.Contact{ID: 1, CompanyID: 3, Name: "Range Test", BirthDate: born(1990, 12, 31), Active: true})

	feed, err := b.Build(context.Background(), 3)
	require.NoError(t, err)

	ics := string(feed.ICS)
	assert.Contains(t, ics, "DTSTART;VALUE=DATE:20241231")
	assert.Contains(t, ics, "DTSTART;VALUE=DATE:20251231")
	assert.Contains(t, ics, "DTSTART;VALUE=DATE:20261231")
	assert.Equal(t, 3, strings.Count(ics, "BEGIN:VEVENT"))
	assert.Contains(t, ics, "UID:3-1-2025@"+config.ICalDomain)
	assert.Contains(t, ics, "SUMMARY:Birthday: Range Test (35)")
	assert.NotContains(t, ics, "BEGIN:VALARM")
}

func TestBuild_BornThisYear(t *testing.T) {
	b := builder(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		model.Contact{ID: 1, CompanyID: 3, Name: "Baby", BirthDate: born(2025, 5, 1), Active: true})

	feed, err := b.Build(context.Background(), 3)
	require.NoError(t, err)

	ics := string(feed.ICS)
	assert.NotContains(t, ics, "DTSTART;VALUE=DATE:20240501", "no event before birth")
	assert.Contains(t, ics, "SUMMARY:Birthday: Baby\r\n")
	assert.Contains(t, ics, "SUMMARY:Birthday: Baby (1)")
	assert.Equal(t, 2, strings.Count(ics, "BEGIN:VEVENT"))
}

func TestBuild_TodayAndOrdering(t *testing.T) {
	b := builder(time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC),
		model.Contact{ID: 1, CompanyID: 3, Name: "Later", BirthDate: born(1980, 1, 2), Active: true},
		model.Contact{ID: 2, CompanyID: 3, Name: "Today", BirthDate: born(1990, 6, 15), Active: true},
		model.Contact{ID: 3, CompanyID: 3, Name: "Inactive", BirthDate: born(1990, 6, 15), Active: false},
		model.Contact{ID: 4, CompanyID: 9, Name: "Other tenant", BirthDate: born(1990, 6, 15), Active: true},
	)
	b.PageSize = 1

	feed, err := b.Build(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 1, feed.Today)
	require.Len(t, feed.Entries, 2)
	assert.Equal(t, "Today", feed.Entries[0].Name)
	assert.Equal(t, 35, feed.Entries[0].AgeNext)
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), feed.Entries[1].NextOccurrence)
}

func TestBuild_Empty(t *testing.T) {
	feed, err := builder(time.Now()).Build(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, config.StubVCalendar, string(feed.ICS))
	assert.Empty(t, feed.Entries)
}

func TestBuild_WithReminder(t *testing.T) {
	b := builder(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		model.Contact{ID: 1, CompanyID: 3, Name: "Alarm Test", BirthDate: born(1990, 1, 1), Active: true})
	b.Reminder = "-P1D"

	feed, err := b.Build(context.Background(), 3)
	require.NoError(t, err)

	ics := string(feed.ICS)
	assert.Contains(t, ics, "BEGIN:VALARM")
	assert.Contains(t, ics, "TRIGGER:-P1D")
	assert.Contains(t, ics, "ACTION:DISPLAY")
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := builder(time.Now()).Build(ctx, 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNextOccurrence(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		birth    time.Time
		expected time.Time
		age      int
	}{
		{"PastThisYear", time.Date(1990, 1, 1, 12, 0, 0, 0, time.UTC), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 36},
		{"LaterThisYear", time.Date(1990, 12, 31, 12, 0, 0, 0, time.UTC), time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), 35},
		{"Today", time.Date(1990, 6, 15, 12, 0, 0, 0, time.UTC), time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), 35},
		{"LeaplingCommonYear", time.Date(2000, 2, 29, 12, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 26},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, age := calendar.NextOccurrence(now, tt.birth)
			assert.Equal(t, tt.expected, next)
			assert.Equal(t, tt.age, age)
		})
	}

	next, _ := calendar.NextOccurrence(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2000, 2, 29, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), next, "leap years keep Feb 29")
}
