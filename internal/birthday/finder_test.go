package birthday_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/birthday-sync/internal/birthday"
	"github.com/tartampluch/birthday-sync/internal/dedup"
	"github.com/tartampluch/birthday-sync/internal/model"
)

var saoPaulo, _ = time.LoadLocation("America/Sao_Paulo")

// today is October 19 2026 in São Paulo.
var today = time.Date(2026, 10, 19, 0, 0, 0, 0, saoPaulo)

func TestDedupKey(t *testing.T) {
	assert.Equal(t, "birthday:sent:3:42:20261019", birthday.DedupKey(3, 42, today))
}

func TestFinder_DisabledFeaturesAreNotQueried(t *testing.T) {
	users := new(MockUsers)
	contacts := &fakeContacts{}
	f := &birthday.Finder{Users: users, Contacts: contacts}

	u, c, err := f.Find(context.Background(), 3, model.BirthdaySettings{}, today)

	require.NoError(t, err)
	assert.Empty(t, u)
	assert.Empty(t, c)
	users.AssertNotCalled(t, "ListWithBirthDate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, contacts.listCalls)
}

func TestFinder_Users(t *testing.T) {
	users := new(MockUsers)
	users.On("ListWithBirthDate", mock.Anything, int64(3), int64(0), 500).Return([]model.User{
		{ID: 1, CompanyID: 3, Name: "Ana", BirthDate: date(1990, time.October, 19)},
		{ID: 2, CompanyID: 3, Name: "Bia", BirthDate: date(1990, time.October, 20)},
		{ID: 3, CompanyID: 3, Name: "Caio", BirthDate: date(2000, time.October, 19)},
	}, nil)

	f := &birthday.Finder{Users: users}
	u, _, err := f.Find(context.Background(), 3, model.BirthdaySettings{UserBirthdayEnabled: true}, today)

	require.NoError(t, err)
	require.Len(t, u, 2)
	assert.Equal(t, int64(1), u[0].RecipientID)
	assert.Equal(t, 36, u[0].Age)
	assert.Equal(t, model.CandidateUser, u[0].Kind)
	assert.Equal(t, 26, u[1].Age)
}

func TestFinder_ContactsPagedAndAnnotated(t *testing.T) {
	contacts := &fakeContacts{contacts: []model.Contact{
		{ID: 1, CompanyID: 3, Name: "A", BirthDate: date(1980, time.October, 19), Active: true},
		{ID: 2, CompanyID: 3, Name: "B", BirthDate: date(1981, time.January, 1), Active: true},
		{ID: 3, CompanyID: 3, Name: "C", BirthDate: date(1982, time.October, 19), Active: true},
		{ID: 4, CompanyID: 9, Name: "Other tenant", BirthDate: date(1983, time.October, 19), Active: true},
		{ID: 5, CompanyID: 3, Name: "E", BirthDate: date(1984, time.October, 19), Active: false},
	}}
	store := dedup.NewMemory(nil)
	_, err := store.Claim(context.Background(), birthday.DedupKey(3, 3, today), time.Hour)
	require.NoError(t, err)

	f := &birthday.Finder{Contacts: contacts, Dedup: store, PageSize: 2}
	_, c, err := f.Find(context.Background(), 3, model.BirthdaySettings{ContactBirthdayEnabled: true}, today)

	require.NoError(t, err)
	require.Len(t, c, 2)
	assert.Equal(t, int64(1), c[0].RecipientID)
	assert.False(t, c[0].AlreadyNotifiedToday)
	assert.Equal(t, int64(3), c[1].RecipientID)
	assert.True(t, c[1].AlreadyNotifiedToday)
	assert.Equal(t, 44, c[1].Age)
	assert.Equal(t, []int64{0, 2, 5}, contacts.listCalls, "cursor advances by last id")
}

func TestFinder_ReferenceDayNotUTCDay(t *testing.T) {
	contacts := &fakeContacts{contacts: []model.Contact{
		{ID: 1, CompanyID: 3, BirthDate: date(1990, time.October, 19), Active: true},
	}}
	f := &birthday.Finder{Contacts: contacts}

	// 23:30 on Oct 19 in São Paulo is already Oct 20 in UTC.
	spDay := time.Date(2026, 10, 19, 0, 0, 0, 0, saoPaulo)
	_, c, err := f.Find(context.Background(), 3, model.BirthdaySettings{ContactBirthdayEnabled: true}, spDay)
	require.NoError(t, err)
	assert.Len(t, c, 1)
}
