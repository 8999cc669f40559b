package reconcile_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/port"
)

// fakeContacts is an in-memory contact repository.
type fakeContacts struct {
	mu       sync.Mutex
	nextID   int64
	contacts map[int64]model.Contact
	creates  int
	updates  int
}

func newFakeContacts(existing ...model.Contact) *fakeContacts {
	f := &fakeContacts{nextID: 1000, contacts: map[int64]model.Contact{}}
	for _, c := range existing {
		f.contacts[c.ID] = c
	}
	return f
}

func (f *fakeContacts) FindByPhone(_ context.Context, companyID int64, number string) (model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.contacts {
		if c.CompanyID == companyID && c.Number == number {
			return c, nil
		}
	}
	return model.Contact{}, apperror.NotFound("contact", number)
}

func (f *fakeContacts) FindByID(_ context.Context, id int64) (model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[id]
	if !ok {
		return model.Contact{}, apperror.NotFound("contact", fmt.Sprint(id))
	}
	return c, nil
}

func (f *fakeContacts) Create(_ context.Context, n model.NewContact) (model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.creates++
	c := model.Contact{ID: f.nextID, CompanyID: n.CompanyID, Number: n.Number, Name: n.Name, BirthDate: n.BirthDate, Active: true}
	f.contacts[c.ID] = c
	return c, nil
}

func (f *fakeContacts) Update(_ context.Context, id int64, u model.ContactUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.contacts[id]
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.BirthDate != nil {
		c.BirthDate = u.BirthDate
	}
	f.contacts[id] = c
	f.updates++
	return nil
}

func (f *fakeContacts) Rename(ctx context.Context, id int64, name string) error {
	return f.Update(ctx, id, model.ContactUpdate{Name: &name})
}

func (f *fakeContacts) ListActiveWithBirthDate(context.Context, int64, int64, int) ([]model.Contact, error) {
	return nil, nil
}

func (f *fakeContacts) ListAfter(context.Context, int64, int) ([]model.Contact, error) {
	return nil, nil
}

func (f *fakeContacts) get(id int64) model.Contact {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contacts[id]
}

// MockIntegrations records ledger writes using `testify/mock`.
type MockIntegrations struct {
	mock.Mock
}

func (m *MockIntegrations) FindByID(ctx context.Context, id int64) (model.IntegrationConfig, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.IntegrationConfig), args.Error(1)
}

func (m *MockIntegrations) ListByType(ctx context.Context, t string) ([]model.IntegrationConfig, error) {
	args := m.Called(ctx, t)
	return args.Get(0).([]model.IntegrationConfig), args.Error(1)
}

func (m *MockIntegrations) UpdateLedger(ctx context.Context, id int64, l model.Ledger) error {
	return m.Called(ctx, id, l).Error(0)
}

// fakeSource serves canned pages.
type fakeSource struct {
	mu        sync.Mutex
	pages     map[int]model.Page
	pageErrs  map[int][]error // consumed in order before the page is served
	byPhone   []model.ExternalRecord
	phoneArgs []string
	pageCalls []int
	panicOn   int
}

func (s *fakeSource) ListPage(_ context.Context, page int) (model.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageCalls = append(s.pageCalls, page)
	if s.panicOn == page {
		panic("boom")
	}
	if errs := s.pageErrs[page]; len(errs) > 0 {
		s.pageErrs[page] = errs[1:]
		return model.Page{}, errs[0]
	}
	return s.pages[page], nil
}

func (s *fakeSource) ListByPhone(_ context.Context, digits string) ([]model.ExternalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phoneArgs = append(s.phoneArgs, digits)
	return s.byPhone, nil
}

type fakeFactory struct {
	src port.ContactSource
}

func (f fakeFactory) NewSource(model.IntegrationConfig, model.Credentials) (port.ContactSource, error) {
	return f.src, nil
}

// recordingSleeper captures requested delays without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func dob(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	return &t
}
