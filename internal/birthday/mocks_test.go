package birthday_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/model"
)

type MockSender struct{ mock.Mock }

func (m *MockSender) Send(ctx context.Context, ch model.Channel, t model.Ticket, body string) (string, error) {
	args := m.Called(ctx, ch, t, body)
	return args.String(0), args.Error(1)
}

type MockTicketing struct{ mock.Mock }

func (m *MockTicketing) FindOrCreateTicket(ctx context.Context, c model.Contact, ch model.Channel) (model.Ticket, error) {
	args := m.Called(ctx, c, ch)
	return args.Get(0).(model.Ticket), args.Error(1)
}

func (m *MockTicketing) RecordMessage(ctx context.Context, msg model.MessageRecord) error {
	return m.Called(ctx, msg).Error(0)
}

type MockChannels struct{ mock.Mock }

func (m *MockChannels) FindByID(ctx context.Context, id int64) (model.Channel, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Channel), args.Error(1)
}

func (m *MockChannels) FindDefault(ctx context.Context, companyID int64) (model.Channel, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).(model.Channel), args.Error(1)
}

type MockAnnouncements struct{ mock.Mock }

func (m *MockAnnouncements) CreateForTenant(ctx context.Context, a model.Announcement) (model.Announcement, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(model.Announcement), args.Error(1)
}

func (m *MockAnnouncements) CleanExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	args := m.Called(ctx, now, limit)
	return args.Int(0), args.Error(1)
}

type MockRealtime struct{ mock.Mock }

func (m *MockRealtime) PublishTenantEvent(ctx context.Context, companyID int64, event string, payload any) error {
	return m.Called(ctx, companyID, event, payload).Error(0)
}

// MockUsers lists users using `testify/mock`.
type MockUsers struct{ mock.Mock }

func (m *MockUsers) ListWithBirthDate(ctx context.Context, companyID, cursor int64, limit int) ([]model.User, error) {
	args := m.Called(ctx, companyID, cursor, limit)
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUsers) FindByID(ctx context.Context, id int64) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

// fakeContacts serves contacts by ascending id, honouring cursor and limit.
type fakeContacts struct {
	contacts  []model.Contact
	listCalls []int64
}

func (f *fakeContacts) ListActiveWithBirthDate(_ context.Context, companyID, cursor int64, limit int) ([]model.Contact, error) {
	f.listCalls = append(f.listCalls, cursor)
	var out []model.Contact
	for _, c := range f.contacts {
		if c.CompanyID == companyID && c.ID > cursor && c.BirthDate != nil {
			out = append(out, c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeContacts) FindByID(_ context.Context, id int64) (model.Contact, error) {
	for _, c := range f.contacts {
		if c.ID == id {
			return c, nil
		}
	}
	return model.Contact{}, apperror.NotFound("contact", "")
}

func (f *fakeContacts) FindByPhone(context.Context, int64, string) (model.Contact, error) {
	return model.Contact{}, apperror.NotFound("contact", "")
}

func (f *fakeContacts) Create(context.Context, model.NewContact) (model.Contact, error) {
	panic("not used")
}

func (f *fakeContacts) Update(context.Context, int64, model.ContactUpdate) error { panic("not used") }

func (f *fakeContacts) Rename(context.Context, int64, string) error { panic("not used") }

func (f *fakeContacts) ListAfter(context.Context, int64, int) ([]model.Contact, error) {
	return nil, nil
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	cancel context.CancelFunc // cancels on first sleep when set
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return ctx.Err()
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	return &t
}
