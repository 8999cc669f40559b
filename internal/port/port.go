// Package port declares the collaborators the reconciliation and dispatch core
// depends on. Adapters live in store/sqlite, notify, dedup and source.
package port

import (
	"context"
	"time"

	"github.com/tartampluch/birthday-sync/internal/model"
)

// ContactRepository persists tenant contacts. Each call is individually atomic.
type ContactRepository interface {
	// FindByPhone returns an apperror NotFound error when no contact matches.
	FindByPhone(ctx context.Context, companyID int64, number string) (model.Contact, error)
	FindByID(ctx context.Context, id int64) (model.Contact, error)
	Create(ctx context.Context, c model.NewContact) (model.Contact, error)
	Update(ctx context.Context, id int64, u model.ContactUpdate) error
	// ListActiveWithBirthDate pages by ascending id after cursor.
	ListActiveWithBirthDate(ctx context.Context, companyID, cursor int64, limit int) ([]model.Contact, error)
	// ListAfter pages every contact of every tenant by ascending id after cursor.
	ListAfter(ctx context.Context, cursor int64, limit int) ([]model.Contact, error)
	Rename(ctx context.Context, id int64, name string) error
}

type UserRepository interface {
	ListWithBirthDate(ctx context.Context, companyID, cursor int64, limit int) ([]model.User, error)
	FindByID(ctx context.Context, id int64) (model.User, error)
}

type IntegrationRepository interface {
	FindByID(ctx context.Context, id int64) (model.IntegrationConfig, error)
	ListByType(ctx context.Context, integrationType string) ([]model.IntegrationConfig, error)
	UpdateLedger(ctx context.Context, id int64, l model.Ledger) error
}

type TenantRepository interface {
	ListActive(ctx context.Context) ([]model.Tenant, error)
	BirthdaySettings(ctx context.Context, companyID int64) (model.BirthdaySettings, error)
}

type ChannelRepository interface {
	FindByID(ctx context.Context, id int64) (model.Channel, error)
	// FindDefault returns the tenant's default connected channel.
	FindDefault(ctx context.Context, companyID int64) (model.Channel, error)
}

// DedupStore is the single source of truth for "already sent today".
type DedupStore interface {
	// Claim atomically sets key if absent. True means the caller owns the key.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// NotificationSender delivers a message body. Failures carry the
// ChannelUnavailable, Rejected or Transient kinds.
type NotificationSender interface {
	Send(ctx context.Context, channel model.Channel, ticket model.Ticket, body string) (deliveryID string, err error)
}

type Ticketing interface {
	FindOrCreateTicket(ctx context.Context, contact model.Contact, channel model.Channel) (model.Ticket, error)
	RecordMessage(ctx context.Context, msg model.MessageRecord) error
}

type AnnouncementSink interface {
	CreateForTenant(ctx context.Context, a model.Announcement) (model.Announcement, error)
	// CleanExpired removes at most limit announcements expired at now.
	CleanExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// RealtimeNotifier fans tenant events out to connected clients. Best-effort.
type RealtimeNotifier interface {
	PublishTenantEvent(ctx context.Context, companyID int64, event string, payload any) error
}

// ContactSource reads contacts from one external integration.
type ContactSource interface {
	ListPage(ctx context.Context, page int) (model.Page, error)
	ListByPhone(ctx context.Context, digits string) ([]model.ExternalRecord, error)
}

// SourceFactory builds the source for an integration from its validated credentials.
type SourceFactory interface {
	NewSource(integration model.IntegrationConfig, creds model.Credentials) (ContactSource, error)
}
