package model

import (
	"time"

	"github.com/tartampluch/birthday-sync/internal/config"
)

type Tenant struct {
	ID     int64
	Name   string
	Active bool
}

// BirthdaySettings are a tenant's birthday feature flags.
type BirthdaySettings struct {
	UserBirthdayEnabled        bool
	ContactBirthdayEnabled     bool
	CreateAnnouncementForUsers bool
	ChannelID                  *int64
	ContactBirthdayMessage     string
}

// Channel is an outbound messaging connection (e.g. a WhatsApp session).
type Channel struct {
	ID        int64
	CompanyID int64
	Name      string
	Status    string
	IsDefault bool
}

// Connected reports whether the channel can deliver right now.
func (c Channel) Connected() bool {
	return c.Status == config.ChannelStatusConnected
}

type Ticket struct {
	ID        string
	CompanyID int64
	ContactID int64
	ChannelID int64
}

// MessageRecord is a message appended to a ticket's history.
type MessageRecord struct {
	TicketID   string
	Body       string
	DeliveryID string
	Direction  string
	CreatedAt  time.Time
}

type Announcement struct {
	ID              int64
	SourceCompanyID int64
	TargetCompanyID int64
	Subject         string
	Body            string
	ExpiresAt       time.Time
	CreatedAt       time.Time
}
