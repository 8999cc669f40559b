package model

import "time"

// Contact is a tenant-owned address book entry.
// Number is a canonical phone (country code + area + subscriber, digits only).
type Contact struct {
	ID        int64
	CompanyID int64
	Number    string
	Name      string
	BirthDate *time.Time // stored at a neutral hour of day, nil when unknown
	Active    bool
	ChannelID *int64 // channel that last talked to the contact, optional
}

// NewContact carries the fields of a contact created by a reconciliation run.
type NewContact struct {
	CompanyID int64
	Number    string
	Name      string
	BirthDate *time.Time
}

// ContactUpdate holds the fields to change. Nil fields are left untouched.
type ContactUpdate struct {
	Name      *string
	BirthDate *time.Time
}

// Empty reports whether applying the update would be a no-op.
func (u ContactUpdate) Empty() bool {
	return u.Name == nil && u.BirthDate == nil
}

// User is an operator account of a tenant.
type User struct {
	ID        int64
	CompanyID int64
	Name      string
	BirthDate *time.Time
}

// ExternalRecord is one contact as read from an external source, before normalization.
type ExternalRecord struct {
	ExternalID string
	Name       string
	// PhoneCandidates are ordered by priority: mobile before landline.
	PhoneCandidates []string
	BirthDate       string
	Active          bool
}

// Page is one page of an external listing.
type Page struct {
	Records    []ExternalRecord
	TotalPages int
}
