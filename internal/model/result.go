package model

import (
	"time"

	"github.com/tartampluch/birthday-sync/internal/apperror"
)

// SyncResult is the outcome of one reconciliation run.
type SyncResult struct {
	RunID         string        `json:"runId"`
	IntegrationID int64         `json:"integrationId"`
	CompanyID     int64         `json:"companyId"`
	OK            bool          `json:"ok"`
	Message       string        `json:"message,omitempty"`
	Processed     int           `json:"processed"`
	Updated       int           `json:"updated"`
	Created       int           `json:"created"`
	Skipped       int           `json:"skipped"`
	LastError     string        `json:"lastError,omitempty"`
	Kind          apperror.Kind `json:"kind,omitempty"`
	LastSyncAt    time.Time     `json:"lastSyncAt"`
}

type CandidateKind string

const (
	CandidateUser    CandidateKind = "user"
	CandidateContact CandidateKind = "contact"
)

// BirthdayCandidate is a recipient whose birthday is today.
type BirthdayCandidate struct {
	RecipientID          int64
	Kind                 CandidateKind
	CompanyID            int64
	Name                 string
	Number               string
	ChannelID            *int64
	Age                  int
	BirthDate            time.Time
	AlreadyNotifiedToday bool
}

type OutcomeStatus string

const (
	OutcomeSent      OutcomeStatus = "sent"
	OutcomeDuplicate OutcomeStatus = "duplicate"
	OutcomeFailed    OutcomeStatus = "failed"
)

// DispatchOutcome is the result of one contact's send attempt.
type DispatchOutcome struct {
	ContactID  int64         `json:"contactId"`
	Status     OutcomeStatus `json:"status"`
	DeliveryID string        `json:"deliveryId,omitempty"`
	Kind       apperror.Kind `json:"kind,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// BirthdayRunResult aggregates one tenant's birthday run.
type BirthdayRunResult struct {
	CompanyID            int64             `json:"companyId"`
	UsersAnnounced       int               `json:"usersAnnounced"`
	ContactsNotified     int               `json:"contactsNotified"`
	ContactsSkippedDedup int               `json:"contactsSkippedDedup"`
	ContactsFailed       int               `json:"contactsFailed"`
	Outcomes             []DispatchOutcome `json:"outcomes,omitempty"`
	Error                string            `json:"error,omitempty"`
	Cancelled            bool              `json:"cancelled,omitempty"`
}

// Record folds a contact outcome into the counters.
func (r *BirthdayRunResult) Record(o DispatchOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case OutcomeSent:
		r.ContactsNotified++
	case OutcomeDuplicate:
		r.ContactsSkippedDedup++
	case OutcomeFailed:
		r.ContactsFailed++
	}
}

// ProbeResult is the outcome of a single-contact test against an integration.
type ProbeResult struct {
	Updated    bool          `json:"updated"`
	Created    bool          `json:"created"`
	Reason     string        `json:"reason"`
	Message    string        `json:"message"`
	ContactID  int64         `json:"contactId,omitempty"`
	ExternalID string        `json:"externalId,omitempty"`
	Kind       apperror.Kind `json:"kind,omitempty"`
}

// PingResult reports whether an integration's credentials work.
type PingResult struct {
	OK      bool          `json:"ok"`
	Message string        `json:"message"`
	Kind    apperror.Kind `json:"kind,omitempty"`
}

// CycleResult is the aggregate of one daily run.
type CycleResult struct {
	ID                   string              `json:"id"`
	StartedAt            time.Time           `json:"startedAt"`
	FinishedAt           time.Time           `json:"finishedAt"`
	Tenants              []BirthdayRunResult `json:"tenants"`
	Integrations         []SyncResult        `json:"integrations"`
	AnnouncementsRemoved int                 `json:"announcementsRemoved"`
	Cancelled            bool                `json:"cancelled,omitempty"`
}

// NameFixResult is the outcome of one contact name repair pass.
type NameFixResult struct {
	Processed  int   `json:"processed"`
	Updated    int   `json:"updated"`
	NextCursor int64 `json:"nextCursor"`
}
