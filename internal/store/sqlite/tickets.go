package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/xid"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/port"
)

var (
	_ port.Ticketing        = (*TicketDB)(nil)
	_ port.AnnouncementSink = (*AnnouncementDB)(nil)
)

const ticketStatusOpen = "open"

// TicketDB keeps conversation tickets and their message history.
type TicketDB struct{ db *DB }

// FindOrCreateTicket returns the open ticket of the contact on the channel,
// opening one when none exists.
func (s *TicketDB) FindOrCreateTicket(ctx context.Context, contact model.Contact, channel model.Channel) (model.Ticket, error) {
	t := model.Ticket{CompanyID: contact.CompanyID, ContactID: contact.ID, ChannelID: channel.ID}

	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id FROM tickets
		 WHERE contact_id = ? AND channel_id = ? AND status = ?
		 ORDER BY created_at DESC LIMIT 1`,
		contact.ID, channel.ID, ticketStatusOpen,
	).Scan(&t.ID)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Ticket{}, queryErr("tickets.find_open", err)
	}

	t.ID = xid.New().String()
	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO tickets (id, company_id, contact_id, channel_id, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.CompanyID, t.ContactID, t.ChannelID, ticketStatusOpen, millis(s.db.now()),
	)
	if err != nil {
		return model.Ticket{}, queryErr("tickets.create", err)
	}
	return t, nil
}

func (s *TicketDB) RecordMessage(ctx context.Context, msg model.MessageRecord) error {
	created := msg.CreatedAt
	if created.IsZero() {
		created = s.db.now()
	}
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO messages (id, ticket_id, body, delivery_id, direction, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		xid.New().String(), msg.TicketID, msg.Body, msg.DeliveryID, msg.Direction, millis(created),
	)
	if err != nil {
		return queryErr("messages.create", err)
	}
	return nil
}

// Messages lists a ticket's history, oldest first.
func (s *TicketDB) Messages(ctx context.Context, ticketID string) ([]model.MessageRecord, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT ticket_id, body, delivery_id, direction, created_at FROM messages
		 WHERE ticket_id = ? ORDER BY created_at, id`, ticketID)
	if err != nil {
		return nil, queryErr("messages.list", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.MessageRecord
	for rows.Next() {
		var (
			m  model.MessageRecord
			at int64
		)
		if err := rows.Scan(&m.TicketID, &m.Body, &m.DeliveryID, &m.Direction, &at); err != nil {
			return nil, queryErr("messages.list", err)
		}
		m.CreatedAt = fromMillis(at)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("messages.list", err)
	}
	return out, nil
}

// AnnouncementDB stores tenant announcements.
type AnnouncementDB struct{ db *DB }

func (s *AnnouncementDB) CreateForTenant(ctx context.Context, a model.Announcement) (model.Announcement, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.db.now()
	}
	res, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO announcements (source_company_id, target_company_id, subject, body, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.SourceCompanyID, a.TargetCompanyID, a.Subject, a.Body, millis(a.ExpiresAt), millis(a.CreatedAt),
	)
	if err != nil {
		return model.Announcement{}, queryErr("announcements.create", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return model.Announcement{}, queryErr("announcements.create", err)
	}
	return a, nil
}

// CleanExpired deletes at most limit announcements whose expiry is not after now.
func (s *AnnouncementDB) CleanExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	res, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM announcements WHERE id IN (
		   SELECT id FROM announcements WHERE expires_at <= ? ORDER BY expires_at, id LIMIT ?
		 )`,
		millis(now), limit,
	)
	if err != nil {
		return 0, queryErr("announcements.clean_expired", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, queryErr("announcements.clean_expired", err)
	}
	return int(n), nil
}

// ListForTenant returns the tenant's announcements, newest first.
func (s *AnnouncementDB) ListForTenant(ctx context.Context, companyID int64) ([]model.Announcement, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, source_company_id, target_company_id, subject, body, expires_at, created_at
		 FROM announcements WHERE target_company_id = ? ORDER BY id DESC`, companyID)
	if err != nil {
		return nil, queryErr("announcements.list", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Announcement
	for rows.Next() {
		var (
			a                  model.Announcement
			expires, createdAt int64
		)
		if err := rows.Scan(&a.ID, &a.SourceCompanyID, &a.TargetCompanyID, &a.Subject, &a.Body, &expires, &createdAt); err != nil {
			return nil, queryErr("announcements.list", err)
		}
		a.ExpiresAt, a.CreatedAt = fromMillis(expires), fromMillis(createdAt)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("announcements.list", err)
	}
	return out, nil
}
