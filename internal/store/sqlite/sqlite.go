// Package sqlite implements the repository ports and a durable Dedup Store on
// an embedded SQLite database (modernc.org/sqlite, no cgo).
package sqlite

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tartampluch/birthday-sync/internal/clock"
	"github.com/tartampluch/birthday-sync/internal/config"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"
)

// DB owns the connection pool. Repositories are views over it.
type DB struct {
	conn  *sql.DB
	clock clock.Clock
}

// pragmas are applied to every connection the driver opens.
var pragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"journal_mode(WAL)",
}

// dsn carries the pragmas in the connection string so a connection reopened by
// database/sql gets them too.
func dsn(path string) string {
	q := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		q = append(q, "_pragma="+p)
	}
	return "file:" + path + "?" + strings.Join(q, "&")
}

// Open connects to path (":memory:" for an in-memory database), applies the
// pragmas and migrates the schema.
func Open(path string, c clock.Clock) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrDBOpen, err)
	}
	// Single writer to avoid SQLITE_BUSY. Every connection to :memory: is
	// also a distinct database.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrDBOpen, err)
	}
	if c == nil {
		c = clock.RealClock{}
	}
	db := &DB{conn: conn, clock: c}
	if err := db.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrDBMigrate, err)
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Contacts() *ContactDB           { return &ContactDB{db} }
func (db *DB) Users() *UserDB                 { return &UserDB{db} }
func (db *DB) Tenants() *TenantDB             { return &TenantDB{db} }
func (db *DB) Channels() *ChannelDB           { return &ChannelDB{db} }
func (db *DB) Integrations() *IntegrationDB   { return &IntegrationDB{db} }
func (db *DB) Tickets() *TicketDB             { return &TicketDB{db} }
func (db *DB) Announcements() *AnnouncementDB { return &AnnouncementDB{db} }
func (db *DB) Dedup() *DedupDB                { return &DedupDB{db} }

// schema is idempotent. Timestamps are unix milliseconds, birth dates are
// calendar days (YYYY-MM-DD).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		id     INTEGER PRIMARY KEY,
		name   TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS birthday_settings (
		company_id              INTEGER PRIMARY KEY REFERENCES companies(id),
		user_birthday_enabled   INTEGER NOT NULL DEFAULT 0,
		contact_birthday_enabled INTEGER NOT NULL DEFAULT 0,
		announce_users          INTEGER NOT NULL DEFAULT 0,
		channel_id              INTEGER,
		contact_message         TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id         INTEGER PRIMARY KEY,
		company_id INTEGER NOT NULL REFERENCES companies(id),
		name       TEXT NOT NULL,
		birth_date TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS channels (
		id         INTEGER PRIMARY KEY,
		company_id INTEGER NOT NULL REFERENCES companies(id),
		name       TEXT NOT NULL,
		status     TEXT NOT NULL,
		is_default INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS contacts (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL REFERENCES companies(id),
		number     TEXT NOT NULL,
		name       TEXT NOT NULL,
		birth_date TEXT,
		active     INTEGER NOT NULL DEFAULT 1,
		channel_id INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (company_id, number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_birthdays ON contacts(company_id, active, id) WHERE birth_date IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS integrations (
		id                 INTEGER PRIMARY KEY,
		company_id         INTEGER NOT NULL REFERENCES companies(id),
		type               TEXT NOT NULL,
		name               TEXT NOT NULL,
		json_content       TEXT NOT NULL DEFAULT '',
		last_sync_at       INTEGER,
		last_updated_count INTEGER NOT NULL DEFAULT 0,
		last_error         TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_integrations_type ON integrations(type, id)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id         TEXT PRIMARY KEY,
		company_id INTEGER NOT NULL,
		contact_id INTEGER NOT NULL REFERENCES contacts(id),
		channel_id INTEGER NOT NULL,
		status     TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_open ON tickets(contact_id, channel_id, status)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id          TEXT PRIMARY KEY,
		ticket_id   TEXT NOT NULL REFERENCES tickets(id),
		body        TEXT NOT NULL,
		delivery_id TEXT NOT NULL,
		direction   TEXT NOT NULL,
		created_at  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS announcements (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		source_company_id INTEGER NOT NULL,
		target_company_id INTEGER NOT NULL,
		subject           TEXT NOT NULL,
		body              TEXT NOT NULL,
		expires_at        INTEGER NOT NULL,
		created_at        INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_announcements_expiry ON announcements(expires_at)`,
	`CREATE TABLE IF NOT EXISTS dedup_keys (
		key        TEXT PRIMARY KEY,
		expires_at INTEGER NOT NULL
	)`,
}

func (db *DB) migrate() error {
	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) now() time.Time {
	return db.clock.Now()
}

// queryErr wraps a driver error with the failing operation.
func queryErr(op string, err error) error {
	return fmt.Errorf("%s (%s): %w", config.ErrDBQuery, op, err)
}

func idText(v int64) string {
	return strconv.FormatInt(v, 10)
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// dayText stores only the calendar day of a birth date.
func dayText(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(config.DateFormatISO), Valid: true}
}

// parseDay reads a stored birth date back at the neutral hour.
func parseDay(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	d, err := time.Parse(config.DateFormatISO, s.String)
	if err != nil {
		return nil
	}
	t := d.Add(config.NeutralHourOfDay * time.Hour)
	return &t
}

func nullID(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func idPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	x := v.Int64
	return &x
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
