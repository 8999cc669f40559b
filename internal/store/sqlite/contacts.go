package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/port"
)

var _ port.ContactRepository = (*ContactDB)(nil)

// ContactDB stores tenant contacts. (company_id, number) is unique.
type ContactDB struct{ db *DB }

const contactColumns = `id, company_id, number, name, birth_date, active, channel_id`

func scanContact(row interface{ Scan(...any) error }) (model.Contact, error) {
	var (
		c       model.Contact
		birth   sql.NullString
		active  int
		channel sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.CompanyID, &c.Number, &c.Name, &birth, &active, &channel); err != nil {
		return model.Contact{}, err
	}
	c.BirthDate = parseDay(birth)
	c.Active = active == 1
	c.ChannelID = idPtr(channel)
	return c, nil
}

func (s *ContactDB) FindByPhone(ctx context.Context, companyID int64, number string) (model.Contact, error) {
	c, err := scanContact(s.db.conn.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE company_id = ? AND number = ?`,
		companyID, number,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, apperror.NotFound("contact", number)
	}
	if err != nil {
		return model.Contact{}, queryErr("contacts.find_by_phone", err)
	}
	return c, nil
}

func (s *ContactDB) FindByID(ctx context.Context, contactID int64) (model.Contact, error) {
	c, err := scanContact(s.db.conn.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ?`, contactID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, apperror.NotFound("contact", idText(contactID))
	}
	if err != nil {
		return model.Contact{}, queryErr("contacts.find_by_id", err)
	}
	return c, nil
}

// Create inserts an active contact. A second contact with the same number in
// the same tenant is rejected.
func (s *ContactDB) Create(ctx context.Context, n model.NewContact) (model.Contact, error) {
	now := millis(s.db.now())
	res, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO contacts (company_id, number, name, birth_date, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?)`,
		n.CompanyID, n.Number, n.Name, dayText(n.BirthDate), now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return model.Contact{}, apperror.Unexpected(config.ErrDuplicateContact+" "+n.Number, err)
		}
		return model.Contact{}, queryErr("contacts.create", err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return model.Contact{}, queryErr("contacts.create", err)
	}
	return s.FindByID(ctx, newID)
}

// Update writes the non-nil fields of u.
func (s *ContactDB) Update(ctx context.Context, contactID int64, u model.ContactUpdate) error {
	if u.Empty() {
		return nil
	}
	sets := []string{"updated_at = ?"}
	args := []any{millis(s.db.now())}
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.BirthDate != nil {
		sets = append(sets, "birth_date = ?")
		args = append(args, dayText(u.BirthDate))
	}
	args = append(args, contactID)

	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE contacts SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return queryErr("contacts.update", err)
	}
	return requireRow(res, "contact", contactID)
}

func (s *ContactDB) Rename(ctx context.Context, contactID int64, name string) error {
	return s.Update(ctx, contactID, model.ContactUpdate{Name: &name})
}

func (s *ContactDB) ListActiveWithBirthDate(ctx context.Context, companyID, cursor int64, limit int) ([]model.Contact, error) {
	return s.list(ctx, "contacts.list_birthdays",
		`SELECT `+contactColumns+` FROM contacts
		 WHERE company_id = ? AND active = 1 AND birth_date IS NOT NULL AND id > ?
		 ORDER BY id LIMIT ?`,
		companyID, cursor, limit,
	)
}

func (s *ContactDB) ListAfter(ctx context.Context, cursor int64, limit int) ([]model.Contact, error) {
	return s.list(ctx, "contacts.list_after",
		`SELECT `+contactColumns+` FROM contacts WHERE id > ? ORDER BY id LIMIT ?`,
		cursor, limit,
	)
}

// SetActive toggles a contact. Inactive contacts get no birthday greeting.
func (s *ContactDB) SetActive(ctx context.Context, contactID int64, active bool) error {
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE contacts SET active = ?, updated_at = ? WHERE id = ?`,
		boolInt(active), millis(s.db.now()), contactID,
	)
	if err != nil {
		return queryErr("contacts.set_active", err)
	}
	return requireRow(res, "contact", contactID)
}

func (s *ContactDB) list(ctx context.Context, op, query string, args ...any) ([]model.Contact, error) {
	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, queryErr(op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr(op, err)
	}
	return out, nil
}

// requireRow turns a zero-row update into NotFound.
func requireRow(res sql.Result, resource string, rowID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return queryErr(resource+".rows_affected", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, idText(rowID))
	}
	return nil
}
