package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/port"
)

var (
	_ port.UserRepository    = (*UserDB)(nil)
	_ port.TenantRepository  = (*TenantDB)(nil)
	_ port.ChannelRepository = (*ChannelDB)(nil)
)

// -----------------------------------------------------------------------------
// Tenants
// -----------------------------------------------------------------------------

type TenantDB struct{ db *DB }

// Save inserts or replaces a tenant.
func (s *TenantDB) Save(ctx context.Context, t model.Tenant) error {
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO companies (id, name, active) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, active = excluded.active`,
		t.ID, t.Name, boolInt(t.Active),
	)
	if err != nil {
		return queryErr("companies.save", err)
	}
	return nil
}

func (s *TenantDB) ListActive(ctx context.Context) ([]model.Tenant, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, name FROM companies WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, queryErr("companies.list_active", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Tenant
	for rows.Next() {
		t := model.Tenant{Active: true}
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, queryErr("companies.list_active", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("companies.list_active", err)
	}
	return out, nil
}

// BirthdaySettings returns the tenant's flags. A tenant without a settings
// row has every feature disabled.
func (s *TenantDB) BirthdaySettings(ctx context.Context, companyID int64) (model.BirthdaySettings, error) {
	var (
		bs                     model.BirthdaySettings
		users, contacts, annou int
		channel                sql.NullInt64
	)
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT user_birthday_enabled, contact_birthday_enabled, announce_users, channel_id, contact_message
		 FROM birthday_settings WHERE company_id = ?`, companyID,
	).Scan(&users, &contacts, &annou, &channel, &bs.ContactBirthdayMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BirthdaySettings{}, nil
	}
	if err != nil {
		return model.BirthdaySettings{}, queryErr("birthday_settings.get", err)
	}
	bs.UserBirthdayEnabled = users == 1
	bs.ContactBirthdayEnabled = contacts == 1
	bs.CreateAnnouncementForUsers = annou == 1
	bs.ChannelID = idPtr(channel)
	return bs, nil
}

func (s *TenantDB) SaveBirthdaySettings(ctx context.Context, companyID int64, bs model.BirthdaySettings) error {
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO birthday_settings
		   (company_id, user_birthday_enabled, contact_birthday_enabled, announce_users, channel_id, contact_message)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(company_id) DO UPDATE SET
		   user_birthday_enabled = excluded.user_birthday_enabled,
		   contact_birthday_enabled = excluded.contact_birthday_enabled,
		   announce_users = excluded.announce_users,
		   channel_id = excluded.channel_id,
		   contact_message = excluded.contact_message`,
		companyID,
		boolInt(bs.UserBirthdayEnabled),
		boolInt(bs.ContactBirthdayEnabled),
		boolInt(bs.CreateAnnouncementForUsers),
		nullID(bs.ChannelID),
		bs.ContactBirthdayMessage,
	)
	if err != nil {
		return queryErr("birthday_settings.save", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Users
// -----------------------------------------------------------------------------

type UserDB struct{ db *DB }

func (s *UserDB) Save(ctx context.Context, u model.User) error {
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO users (id, company_id, name, birth_date) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, birth_date = excluded.birth_date`,
		u.ID, u.CompanyID, u.Name, dayText(u.BirthDate),
	)
	if err != nil {
		return queryErr("users.save", err)
	}
	return nil
}

func (s *UserDB) ListWithBirthDate(ctx context.Context, companyID, cursor int64, limit int) ([]model.User, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, company_id, name, birth_date FROM users
		 WHERE company_id = ? AND birth_date IS NOT NULL AND id > ?
		 ORDER BY id LIMIT ?`,
		companyID, cursor, limit,
	)
	if err != nil {
		return nil, queryErr("users.list_birthdays", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, queryErr("users.list_birthdays", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("users.list_birthdays", err)
	}
	return out, nil
}

func (s *UserDB) FindByID(ctx context.Context, userID int64) (model.User, error) {
	u, err := scanUser(s.db.conn.QueryRowContext(ctx,
		`SELECT id, company_id, name, birth_date FROM users WHERE id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, apperror.NotFound("user", idText(userID))
	}
	if err != nil {
		return model.User{}, queryErr("users.find_by_id", err)
	}
	return u, nil
}

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u     model.User
		birth sql.NullString
	)
	if err := row.Scan(&u.ID, &u.CompanyID, &u.Name, &birth); err != nil {
		return model.User{}, err
	}
	u.BirthDate = parseDay(birth)
	return u, nil
}

// -----------------------------------------------------------------------------
// Channels
// -----------------------------------------------------------------------------

type ChannelDB struct{ db *DB }

func (s *ChannelDB) Save(ctx context.Context, ch model.Channel) error {
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO channels (id, company_id, name, status, is_default) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, status = excluded.status, is_default = excluded.is_default`,
		ch.ID, ch.CompanyID, ch.Name, ch.Status, boolInt(ch.IsDefault),
	)
	if err != nil {
		return queryErr("channels.save", err)
	}
	return nil
}

func (s *ChannelDB) FindByID(ctx context.Context, channelID int64) (model.Channel, error) {
	ch, err := scanChannel(s.db.conn.QueryRowContext(ctx,
		`SELECT id, company_id, name, status, is_default FROM channels WHERE id = ?`, channelID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Channel{}, apperror.NotFound("channel", idText(channelID))
	}
	if err != nil {
		return model.Channel{}, queryErr("channels.find_by_id", err)
	}
	return ch, nil
}

// FindDefault returns the tenant's default channel, whatever its status.
func (s *ChannelDB) FindDefault(ctx context.Context, companyID int64) (model.Channel, error) {
	ch, err := scanChannel(s.db.conn.QueryRowContext(ctx,
		`SELECT id, company_id, name, status, is_default FROM channels
		 WHERE company_id = ? AND is_default = 1 ORDER BY id LIMIT 1`, companyID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Channel{}, apperror.NotFound("default channel of company", idText(companyID))
	}
	if err != nil {
		return model.Channel{}, queryErr("channels.find_default", err)
	}
	return ch, nil
}

func scanChannel(row interface{ Scan(...any) error }) (model.Channel, error) {
	var (
		ch  model.Channel
		def int
	)
	if err := row.Scan(&ch.ID, &ch.CompanyID, &ch.Name, &ch.Status, &def); err != nil {
		return model.Channel{}, err
	}
	ch.IsDefault = def == 1
	return ch, nil
}
