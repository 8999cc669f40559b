package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/port"
)

var _ port.IntegrationRepository = (*IntegrationDB)(nil)

// IntegrationDB stores integration configs and their run ledger.
type IntegrationDB struct{ db *DB }

const integrationColumns = `id, company_id, type, name, json_content, last_sync_at, last_updated_count, last_error`

func scanIntegration(row interface{ Scan(...any) error }) (model.IntegrationConfig, error) {
	var (
		in   model.IntegrationConfig
		last sql.NullInt64
	)
	if err := row.Scan(&in.ID, &in.CompanyID, &in.Type, &in.Name, &in.JSONContent,
		&last, &in.LastUpdatedCount, &in.LastError); err != nil {
		return model.IntegrationConfig{}, err
	}
	if last.Valid {
		t := fromMillis(last.Int64)
		in.LastSyncAt = &t
	}
	return in, nil
}

// Save inserts or replaces the configuration part. The ledger is untouched.
func (s *IntegrationDB) Save(ctx context.Context, in model.IntegrationConfig) error {
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO integrations (id, company_id, type, name, json_content) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   company_id = excluded.company_id, type = excluded.type,
		   name = excluded.name, json_content = excluded.json_content`,
		in.ID, in.CompanyID, in.Type, in.Name, in.JSONContent,
	)
	if err != nil {
		return queryErr("integrations.save", err)
	}
	return nil
}

func (s *IntegrationDB) FindByID(ctx context.Context, integrationID int64) (model.IntegrationConfig, error) {
	in, err := scanIntegration(s.db.conn.QueryRowContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE id = ?`, integrationID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.IntegrationConfig{}, apperror.NotFound("integration", idText(integrationID))
	}
	if err != nil {
		return model.IntegrationConfig{}, queryErr("integrations.find_by_id", err)
	}
	return in, nil
}

func (s *IntegrationDB) ListByType(ctx context.Context, integrationType string) ([]model.IntegrationConfig, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE type = ? ORDER BY id`, integrationType)
	if err != nil {
		return nil, queryErr("integrations.list_by_type", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.IntegrationConfig
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, queryErr("integrations.list_by_type", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("integrations.list_by_type", err)
	}
	return out, nil
}

func (s *IntegrationDB) UpdateLedger(ctx context.Context, integrationID int64, l model.Ledger) error {
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE integrations SET last_sync_at = ?, last_updated_count = ?, last_error = ? WHERE id = ?`,
		millis(l.LastSyncAt), l.LastUpdatedCount, l.LastError, integrationID,
	)
	if err != nil {
		return queryErr("integrations.update_ledger", err)
	}
	return requireRow(res, "integration", integrationID)
}
