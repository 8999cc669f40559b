// Package namefix repairs contact names that are empty, placeholders or
// phone numbers stored as names.
package namefix

import (
	"context"
	"log/slog"

	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/normalize"
	"github.com/tartampluch/birthday-sync/internal/port"
)

type Fixer struct {
	Contacts port.ContactRepository
	Logger   *slog.Logger
}

// Run walks every contact with an id above cursor, in batches, and renames
// the invalid ones. On error the result holds the progress so far and
// NextCursor is the last contact fully handled.
func (f *Fixer) Run(ctx context.Context, cursor int64, batch int) (model.NameFixResult, error) {
	if batch <= 0 {
		batch = config.DefaultNameFixBatch
	}
	log := f.logger()
	res := model.NameFixResult{NextCursor: cursor}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		contacts, err := f.Contacts.ListAfter(ctx, res.NextCursor, batch)
		if err != nil {
			return res, err
		}
		if len(contacts) == 0 {
			break
		}

		for _, c := range contacts {
			if normalize.IsInvalidContactName(c.Name) {
				best := normalize.ResolveBestContactName(nil, c.Number)
				if best != c.Name {
					if err := f.Contacts.Rename(ctx, c.ID, best); err != nil {
						return res, err
					}
					res.Updated++
					log.DebugContext(ctx, config.MsgNameFixed, config.LogKeyContact, c.ID, config.LogKeyName, best)
				}
			}
			res.Processed++
			res.NextCursor = c.ID
		}
	}

	log.InfoContext(ctx, config.MsgNameFixFinished,
		config.LogKeyProcessed, res.Processed,
		config.LogKeyUpdated, res.Updated,
		config.LogKeyCursor, res.NextCursor,
	)
	return res, nil
}

func (f *Fixer) logger() *slog.Logger {
	l := f.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(config.LogKeyComponent, config.CompNameFix)
}
