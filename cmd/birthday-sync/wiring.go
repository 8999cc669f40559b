package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tartampluch/birthday-sync/internal/birthday"
	"github.com/tartampluch/birthday-sync/internal/calendar"
	"github.com/tartampluch/birthday-sync/internal/clock"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/dedup"
	"github.com/tartampluch/birthday-sync/internal/engine"
	"github.com/tartampluch/birthday-sync/internal/messages"
	"github.com/tartampluch/birthday-sync/internal/namefix"
	"github.com/tartampluch/birthday-sync/internal/notify"
	"github.com/tartampluch/birthday-sync/internal/port"
	"github.com/tartampluch/birthday-sync/internal/reconcile"
	"github.com/tartampluch/birthday-sync/internal/source"
	"github.com/tartampluch/birthday-sync/internal/store/sqlite"
)

const memoryDB = ":memory:"

// app holds the wired components of one process.
type app struct {
	settings config.Settings
	location *time.Location
	clock    clock.Clock

	db     *sqlite.DB
	broker *notify.Client
	dedup  port.DedupStore

	reconciler *reconcile.Reconciler
	engine     *engine.Engine
	calendar   *calendar.Builder
	fixer      *namefix.Fixer
}

// newApp opens the database and wires every component. The broker is dialed
// only when withBroker is set; without it the engine has no sender.
func newApp(s config.Settings, withBroker bool) (*app, error) {
	loc, err := s.Location()
	if err != nil {
		return nil, err
	}

	if s.DBPath != memoryDB {
		if err := os.MkdirAll(filepath.Dir(s.DBPath), config.DirPermUserRWX); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrDBOpen, err)
		}
	}

	clk := clock.RealClock{}
	db, err := sqlite.Open(s.DBPath, clk)
	if err != nil {
		return nil, err
	}
	slog.Debug(config.MsgDBOpened,
		config.LogKeyComponent, config.CompMain,
		config.LogKeyFile, s.DBPath,
	)

	a := &app{settings: s, location: loc, clock: clk, db: db}

	switch s.DedupBackend {
	case config.DedupBackendSQLite:
		a.dedup = db.Dedup()
	case config.DedupBackendMemory:
		a.dedup = dedup.NewMemory(clk)
	default:
		_ = db.Close()
		return nil, fmt.Errorf("%s: %q", config.ErrUnknownDedup, s.DedupBackend)
	}

	msgs := messages.New(s.Language)
	logger := slog.Default()

	a.reconciler = &reconcile.Reconciler{
		Contacts:     db.Contacts(),
		Integrations: db.Integrations(),
		Sources:      source.NewFactory(logger),
		Clock:        clk,
		Location:     loc,
		Messages:     msgs,
		Logger:       logger,
		PageDelay:    s.PageDelay,
		Retries:      s.SourceRetries,
		RetryBase:    config.RetryBaseDelay,
	}

	dispatcher := &birthday.Dispatcher{
		Contacts:      db.Contacts(),
		Channels:      db.Channels(),
		Dedup:         a.dedup,
		Ticketing:     db.Tickets(),
		Announcements: db.Announcements(),
		Messages:      msgs,
		Clock:         clk,
		Logger:        logger,
		DelayMin:      s.SendDelayMin,
		DelayMax:      s.SendDelayMax,
		DedupTTL:      s.DedupTTL,
	}

	if withBroker {
		broker, err := notify.Dial(s.AMQPURL, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := broker.DeclareTopology(); err != nil {
			_ = broker.Close()
			_ = db.Close()
			return nil, err
		}
		publisher := &notify.Publisher{Channel: broker, Clock: clk, Logger: logger}
		dispatcher.Sender = &notify.Sender{Publisher: publisher}
		dispatcher.Realtime = &notify.Realtime{Publisher: publisher}
		a.broker = broker
	}

	a.engine = &engine.Engine{
		Tenants:       db.Tenants(),
		Integrations:  db.Integrations(),
		Announcements: db.Announcements(),
		Finder: &birthday.Finder{
			Contacts: db.Contacts(),
			Users:    db.Users(),
			Dedup:    a.dedup,
			Logger:   logger,
			PageSize: s.ListLimit,
		},
		Dispatcher: dispatcher,
		Reconciler: a.reconciler,
		Clock:      clk,
		Location:   loc,
		Logger:     logger,
		Workers:    s.IntegrationWorkers,
	}

	a.calendar = &calendar.Builder{
		Contacts: db.Contacts(),
		Clock:    clk,
		Location: loc,
		Messages: msgs,
		Logger:   logger,
		Reminder: s.CalendarReminder,
		PageSize: s.ListLimit,
	}

	a.fixer = &namefix.Fixer{Contacts: db.Contacts(), Logger: logger}
	return a, nil
}

// purgeDedup drops expired claims from the durable store. Best effort.
func (a *app) purgeDedup(ctx context.Context) {
	store, ok := a.dedup.(*sqlite.DedupDB)
	if !ok {
		return
	}
	n, err := store.Purge(ctx)
	if err != nil {
		slog.Warn(config.ErrDBQuery,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return
	}
	slog.Debug(config.MsgDedupPurged,
		config.LogKeyComponent, config.CompMain,
		config.LogKeyCount, n,
	)
}

func (a *app) Close() error {
	var errs []error
	if a.broker != nil {
		errs = append(errs, a.broker.Close())
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}
