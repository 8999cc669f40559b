// Package server exposes the per-tenant birthday calendar feeds and the status
// of the last daily cycle over HTTP.
package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tartampluch/birthday-sync/internal/calendar"
	"github.com/tartampluch/birthday-sync/internal/clock"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/model"
)

// CalendarBuilder renders a tenant's birthday feed.
type CalendarBuilder interface {
	Build(ctx context.Context, companyID int64) (calendar.Feed, error)
}

// CycleStatus reports the last completed daily cycle.
type CycleStatus interface {
	LastCycle() (model.CycleResult, bool)
}

// cacheItem remembers when a tenant's feed content last changed.
type cacheItem struct {
	etag         string
	lastModified string // RFC1123, as HTTP headers require
}

// Server serves the birthday feeds. Feeds are rendered on every request; the
// per-tenant cache only tracks validators so unchanged content keeps its
// Last-Modified date.
type Server struct {
	Addr     string
	Calendar CalendarBuilder
	Status   CycleStatus
	Clock    clock.Clock
	Logger   *slog.Logger

	cache sync.Map // company id -> *cacheItem
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger()))

	r.Get(config.RouteHealth, s.handleHealth)
	r.Get(config.RouteStatus, s.handleStatus)
	r.Get(config.RouteCalendar, s.handleCalendar)
	r.Head(config.RouteCalendar, s.handleCalendar)
	return r
}

// Start listens on Addr and blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		s.logger().Info(config.MsgServerListen, config.LogKeyAddr, s.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger().Info(config.MsgServerStop)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{config.HealthKeyStatus: config.HTTPStatusOK})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.Status == nil {
		s.notReady(w)
		return
	}
	last, ok := s.Status.LastCycle()
	if !ok {
		s.notReady(w)
		return
	}
	s.writeJSON(w, http.StatusOK, last)
}

func (s *Server) notReady(w http.ResponseWriter) {
	w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
	http.Error(w, config.HTTPMsgNoCycle, http.StatusServiceUnavailable)
}

// handleCalendar serves a tenant's ICS feed with HTTP caching support.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.ParseInt(chi.URLParam(r, config.URLParamComp), 10, 64)
	if err != nil || companyID <= 0 {
		http.Error(w, config.HTTPMsgBadCompany, http.StatusBadRequest)
		return
	}

	feed, err := s.Calendar.Build(r.Context(), companyID)
	if err != nil {
		s.logger().Error(config.MsgCalendarFailed,
			config.LogKeyCompany, companyID,
			config.LogKeyError, err,
		)
		http.Error(w, config.HTTPMsgCalendarErr, http.StatusInternalServerError)
		return
	}

	item := s.remember(companyID, feed.ICS)

	w.Header().Set(config.HeaderContentType, config.MimeTextCalendar)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	w.Header().Set(config.HeaderETag, item.etag)
	w.Header().Set(config.HeaderLastModified, item.lastModified)

	if notModified(r, item) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if r.Method == http.MethodGet {
		if _, err := io.Copy(w, bytes.NewReader(feed.ICS)); err != nil {
			s.logger().Error(config.ErrWriteResp, config.LogKeyError, err)
		}
	}
}

// remember returns the validators for data, keeping the previous
// Last-Modified date when the content is unchanged.
func (s *Server) remember(companyID int64, data []byte) *cacheItem {
	hash := sha256.Sum256(data)
	etag := fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:]))

	if prev, ok := s.cache.Load(companyID); ok {
		if item := prev.(*cacheItem); item.etag == etag {
			return item
		}
	}

	item := &cacheItem{
		etag:         etag,
		lastModified: s.now().UTC().Format(http.TimeFormat),
	}
	s.cache.Store(companyID, item)

	s.logger().Debug(config.MsgCacheUpdated,
		config.LogKeyCompany, companyID,
		config.LogKeyBytes, len(data),
		config.LogKeyETag, etag,
	)
	return item
}

// notModified evaluates If-None-Match, then If-Modified-Since.
func notModified(r *http.Request, item *cacheItem) bool {
	if match := r.Header.Get(config.HeaderIfNoneMatch); match != "" {
		return match == item.etag
	}

	since := r.Header.Get(config.HeaderIfModifiedSince)
	if since == "" {
		return false
	}
	clientTime, err := time.Parse(http.TimeFormat, since)
	if err != nil {
		return false
	}
	serverTime, err := time.Parse(http.TimeFormat, item.lastModified)
	if err != nil {
		return false
	}
	return !serverTime.After(clientTime)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HeaderContentType, config.MimeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger().Error(config.ErrWriteResp, config.LogKeyError, err)
	}
}

func (s *Server) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Server) logger() *slog.Logger {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(config.LogKeyComponent, config.CompServer)
}
