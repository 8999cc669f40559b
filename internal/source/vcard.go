package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/normalize"
)

// Full-date BDAY layouts. Year-less vCard dates cannot carry a birth year and
// are left as is for the normalizer to reject.
var bdayLayouts = []string{
	config.DateFormatISO,
	config.DateFormatDayKey,
	time.RFC3339,
	"20060102T150405Z",
}

// VCardSource serves a vCard export (a .vcf file or CardDAV collection URL) as
// pages of VCardPageSize records. The export is downloaded once per source.
type VCardSource struct {
	URL      string
	User     string
	Password string
	Fetcher  Fetcher
	Logger   *slog.Logger

	mu      sync.Mutex
	records []model.ExternalRecord
	loaded  bool
}

func (s *VCardSource) ListPage(ctx context.Context, page int) (model.Page, error) {
	recs, err := s.load(ctx)
	if err != nil {
		return model.Page{}, err
	}

	total := (len(recs) + config.VCardPageSize - 1) / config.VCardPageSize
	if total == 0 {
		total = 1
	}
	start := (page - 1) * config.VCardPageSize
	if page < 1 || start >= len(recs) {
		return model.Page{TotalPages: total}, nil
	}
	end := min(start+config.VCardPageSize, len(recs))
	return model.Page{Records: recs[start:end], TotalPages: total}, nil
}

// ListByPhone returns the cards holding a number that ends with digits.
func (s *VCardSource) ListByPhone(ctx context.Context, digits string) ([]model.ExternalRecord, error) {
	recs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	digits = normalize.Digits(digits)
	if digits == "" {
		return nil, nil
	}

	var out []model.ExternalRecord
	for _, r := range recs {
		for _, p := range r.PhoneCandidates {
			if strings.HasSuffix(normalize.Digits(p), digits) {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (s *VCardSource) load(ctx context.Context) ([]model.ExternalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.records, nil
	}

	rc, err := s.Fetcher.Fetch(ctx, Request{URL: s.URL, User: s.User, Pass: s.Password})
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	recs, err := decodeCards(ctx, rc, s.logger())
	if err != nil {
		return nil, err
	}
	s.records, s.loaded = recs, true
	return recs, nil
}

func decodeCards(ctx context.Context, r io.Reader, log *slog.Logger) ([]model.ExternalRecord, error) {
	decoder := vcard.NewDecoder(r)
	var out []model.ExternalRecord

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A broken stream cannot be resynchronized, keep what was read.
			log.WarnContext(ctx, config.MsgSkippedCard, config.LogKeyError, err)
			if len(out) == 0 {
				return nil, apperror.Unexpected(config.ErrVCardParse, err)
			}
			break
		}
		out = append(out, cardRecord(card, len(out)))
	}
	return out, nil
}

func (s *VCardSource) logger() *slog.Logger {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(config.LogKeyComponent, config.CompSource)
}

func cardRecord(card vcard.Card, index int) model.ExternalRecord {
	id := card.Value(vcard.FieldUID)
	if id == "" {
		id = strconv.Itoa(index + 1)
	}

	// Name Strategy: FN (Formatted) > N (Structured)
	name := card.PreferredValue(vcard.FieldFormattedName)
	if name == "" {
		if n := card.Name(); n != nil {
			name = strings.Join(strings.Fields(n.GivenName+" "+n.AdditionalName+" "+n.FamilyName), " ")
		}
	}

	var mobile, other []string
	for _, f := range card[vcard.FieldTelephone] {
		if f.Params.HasType(config.VCardTypeCell) {
			mobile = append(mobile, f.Value)
		} else {
			other = append(other, f.Value)
		}
	}

	return model.ExternalRecord{
		ExternalID:      id,
		Name:            name,
		PhoneCandidates: append(mobile, other...),
		BirthDate:       bdayISO(card.Value(vcard.FieldBirthday)),
		Active:          true,
	}
}

func bdayISO(value string) string {
	for _, layout := range bdayLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(config.DateFormatISO)
		}
	}
	return value
}
