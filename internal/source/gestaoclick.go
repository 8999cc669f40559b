package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/model"
)

// GestaoClick reads the clients of one GestaoClick account.
type GestaoClick struct {
	BaseURL     string
	AccessToken string
	SecretToken string
	Fetcher     Fetcher
}

type gcEnvelope struct {
	Data []gcClient `json:"data"`
	Meta struct {
		TotalPages flexInt `json:"total_paginas"`
	} `json:"meta"`
}

type gcClient struct {
	ID        flexString `json:"id"`
	Name      string     `json:"nome"`
	BirthDate string     `json:"data_nascimento"`
	Landline  string     `json:"telefone"`
	Mobile    string     `json:"celular"`
	Active    flexString `json:"ativo"`
}

func (c gcClient) record() model.ExternalRecord {
	return model.ExternalRecord{
		ExternalID:      string(c.ID),
		Name:            c.Name,
		PhoneCandidates: []string{c.Mobile, c.Landline},
		BirthDate:       c.BirthDate,
		Active:          c.Active == "" || string(c.Active) == config.GestaoClickActiveTrue,
	}
}

// ListPage fetches one page of clients. A missing page count is reported as 0.
func (g *GestaoClick) ListPage(ctx context.Context, page int) (model.Page, error) {
	env, err := g.get(ctx, url.Values{config.GestaoClickParamPage: {strconv.Itoa(page)}})
	if err != nil {
		return model.Page{}, err
	}
	return model.Page{Records: records(env.Data), TotalPages: int(env.Meta.TotalPages)}, nil
}

// ListByPhone queries the phone filter with subscriber digits.
func (g *GestaoClick) ListByPhone(ctx context.Context, digits string) ([]model.ExternalRecord, error) {
	env, err := g.get(ctx, url.Values{config.GestaoClickParamPhone: {digits}})
	if err != nil {
		return nil, err
	}
	return records(env.Data), nil
}

func (g *GestaoClick) get(ctx context.Context, q url.Values) (gcEnvelope, error) {
	h := http.Header{}
	h.Set(config.HeaderAccessToken, g.AccessToken)
	h.Set(config.HeaderSecretAccessToken, g.SecretToken)
	h.Set(config.HeaderAccept, config.MimeJSON)

	rc, err := g.Fetcher.Fetch(ctx, Request{
		URL:    strings.TrimRight(g.BaseURL, "/") + config.GestaoClickPathClients,
		Query:  q,
		Header: h,
	})
	if err != nil {
		return gcEnvelope{}, err
	}
	defer func() { _ = rc.Close() }()

	var env gcEnvelope
	if err := json.NewDecoder(rc).Decode(&env); err != nil {
		if ctx.Err() != nil {
			return gcEnvelope{}, ctx.Err()
		}
		return gcEnvelope{}, apperror.Unexpected(config.ErrDecodeResponse, err)
	}
	return env, nil
}

func records(clients []gcClient) []model.ExternalRecord {
	out := make([]model.ExternalRecord, 0, len(clients))
	for _, c := range clients {
		out = append(out, c.record())
	}
	return out
}

// flexString accepts JSON strings and numbers.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%s: %w", config.ErrDecodeResponse, err)
	}
	*s = flexString(n.String())
	return nil
}

// flexInt accepts JSON numbers and numeric strings.
type flexInt int

func (i *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*i = 0
		return nil
	}
	n, err := strconv.Atoi(string(s))
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrDecodeResponse, err)
	}
	*i = flexInt(n)
	return nil
}
