package source

import (
	"fmt"
	"log/slog"

	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/tartampluch/birthday-sync/internal/port"
)

// Factory builds a ContactSource per integration type, sharing one Fetcher.
type Factory struct {
	Fetcher Fetcher
	Logger  *slog.Logger
}

// NewFactory returns a Factory backed by an HTTPFetcher. Both log to logger,
// or to slog.Default() when it is nil.
func NewFactory(logger *slog.Logger) *Factory {
	fetcher := NewHTTPFetcher()
	fetcher.Logger = logger
	return &Factory{Fetcher: fetcher, Logger: logger}
}

func (f *Factory) NewSource(integration model.IntegrationConfig, creds model.Credentials) (port.ContactSource, error) {
	switch integration.Type {
	case config.IntegrationTypeGestaoClick:
		return &GestaoClick{
			BaseURL:     creds.BaseURL,
			AccessToken: creds.AccessToken,
			SecretToken: creds.SecretToken,
			Fetcher:     f.Fetcher,
		}, nil
	case config.IntegrationTypeVCard:
		return &VCardSource{
			URL:      creds.URL,
			User:     creds.User,
			Password: creds.Password,
			Fetcher:  f.Fetcher,
			Logger:   f.Logger,
		}, nil
	default:
		return nil, apperror.InvalidInput("type", fmt.Sprintf("%s: %q", config.ErrIntegrationType, integration.Type))
	}
}
