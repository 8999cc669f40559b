package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/config"
)

// IntegrationConfig is an external contact source configured for a tenant.
// The Last* fields form the run ledger written after every reconciliation.
type IntegrationConfig struct {
	ID          int64
	CompanyID   int64
	Type        string
	Name        string
	JSONContent string

	LastSyncAt       *time.Time
	LastUpdatedCount int
	LastError        string
}

// Ledger is the persisted outcome of the latest reconciliation run.
type Ledger struct {
	LastSyncAt       time.Time
	LastUpdatedCount int
	LastError        string
}

// Credentials is the validated form of an integration's JSON content.
type Credentials struct {
	Type string

	// gestaoclick
	AccessToken string `json:"gcAccessToken" validate:"required_if=Type gestaoclick"`
	SecretToken string `json:"gcSecretToken" validate:"required_if=Type gestaoclick"`
	BaseURL     string `json:"gcBaseUrl" validate:"omitempty,url"`

	// vcard
	URL      string `json:"url" validate:"required_if=Type vcard,omitempty,url"`
	User     string `json:"user"`
	Password string `json:"password"`
}

var credentialsValidator = validator.New()

// ParseCredentials builds validated credentials from an integration's JSON content.
// Secrets may reference the OS keyring. Every failure is an InvalidInput error.
func ParseCredentials(integrationType, jsonContent string) (Credentials, error) {
	creds := Credentials{Type: integrationType}

	switch integrationType {
	case config.IntegrationTypeGestaoClick, config.IntegrationTypeVCard:
	default:
		return Credentials{}, apperror.InvalidInput("type", fmt.Sprintf("%s: %q", config.ErrIntegrationType, integrationType))
	}

	if strings.TrimSpace(jsonContent) != "" {
		if err := json.Unmarshal([]byte(jsonContent), &creds); err != nil {
			return Credentials{}, apperror.InvalidInput("jsonContent", fmt.Sprintf("%s: %v", config.ErrCredentials, err))
		}
		creds.Type = integrationType
	}

	creds.AccessToken = strings.TrimSpace(creds.AccessToken)
	creds.SecretToken = strings.TrimSpace(creds.SecretToken)
	creds.BaseURL = strings.TrimRight(strings.TrimSpace(creds.BaseURL), "/")

	if err := credentialsValidator.Struct(creds); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			if verrs[0].Tag() == "required_if" && integrationType == config.IntegrationTypeGestaoClick {
				return Credentials{}, apperror.InvalidInput(verrs[0].Field(), config.ErrTokensMissing)
			}
			return Credentials{}, apperror.InvalidInput(verrs[0].Field(),
				fmt.Sprintf("%s: field %s failed %q", config.ErrCredentials, verrs[0].Field(), verrs[0].Tag()))
		}
		return Credentials{}, apperror.InvalidInput("", fmt.Sprintf("%s: %v", config.ErrCredentials, err))
	}

	var err error
	if creds.SecretToken, err = config.ResolveSecret(creds.SecretToken); err != nil {
		return Credentials{}, apperror.InvalidInput("gcSecretToken", err.Error())
	}
	if creds.Password, err = config.ResolveSecret(creds.Password); err != nil {
		return Credentials{}, apperror.InvalidInput("password", err.Error())
	}

	if integrationType == config.IntegrationTypeGestaoClick && creds.BaseURL == "" {
		creds.BaseURL = config.DefaultGestaoClickBaseURL
	}
	return creds, nil
}
