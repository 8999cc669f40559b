package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Dedup backends accepted by Settings.DedupBackend.
const (
	DedupBackendSQLite = "sqlite"
	DedupBackendMemory = "memory"
)

// Environment overrides, applied after the file is read.
const (
	EnvDBPath   = "BIRTHDAY_SYNC_DB"
	EnvAMQPURL  = "BIRTHDAY_SYNC_AMQP_URL"
	EnvTimezone = "BIRTHDAY_SYNC_TZ"
	EnvLanguage = "BIRTHDAY_SYNC_LANG"
)

// Settings is the runtime configuration of the daemon.
type Settings struct {
	DBPath     string `yaml:"db_path" validate:"required"`
	AMQPURL    string `yaml:"amqp_url" validate:"omitempty,url"`
	ListenAddr string `yaml:"listen_addr" validate:"required,hostname_port"`
	Timezone   string `yaml:"timezone" validate:"required"`
	Language   string `yaml:"language" validate:"required"`

	PageDelay    time.Duration `yaml:"page_delay" validate:"gte=0"`
	SendDelayMin time.Duration `yaml:"send_delay_min" validate:"gte=0"`
	SendDelayMax time.Duration `yaml:"send_delay_max" validate:"gtefield=SendDelayMin"`
	DedupTTL     time.Duration `yaml:"dedup_ttl" validate:"gt=0"`
	DedupBackend string        `yaml:"dedup_backend" validate:"oneof=sqlite memory"`

	IntegrationWorkers int `yaml:"integration_workers" validate:"gte=1,lte=32"`
	SourceRetries      int `yaml:"source_retries" validate:"gte=0,lte=10"`
	ListLimit          int `yaml:"list_limit" validate:"gte=1"`

	// CalendarReminder is an ISO 8601 duration (e.g. "-P1D") added as a
	// display alarm to feed events. Empty disables alarms.
	CalendarReminder string `yaml:"calendar_reminder" validate:"omitempty,startswith=-P|startswith=P"`
}

// DefaultSettings mirrors the recommended operating values.
func DefaultSettings() Settings {
	return Settings{
		DBPath:             DefaultDBPath,
		ListenAddr:         DefaultListenAddr,
		Timezone:           DefaultTimezone,
		Language:           DefaultLanguage,
		PageDelay:          PageDelay,
		SendDelayMin:       SendDelayMin,
		SendDelayMax:       SendDelayMax,
		DedupTTL:           DedupTTL,
		DedupBackend:       DedupBackendSQLite,
		IntegrationWorkers: 1,
		SourceRetries:      0,
		ListLimit:          DefaultListLimit,
	}
}

// LoadSettings reads path (optional), applies environment overrides and validates.
// An empty path yields the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", ErrSettingsRead, err)
		}
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return Settings{}, fmt.Errorf("%s: %w", ErrSettingsParse, err)
		}
	}

	s.applyEnv()

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) applyEnv() {
	if v := os.Getenv(EnvDBPath); v != "" {
		s.DBPath = v
	}
	if v := os.Getenv(EnvAMQPURL); v != "" {
		s.AMQPURL = v
	}
	if v := os.Getenv(EnvTimezone); v != "" {
		s.Timezone = v
	}
	if v := os.Getenv(EnvLanguage); v != "" {
		s.Language = v
	}
}

// Validate checks field constraints and that the timezone exists.
func (s Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s: field %s failed %q", ErrSettingsInvalid, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%s: %w", ErrSettingsInvalid, err)
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the reference timezone used for "today".
func (s Settings) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", ErrTimezone, s.Timezone, err)
	}
	return loc, nil
}
