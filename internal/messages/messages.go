// Package messages renders the human-readable texts returned to operators and
// sent to recipients, in the configured language.
package messages

import (
	"embed"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/birthday-sync/internal/config"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Catalog translates message keys. The zero value returns keys unchanged.
type Catalog struct {
	localizer *i18n.Localizer
	languages []string
}

// New loads the embedded locales and selects lang, falling back to English.
func New(lang string) *Catalog {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		slog.Error(config.ErrLocalesAccess,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyError, err,
		)
		return &Catalog{}
	}

	var detected []string
	for _, entry := range entries {
		name := entry.Name()
		code := strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json")
		if code == "" || code == name {
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			slog.Error(config.ErrLocaleLoad,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
				config.LogKeyError, err,
			)
			continue
		}
		detected = append(detected, code)
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyLang, code,
		)
	}

	if lang == "" {
		lang = config.DefaultLanguage
	}
	return &Catalog{
		localizer: i18n.NewLocalizer(bundle, lang, config.DefaultLanguage),
		languages: detected,
	}
}

// Languages lists the locale codes found in the embedded files.
func (c *Catalog) Languages() []string {
	return c.languages
}

// Get translates key with optional template data. Missing keys return the key.
func (c *Catalog) Get(key string, data map[string]any) string {
	if c == nil || c.localizer == nil {
		return key
	}
	msg, err := c.localizer.Localize(&i18n.LocalizeConfig{MessageID: key, TemplateData: data})
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, key,
			config.LogKeyError, err,
		)
		return key
	}
	return msg
}
