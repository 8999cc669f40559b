package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/zalando/go-keyring"
)

// TestConstants_Integrity ensures critical constants are not empty or malformed.
func TestConstants_Integrity(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"AppName", config.AppName},
		{"Version", config.Version},
		{"UserAgent", config.UserAgent},
		{"CountryCode", config.CountryCode},
		{"DefaultTimezone", config.DefaultTimezone},
		{"DedupKeyPrefix", config.DedupKeyPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEmpty(t, tt.value, "Critical constant %s should not be empty", tt.name)
		})
	}
}

// TestTimeoutsAndLimits ensures that operational constraints are reasonable.
func TestTimeoutsAndLimits(t *testing.T) {
	t.Parallel()

	assert.GreaterOrEqual(t, config.PageDelay, 300*time.Millisecond)
	assert.LessOrEqual(t, config.PageDelay, 400*time.Millisecond)
	assert.Equal(t, time.Minute, config.SendDelayMin)
	assert.Equal(t, 6*time.Minute, config.SendDelayMax)
	assert.Equal(t, 48*time.Hour, config.DedupTTL)
	assert.Equal(t, 5, config.ProbeSearchPages)
	assert.Greater(t, config.HTTPTimeout, 0*time.Second)
	assert.Less(t, int64(config.MaxHTTPResponseSize), int64(1<<30))
}

func TestUserAgent_Format(t *testing.T) {
	assert.True(t, strings.HasPrefix(config.UserAgent, "Birthday-Sync/"))
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := config.LoadSettings("")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultSettings().DedupTTL, s.DedupTTL)
	assert.Equal(t, 1, s.IntegrationWorkers)
	assert.Equal(t, 0, s.SourceRetries)

	loc, err := s.Location()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTimezone, loc.String())
}

func TestLoadSettings_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	content := `
db_path: /var/lib/birthday-sync/app.db
timezone: UTC
page_delay: 300ms
send_delay_min: 1s
send_delay_max: 2s
integration_workers: 4
source_retries: 2
dedup_backend: memory
`
	require.NoError(t, os.WriteFile(path, []byte(content), config.FilePermUserRW))
	t.Setenv(config.EnvLanguage, "pt-BR")

	s, err := config.LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/birthday-sync/app.db", s.DBPath)
	assert.Equal(t, "UTC", s.Timezone)
	assert.Equal(t, 300*time.Millisecond, s.PageDelay)
	assert.Equal(t, 2*time.Second, s.SendDelayMax)
	assert.Equal(t, 4, s.IntegrationWorkers)
	assert.Equal(t, 2, s.SourceRetries)
	assert.Equal(t, config.DedupBackendMemory, s.DedupBackend)
	assert.Equal(t, "pt-BR", s.Language)
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Settings)
	}{
		{"InvertedSendWindow", func(s *config.Settings) { s.SendDelayMin = time.Hour; s.SendDelayMax = time.Minute }},
		{"NoWorkers", func(s *config.Settings) { s.IntegrationWorkers = 0 }},
		{"UnknownDedupBackend", func(s *config.Settings) { s.DedupBackend = "redis" }},
		{"UnknownTimezone", func(s *config.Settings) { s.Timezone = "Mars/Olympus" }},
		{"MissingDB", func(s *config.Settings) { s.DBPath = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.DefaultSettings()
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestResolveSecret(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set(config.KeyringService, "crm-acme", "s3cr3t"))

	plain, err := config.ResolveSecret("literal-token")
	require.NoError(t, err)
	assert.Equal(t, "literal-token", plain)

	resolved, err := config.ResolveSecret("keyring:crm-acme")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", resolved)

	_, err = config.ResolveSecret("keyring:missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrKeyring)
}
