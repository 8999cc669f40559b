package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/model"
	"github.com/zalando/go-keyring"
)

func TestParseCredentials_GestaoClick(t *testing.T) {
	creds, err := model.ParseCredentials(config.IntegrationTypeGestaoClick,
		`{"gcAccessToken":" abc ","gcSecretToken":"def"}`)
	require.NoError(t, err)

	assert.Equal(t, "abc", creds.AccessToken)
	assert.Equal(t, "def", creds.SecretToken)
	assert.Equal(t, config.DefaultGestaoClickBaseURL, creds.BaseURL, "default base URL applies")
}

func TestParseCredentials_CustomBaseURL(t *testing.T) {
	creds, err := model.ParseCredentials(config.IntegrationTypeGestaoClick,
		`{"gcAccessToken":"a","gcSecretToken":"b","gcBaseUrl":"https://crm.example.com/api/"}`)
	require.NoError(t, err)
	assert.Equal(t, "https://crm.example.com/api", creds.BaseURL)
}

func TestParseCredentials_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		content string
		msg     string
	}{
		{"MissingTokens", config.IntegrationTypeGestaoClick, `{"gcAccessToken":"a"}`, config.ErrTokensMissing},
		{"EmptyContent", config.IntegrationTypeGestaoClick, ``, config.ErrTokensMissing},
		{"MalformedJSON", config.IntegrationTypeGestaoClick, `{not json`, config.ErrCredentials},
		{"BadBaseURL", config.IntegrationTypeGestaoClick, `{"gcAccessToken":"a","gcSecretToken":"b","gcBaseUrl":"::"}`, config.ErrCredentials},
		{"VCardWithoutURL", config.IntegrationTypeVCard, `{"user":"bob"}`, config.ErrCredentials},
		{"UnknownType", "hubspot", `{}`, config.ErrIntegrationType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.ParseCredentials(tt.typ, tt.content)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrInvalidInput))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseCredentials_VCardKeyringPassword(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set(config.KeyringService, "carddav", "hunter2"))

	creds, err := model.ParseCredentials(config.IntegrationTypeVCard,
		`{"url":"https://dav.example.com/contacts.vcf","user":"bob","password":"keyring:carddav"}`)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", creds.Password)
	assert.Empty(t, creds.BaseURL)
}

func TestContactUpdate_Empty(t *testing.T) {
	assert.True(t, model.ContactUpdate{}.Empty())
	name := "Ana"
	assert.False(t, model.ContactUpdate{Name: &name}.Empty())
}

func TestBirthdayRunResult_Record(t *testing.T) {
	var r model.BirthdayRunResult
	r.Record(model.DispatchOutcome{ContactID: 1, Status: model.OutcomeSent})
	r.Record(model.DispatchOutcome{ContactID: 2, Status: model.OutcomeDuplicate})
	r.Record(model.DispatchOutcome{ContactID: 3, Status: model.OutcomeFailed})

	assert.Equal(t, 1, r.ContactsNotified)
	assert.Equal(t, 1, r.ContactsSkippedDedup)
	assert.Equal(t, 1, r.ContactsFailed)
	assert.Len(t, r.Outcomes, 3)
}
