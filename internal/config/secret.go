package config

import (
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// SecretKeyringPrefix marks a credential value stored in the OS keyring.
// "keyring:acme-crm" resolves to the secret saved under KeyringService/acme-crm.
const SecretKeyringPrefix = "keyring:"

// ResolveSecret returns value unchanged unless it references the keyring.
func ResolveSecret(value string) (string, error) {
	user, ok := strings.CutPrefix(value, SecretKeyringPrefix)
	if !ok {
		return value, nil
	}
	secret, err := keyring.Get(KeyringService, user)
	if err != nil {
		return "", fmt.Errorf("%s %q: %w", ErrKeyring, user, err)
	}
	return secret, nil
}
