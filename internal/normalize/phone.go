// Package normalize turns raw external field values into canonical domain
// values. Every function is pure; failures are reported as false, never as errors.
package normalize

import (
	"strings"

	"github.com/tartampluch/birthday-sync/internal/config"
)

// Digits keeps only the ASCII digits of raw.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Phone returns the canonical form of raw: country code, area code and
// subscriber number, 12 or 13 digits.
//
// A leading trunk zero is dropped from 11 or 12 digit inputs, and the trunk
// zero plus a two digit carrier code from 13 or 14 digit inputs. National
// numbers (10 or 11 digits) get the country code.
func Phone(raw string) (string, bool) {
	d := Digits(raw)

	if strings.HasPrefix(d, "0") {
		switch len(d) {
		case config.NationalMinLength + config.TrunkPrefixLen, config.NationalMaxLength + config.TrunkPrefixLen:
			d = d[config.TrunkPrefixLen:]
		case config.NationalMinLength + config.CarrierPrefixLen, config.NationalMaxLength + config.CarrierPrefixLen:
			d = d[config.CarrierPrefixLen:]
		}
	}

	if strings.Trim(d, "0") == "" {
		return "", false
	}
	if len(d) == config.NationalMinLength || len(d) == config.NationalMaxLength {
		d = config.CountryCode + d
	}

	if len(d) < config.PhoneMinLength || len(d) > config.PhoneMaxLength {
		return "", false
	}
	if strings.HasPrefix(d, "0") {
		return "", false
	}
	return d, true
}

// FirstPhone returns the first candidate that normalizes.
func FirstPhone(candidates []string) (string, bool) {
	for _, c := range candidates {
		if p, ok := Phone(c); ok {
			return p, true
		}
	}
	return "", false
}

// LocalSubscriber strips the country code from a canonical phone, yielding the
// digits the external phone filter expects. Other values pass through.
func LocalSubscriber(phone string) string {
	d := Digits(phone)
	if (len(d) == config.PhoneMinLength || len(d) == config.PhoneMaxLength) && strings.HasPrefix(d, config.CountryCode) {
		return d[len(config.CountryCode):]
	}
	return d
}
