package normalize

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/tartampluch/birthday-sync/internal/config"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var numericName = regexp.MustCompile(`^\d+$`)

// Name title-cases an ALL-CAPS name, keeping surname connectors lowercase and
// hyphenated parts individually cased. Other names are only trimmed.
func Name(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || !isAllCaps(s) {
		return s
	}

	// Casers are stateful and must not be shared.
	lower := cases.Lower(language.BrazilianPortuguese)
	title := cases.Title(language.BrazilianPortuguese)

	words := strings.Fields(s)
	for i, w := range words {
		parts := strings.Split(w, "-")
		for j, p := range parts {
			l := lower.String(p)
			if slices.Contains(config.NameConnectors, l) {
				parts[j] = l
				continue
			}
			parts[j] = title.String(l)
		}
		words[i] = strings.Join(parts, "-")
	}
	return strings.Join(words, " ")
}

func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// LooksGenerated reports whether a stored name is a bare number, as written
// by channels that only know the sender's phone.
func LooksGenerated(name string) bool {
	return numericName.MatchString(strings.TrimSpace(name))
}

// IsInvalidContactName flags blank names, placeholder markers and phone
// numbers stored as names.
func IsInvalidContactName(name string) bool {
	s := strings.TrimSpace(name)
	if s == "" {
		return true
	}
	if strings.Contains(strings.ToLower(s), config.PlaceholderNameLID) {
		return true
	}
	if numericName.MatchString(s) {
		return true
	}
	return !strings.ContainsFunc(s, unicode.IsSpace) && len(Digits(s)) >= config.NumericNameMinDigits
}

// ResolveBestContactName returns the first usable candidate, or a label built
// from fallbackNumber.
func ResolveBestContactName(candidates []string, fallbackNumber string) string {
	for _, c := range candidates {
		if s := strings.TrimSpace(c); !IsInvalidContactName(s) {
			return s
		}
	}
	if d := Digits(fallbackNumber); d != "" {
		return config.FallbackContactName + " " + d
	}
	return config.FallbackContactName
}
