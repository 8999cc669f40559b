package birthday

import (
	"strconv"
	"strings"

	"github.com/tartampluch/birthday-sync/internal/config"
)

// Render substitutes the name and age placeholders of a greeting template.
// The age placeholders stay as written when age is unknown.
func Render(tpl, name string, age int) string {
	pairs := []string{
		config.PlaceholderName, name,
		config.PlaceholderNameAlias, name,
	}
	if age > 0 {
		a := strconv.Itoa(age)
		pairs = append(pairs, config.PlaceholderAge, a, config.PlaceholderAgeAlias, a)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
