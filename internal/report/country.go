package report

import (
	"strings"
	"sync"

	"github.com/pariz/gountries"
)

var countryQuery = sync.OnceValue(gountries.New)

// CountryName resolves an ISO 3166 alpha-2 or alpha-3 code to its common
// English name, falling back to the upper-cased code.
func CountryName(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || code == "ZZZ" {
		return "Desconocido"
	}
	country, err := countryQuery().FindCountryByAlpha(code)
	if err != nil {
		return code
	}
	return country.Name.Common
}
