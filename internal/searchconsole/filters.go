package searchconsole

import (
	"fmt"
	"strings"
)

// SectionFilter matches pages whose URL contains the section path. The
// fragment matches anywhere in the URL, including the host and query string.
// It returns false when section is blank.
func SectionFilter(section, subsection string) (Filter, bool) {
	fragment := strings.TrimLeft(strings.TrimSpace(section), "/")
	if fragment == "" {
		return Filter{}, false
	}
	if sub := strings.Trim(strings.TrimSpace(subsection), "/"); sub != "" {
		fragment = strings.TrimRight(fragment, "/") + "/" + sub
	}
	return Filter{Dimension: DimPage, Operator: OpContains, Expression: fragment}, true
}

// CountryFilter matches a single ISO 3166-1 alpha-3 country code.
func CountryFilter(iso3 string) (Filter, error) {
	code := strings.ToLower(strings.TrimSpace(iso3))
	if len(code) != 3 {
		return Filter{}, fmt.Errorf("%w: country %q is not an ISO-3 code", ErrInvalidQuery, iso3)
	}
	for _, r := range code {
		if r < 'a' || r > 'z' {
			return Filter{}, fmt.Errorf("%w: country %q is not an ISO-3 code", ErrInvalidQuery, iso3)
		}
	}
	return Filter{Dimension: DimCountry, Operator: OpEquals, Expression: code}, nil
}

// BuildFilters assembles the AND group for the optional country and section.
func BuildFilters(country, section, subsection string) ([]Filter, error) {
	var filters []Filter
	if strings.TrimSpace(country) != "" {
		cf, err := CountryFilter(country)
		if err != nil {
			return nil, err
		}
		filters = append(filters, cf)
	}
	if sf, ok := SectionFilter(section, subsection); ok {
		filters = append(filters, sf)
	}
	return filters, nil
}

// Without returns filters minus those on dim. Country tables drop the
// country filter so every country is listed.
func Without(filters []Filter, dim Dimension) []Filter {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f.Dimension != dim {
			out = append(out, f)
		}
	}
	return out
}
