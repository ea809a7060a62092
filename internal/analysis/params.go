package analysis

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	sc "github.com/joshsymonds/gscreport/internal/searchconsole"
	"github.com/joshsymonds/gscreport/internal/window"
)

// Kind names an analysis and selects its spreadsheet template.
type Kind string

// Analysis kinds.
const (
	KindCoreUpdate Kind = "core_update"
	KindEvergreen  Kind = "evergreen"
	KindAudit      Kind = "audit"
)

const defaultTopN = 20

// ErrInvalidParams marks a run rejected before anything was fetched or written.
var ErrInvalidParams = errors.New("invalid analysis parameters")

var validate = sync.OnceValue(func() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
})

// RunContext carries the caller's identity into a run.
type RunContext struct {
	UserEmail  string `json:"user_email"`
	GSCAccount string `json:"gsc_account"`
}

// Common holds the parameters every analysis kind accepts.
type Common struct {
	Site       string        `json:"site"        validate:"required"`
	Types      []sc.DataType `json:"types"       validate:"required,min=1,dive,oneof=web discover"`
	LagDays    int           `json:"lag_days"    validate:"gte=0"`
	Country    string        `json:"country"     validate:"omitempty,len=3,alpha"`
	Section    string        `json:"section"`
	Subsection string        `json:"subsection"  validate:"excluded_without=Section"`
}

// CoreUpdateParams configures a core-update comparison.
type CoreUpdateParams struct {
	Common
	Name  string    `json:"name"  validate:"required"`
	Start time.Time `json:"start" validate:"required"`
	Ended bool      `json:"ended"`
	End   time.Time `json:"end"`
}

// EvergreenParams configures a 16-month evergreen report.
type EvergreenParams struct {
	Common
}

// AuditParams configures a period-over-period audit.
type AuditParams struct {
	Common
	Mode        window.Mode `json:"mode"         validate:"required,oneof=weekly biweekly monthly custom"`
	CustomDays  int         `json:"custom_days"  validate:"gte=0"`
	PeriodsBack int         `json:"periods_back" validate:"gte=1,lte=12"`
	TopN        int         `json:"top_n"        validate:"gte=0"`
	GA4Property string      `json:"ga4_property"`
	Summarize   bool        `json:"summarize"`
}

// Validate checks the struct tags and the cross-field rules tags cannot express.
func (p CoreUpdateParams) Validate() error {
	if err := check(p); err != nil {
		return err
	}
	if p.Ended && p.End.IsZero() {
		return fmt.Errorf("%w: %w", ErrInvalidParams, window.ErrMissingEnd)
	}
	return nil
}

// Validate checks the struct tags.
func (p EvergreenParams) Validate() error { return check(p) }

// Validate checks the struct tags and the custom mode day count.
func (p AuditParams) Validate() error {
	if err := check(p); err != nil {
		return err
	}
	if p.Mode == window.ModeCustom && p.CustomDays < 1 {
		return fmt.Errorf("%w: custom mode needs a positive day count", ErrInvalidParams)
	}
	return nil
}

func (p AuditParams) topN() int {
	if p.TopN <= 0 {
		return defaultTopN
	}
	return p.TopN
}

// filters builds the query filters. A bad country code is a precondition error.
func (c Common) filters() ([]sc.Filter, error) {
	filters, err := sc.BuildFilters(c.Country, c.Section, c.Subsection)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return filters, nil
}

func check(v any) error {
	err := validate().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidParams, strings.Join(msgs, "; "))
}

// ParseTypes reads a comma separated list of data types.
func ParseTypes(value string) ([]sc.DataType, error) {
	var out []sc.DataType
	seen := map[sc.DataType]bool{}
	for _, part := range strings.Split(value, ",") {
		t := sc.DataType(strings.ToLower(strings.TrimSpace(part)))
		if t == "" || seen[t] {
			continue
		}
		switch t {
		case sc.TypeWeb, sc.TypeDiscover:
		default:
			return nil, fmt.Errorf("%w: unknown data type %q", ErrInvalidParams, part)
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no data types selected", ErrInvalidParams)
	}
	return out, nil
}
