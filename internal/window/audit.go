package window

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects the period length of an audit.
type Mode string

// Audit period modes.
const (
	ModeWeekly   Mode = "weekly"
	ModeBiweekly Mode = "biweekly"
	ModeMonthly  Mode = "monthly"
	ModeCustom   Mode = "custom"
)

const (
	weeklyDays   = 7
	biweeklyDays = 15
	// MaxPeriodsBack bounds the number of comparison periods in an audit.
	MaxPeriodsBack = 12
)

// ParseMode normalizes a user supplied mode name.
func ParseMode(value string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(value))); m {
	case ModeWeekly, ModeBiweekly, ModeMonthly, ModeCustom:
		return m, nil
	default:
		return "", fmt.Errorf("unknown audit mode %q", value)
	}
}

// AuditInput parameterizes an audit period computation.
type AuditInput struct {
	Today       time.Time
	LagDays     int
	Mode        Mode
	CustomDays  int
	PeriodsBack int
}

// Period is a labeled audit range.
type Period struct {
	Label string `json:"label"`
	Range
}

// Audit returns the current period followed by PeriodsBack preceding
// periods of the same length, newest first.
//
// Day-based modes end the current period on the reference day. The
// monthly mode uses the latest calendar month that is complete on the
// reference day.
func Audit(in AuditInput) ([]Period, error) {
	if in.PeriodsBack < 1 || in.PeriodsBack > MaxPeriodsBack {
		return nil, fmt.Errorf("periods back must be between 1 and %d, got %d", MaxPeriodsBack, in.PeriodsBack)
	}
	ref, err := Reference(in.Today, in.LagDays)
	if err != nil {
		return nil, err
	}

	if in.Mode == ModeMonthly {
		return monthlyPeriods(ref, in.PeriodsBack), nil
	}

	length, err := periodLength(in.Mode, in.CustomDays)
	if err != nil {
		return nil, err
	}
	periods := make([]Period, 0, in.PeriodsBack+1)
	end := ref
	for i := 0; i <= in.PeriodsBack; i++ {
		start := addDays(end, -(length - 1))
		periods = append(periods, Period{Label: periodLabel(i), Range: Range{Start: start, End: end}})
		end = addDays(start, -1)
	}
	return periods, nil
}

func periodLength(mode Mode, customDays int) (int, error) {
	switch mode {
	case ModeWeekly:
		return weeklyDays, nil
	case ModeBiweekly:
		return biweeklyDays, nil
	case ModeCustom:
		if customDays < 1 {
			return 0, fmt.Errorf("custom mode needs a positive day count, got %d", customDays)
		}
		return customDays, nil
	default:
		return 0, fmt.Errorf("unknown audit mode %q", mode)
	}
}

func monthlyPeriods(ref time.Time, back int) []Period {
	month := firstOfMonth(ref)
	if !lastOfMonth(ref).Equal(ref) {
		month = month.AddDate(0, -1, 0)
	}
	periods := make([]Period, 0, back+1)
	for i := 0; i <= back; i++ {
		periods = append(periods, Period{
			Label: periodLabel(i),
			Range: Range{Start: month, End: lastOfMonth(month)},
		})
		month = month.AddDate(0, -1, 0)
	}
	return periods
}

func periodLabel(i int) string {
	if i == 0 {
		return "Actual"
	}
	return fmt.Sprintf("Anterior %d", i)
}
