package window

import "time"

// EvergreenMonths is the number of full calendar months in an evergreen window.
const EvergreenMonths = 16

// EvergreenWindow is a run of full calendar months ending before the reference month.
type EvergreenWindow struct {
	Reference time.Time `json:"reference"`
	Range     Range     `json:"range"`
	Months    []Range   `json:"months"`
}

// Evergreen returns the 16 full calendar months that end the month before
// the reference day's month.
func Evergreen(today time.Time, lagDays int) (EvergreenWindow, error) {
	ref, err := Reference(today, lagDays)
	if err != nil {
		return EvergreenWindow{}, err
	}
	endMonth := firstOfMonth(ref).AddDate(0, -1, 0)
	startMonth := endMonth.AddDate(0, -(EvergreenMonths - 1), 0)
	r := Range{Start: startMonth, End: lastOfMonth(endMonth)}
	return EvergreenWindow{Reference: ref, Range: r, Months: Months(r)}, nil
}

// Months splits r into calendar-month ranges, clipping the first and last
// month to the bounds of r.
func Months(r Range) []Range {
	if r.End.Before(r.Start) {
		return nil
	}
	var out []Range
	for cur := firstOfMonth(r.Start); !cur.After(r.End); cur = cur.AddDate(0, 1, 0) {
		m := Range{Start: cur, End: lastOfMonth(cur)}
		if m.Start.Before(r.Start) {
			m.Start = r.Start
		}
		if m.End.After(r.End) {
			m.End = r.End
		}
		out = append(out, m)
	}
	return out
}
