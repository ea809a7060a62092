package window

import "time"

// CoreUpdateInput describes a core update as selected by the user.
type CoreUpdateInput struct {
	Today   time.Time
	LagDays int
	Start   time.Time
	Ended   bool
	End     time.Time
}

// CoreUpdateWindows holds equal-length windows before and after an update.
type CoreUpdateWindows struct {
	Reference time.Time `json:"reference"`
	Span      int       `json:"span"`
	Pre       Range     `json:"pre"`
	Post      Range     `json:"post"`
}

// Full returns the range covering both windows.
func (w CoreUpdateWindows) Full() Range {
	return Range{Start: w.Pre.Start, End: w.Post.End}
}

// CoreUpdate computes the pre and post windows around a core update.
//
// For a finished update the post window starts the day after it ended and
// both windows last span days, where span is the distance between the end
// and the reference day. For an ongoing update the post window runs from
// the start to the reference day. Span is never below one day.
func CoreUpdate(in CoreUpdateInput) (CoreUpdateWindows, error) {
	ref, err := Reference(in.Today, in.LagDays)
	if err != nil {
		return CoreUpdateWindows{}, err
	}
	start := Truncate(in.Start)

	if in.Ended {
		if in.End.IsZero() {
			return CoreUpdateWindows{}, ErrMissingEnd
		}
		end := Truncate(in.End)
		if end.Before(start) {
			return CoreUpdateWindows{}, ErrEndBeforeStart
		}
		span := max(daysBetween(end, ref), 1)
		return CoreUpdateWindows{
			Reference: ref,
			Span:      span,
			Pre:       Range{Start: addDays(start, -span), End: addDays(start, -1)},
			Post:      Range{Start: addDays(end, 1), End: addDays(end, span)},
		}, nil
	}

	span := max(daysBetween(start, ref), 1)
	postEnd := ref
	if postEnd.Before(start) {
		// update starts after the last complete day: collapse to its first day
		postEnd = start
	}
	return CoreUpdateWindows{
		Reference: ref,
		Span:      span,
		Pre:       Range{Start: addDays(start, -span), End: addDays(start, -1)},
		Post:      Range{Start: start, End: postEnd},
	}, nil
}
