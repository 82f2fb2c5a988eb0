package availability

import "time"

// TimeRange is an immutable half-open interval [Start, End): the start
// instant is included, the end instant is not. Two ranges that only touch
// at an endpoint do not overlap.
type TimeRange struct {
	Start time.Time `gorm:"column:start_time;not null;index" json:"start_time"`
	End   time.Time `gorm:"column:end_time;not null" json:"end_time"`
}

// NewTimeRange builds a validated range. Zero-length and inverted ranges
// are rejected with ErrInvalidRange.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if !start.Before(end) {
		return TimeRange{}, ErrInvalidRange
	}
	return TimeRange{Start: start, End: end}, nil
}

func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// Contains reports whether other lies entirely inside r.
func (r TimeRange) Contains(other TimeRange) bool {
	return !other.Start.Before(r.Start) && !other.End.After(r.End)
}

// Subtract removes other from r and returns the 0, 1, or 2 remaining
// pieces in ascending order. Used when trimming availability around an
// existing booking.
func (r TimeRange) Subtract(other TimeRange) []TimeRange {
	if !r.Overlaps(other) {
		return []TimeRange{r}
	}

	var out []TimeRange
	if r.Start.Before(other.Start) {
		out = append(out, TimeRange{Start: r.Start, End: other.Start})
	}
	if other.End.Before(r.End) {
		out = append(out, TimeRange{Start: other.End, End: r.End})
	}
	return out
}
