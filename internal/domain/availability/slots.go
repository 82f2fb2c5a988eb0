package availability

import "time"

// GenerateSlotRanges tiles r into contiguous sub-ranges of exactly
// durationMinutes, ordered by start time. A trailing remainder shorter
// than one full duration is discarded. The result is materialized once at
// publish time so slot identity stays stable afterwards.
func GenerateSlotRanges(r TimeRange, durationMinutes int) ([]TimeRange, error) {
	if durationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}

	step := time.Duration(durationMinutes) * time.Minute
	if step > r.Duration() {
		return nil, ErrInvalidDuration
	}

	var out []TimeRange
	for cur := r.Start; !cur.Add(step).After(r.End); cur = cur.Add(step) {
		out = append(out, TimeRange{Start: cur, End: cur.Add(step)})
	}
	return out, nil
}
