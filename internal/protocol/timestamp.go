package protocol

import "time"

// henryTimestampLayout is the Henry protocol's wall-clock rendering:
// dd/mm/yyyy HH:MM:SS.
const henryTimestampLayout = "02/01/2006 15:04:05"

// Timestamp wraps a local wall-clock time rendered in Henry's
// dd/mm/yyyy HH:MM:SS format.
type Timestamp struct {
	t time.Time
}

// Now returns the current local time as a Timestamp.
func Now() Timestamp {
	return Timestamp{t: time.Now().Local()}
}

// TimestampFromTime wraps an existing time.Time.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{t: t}
}

// ParseTimestamp parses the Henry wall-clock format. Non-existent local
// times (a DST spring-forward gap) are rejected; ambiguous local times (a
// DST fall-back overlap) resolve to the earliest occurrence, which is
// time.ParseInLocation's own tie-breaking behavior for the pre-transition
// offset.
func ParseTimestamp(s string) (Timestamp, error) {
	parsed, err := time.ParseInLocation(henryTimestampLayout, s, time.Local)
	if err != nil {
		return Timestamp{}, &InvalidMessageFormatError{Message: "invalid timestamp '" + s + "': " + err.Error()}
	}

	// time.ParseInLocation silently shifts a non-existent wall-clock time
	// (e.g. 02:30 during a spring-forward gap that skips 02:00-03:00)
	// forward across the gap. Detect that by re-rendering and comparing:
	// a valid time always round-trips to the same string.
	if parsed.Format(henryTimestampLayout) != s {
		return Timestamp{}, &InvalidMessageFormatError{Message: "invalid local time '" + s + "' (possibly during a DST transition)"}
	}

	return Timestamp{t: parsed}, nil
}

// Format renders the timestamp in Henry's dd/mm/yyyy HH:MM:SS format.
func (ts Timestamp) Format() string {
	return ts.t.Format(henryTimestampLayout)
}

// Time returns the underlying time.Time.
func (ts Timestamp) Time() time.Time { return ts.t }

// String implements fmt.Stringer.
func (ts Timestamp) String() string { return ts.Format() }
