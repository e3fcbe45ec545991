package transitdb

import (
	"database/sql"
	"time"
)

// timestampLayout is the storage format for all timestamps. RFC3339 in UTC
// sorts lexicographically in chronological order, which the lag-by-one
// stationary query depends on, and is accepted by SQLite's strftime().
const timestampLayout = time.RFC3339

// FormatTimestamp renders t in the canonical storage format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp parses a stored timestamp back into a time.Time.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

// ToNullString converts a string to sql.NullString, with empty strings becoming NULL.
func ToNullString(s string) sql.NullString {
	return sql.NullString{
		String: s,
		Valid:  s != "",
	}
}

// ToNullFloat64 wraps a float in a valid sql.NullFloat64. Unlike ToNullString
// there is no sentinel: zero is a legitimate stored value (a stopped vehicle
// reports speed 0), so absence must be expressed by the caller passing the
// zero sql.NullFloat64 instead.
func ToNullFloat64(f float64) sql.NullFloat64 {
	return sql.NullFloat64{
		Float64: f,
		Valid:   true,
	}
}
