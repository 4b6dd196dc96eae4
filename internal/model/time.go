package model

import (
	"bytes"
	"fmt"
	"time"
)

// Time is a timestamp as sent by the backend. The backend emits ISO-8601
// values with or without a zone offset, so decoding accepts both.
type Time struct {
	time.Time
}

// timeLayouts lists accepted layouts, most specific first. Values without
// an offset are interpreted as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// UnmarshalJSON decodes null, an empty string, or an ISO-8601 timestamp.
func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("timestamp must be a JSON string, got %s", data)
	}
	raw := string(data[1 : len(data)-1])
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("parsing timestamp %q: unsupported layout", raw)
}

// MarshalJSON encodes the zero value as null and anything else as RFC 3339.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}

// Now returns the current time as a Time.
func Now() Time {
	return Time{Time: time.Now().UTC()}
}

// Bool returns a pointer to b, for optional request fields.
func Bool(b bool) *bool { return &b }

// String returns a pointer to s, for optional request fields.
func String(s string) *string { return &s }

// Int64 returns a pointer to n.
func Int64(n int64) *int64 { return &n }
