package xrplsale

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
	"time"
)

// Time is a timestamp as sent by the XRPL.Sale API: an RFC 3339 string, unix seconds,
// or null/"" for unset.
type Time struct {
	time.Time
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (m *Time) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" || string(data) == `""` {
		m.Time = time.Time{}
		return nil
	}

	if len(data) > 0 && data[0] != '"' {
		secs, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return &json.UnmarshalTypeError{Value: "number " + string(data), Type: reflect.TypeFor[time.Time]()}
		}
		m.Time = time.Unix(secs, 0).UTC()
		return nil
	}

	return json.Unmarshal(data, &m.Time)
}

// MarshalJSON implements the [json.Marshaler] interface. The zero time encodes as null.
func (m Time) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(m.Time.UTC())
}
