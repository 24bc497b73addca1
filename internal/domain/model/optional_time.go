package model

import (
	"bytes"
	"encoding/json"
	"time"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

// OptionalTime records whether a JSON field was present, explicitly null, or a
// date. Unparseable values are kept as Invalid so validation can report them
// per field instead of failing the whole decode.
type OptionalTime struct {
	Set     bool
	Value   *time.Time
	Invalid bool
}

func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.Value = nil
	o.Invalid = false
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		o.Invalid = true
		return nil
	}
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			o.Value = &t
			return nil
		}
	}
	o.Invalid = true
	return nil
}
