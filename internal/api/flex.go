package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FlexString accepts a JSON string, number, or null and keeps the text form.
// Pagination fields arrive as either 12 or "12" or "all".
type FlexString struct {
	Value string
	Set   bool
}

// Flex builds a set FlexString.
func Flex(value string) FlexString {
	return FlexString{Value: value, Set: true}
}

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = FlexString{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString{Value: s, Set: true}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString{Value: n.String(), Set: true}
	return nil
}

func (f FlexString) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}
