package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ID is an upstream identifier that may arrive as a JSON string or number.
// It always marshals as a string.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (i *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*i = ""
		return nil
	}
	if trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		*i = ID(strings.TrimSpace(raw))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(trimmed, &num); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*i = ID(num.String())
	return nil
}

func (i ID) String() string { return string(i) }

func (i ID) IsZero() bool { return strings.TrimSpace(string(i)) == "" }
