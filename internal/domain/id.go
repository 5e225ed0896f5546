package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ID is the canonical identifier used across the storefront. The backend emits
// numeric ids while older payloads used strings; both decode to the same value.
type ID string

// String implements fmt.Stringer.
func (id ID) String() string { return string(id) }

// Empty reports whether the id is unset.
func (id ID) Empty() bool { return strings.TrimSpace(string(id)) == "" }

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric-looking ids as JSON numbers so the backend can bind
// them to its Long fields; anything else is emitted as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return []byte("null"), nil
	}
	if isDigits(s) {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

// firstID returns the first non-empty id among the aliases the backend has used
// for the same field over time.
func firstID(candidates ...ID) ID {
	for _, c := range candidates {
		if !c.Empty() {
			return c
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
