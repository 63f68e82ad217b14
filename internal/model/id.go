package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ID is a stable opaque identifier for tasks and projects.
//
// Older clients minted numeric ids (milliseconds since epoch), newer ones mint
// UUIDs. Both are accepted; numeric ids are written back as JSON numbers so a
// round trip does not change their representation.
type ID string

// NewID returns a fresh random identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool {
	return id == ""
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if isIntegerLiteral(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

func isIntegerLiteral(s string) bool {
	if s == "" || (len(s) > 1 && s[0] == '0') || strings.HasPrefix(s, "-") {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}
