package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Extra holds object members this package does not model. They are kept
// verbatim so a document written by another client survives a round trip.
type Extra map[string]json.RawMessage

// splitExtra returns the members of the JSON object data whose names are not
// in known, or nil when there are none.
func splitExtra(data []byte, known map[string]struct{}) (Extra, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	var extra Extra
	for name, raw := range members {
		if _, ok := known[name]; ok {
			continue
		}
		if extra == nil {
			extra = make(Extra)
		}
		extra[name] = append(json.RawMessage(nil), raw...)
	}
	return extra, nil
}

// mergeExtra adds the members of extra that encoded does not already carry.
func mergeExtra(encoded []byte, extra Extra) ([]byte, error) {
	if len(extra) == 0 {
		return encoded, nil
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &members); err != nil {
		return nil, err
	}
	for name, raw := range extra {
		if _, ok := members[name]; ok {
			continue
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("invalid value for member %q", name)
		}
		members[name] = bytes.TrimSpace(raw)
	}
	return json.Marshal(members)
}

// Clone returns a deep copy of e.
func (e Extra) Clone() Extra {
	if e == nil {
		return nil
	}
	out := make(Extra, len(e))
	for name, raw := range e {
		out[name] = append(json.RawMessage(nil), raw...)
	}
	return out
}

func knownMembers(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
