// Package canonical produces a deterministic, key-order-independent encoding
// of JSON-shaped values so two documents can be compared for equality.
//
// Mapping keys are sorted lexicographically at every depth, sequence order is
// preserved, and null members of a mapping are omitted. Numbers are decoded
// as json.Number and rendered in one normal form, so 1, 1.0 and 1e0 compare
// equal.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/jos-todo/todosync/internal/model"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Seq
	Map
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Seq:
		return "seq"
	case Map:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the JSON data model. Only the field matching
// Kind is meaningful.
type Value struct {
	Kind    Kind
	Bool    bool
	Num     json.Number
	Str     string
	Items   []Value
	Entries map[string]Value
}

// FromJSON parses raw JSON into a Value.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("failed to decode value: %w", err)
	}
	return fromAny(raw)
}

// FromAny converts an arbitrary Go value by marshaling it to JSON first, so
// custom MarshalJSON methods participate.
func FromAny(v any) (Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Value{}, fmt.Errorf("failed to marshal value: %w", err)
	}
	return FromJSON(data)
}

func fromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Value{Kind: Null}, nil
	case bool:
		return Value{Kind: Bool, Bool: x}, nil
	case json.Number:
		return Value{Kind: Number, Num: x}, nil
	case string:
		return Value{Kind: String, Str: x}, nil
	case []any:
		items := make([]Value, 0, len(x))
		for _, item := range x {
			v, err := fromAny(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Value{Kind: Seq, Items: items}, nil
	case map[string]any:
		entries := make(map[string]Value, len(x))
		for k, item := range x {
			v, err := fromAny(item)
			if err != nil {
				return Value{}, err
			}
			entries[k] = v
		}
		return Value{Kind: Map, Entries: entries}, nil
	default:
		return Value{}, fmt.Errorf("unsupported JSON type %T", raw)
	}
}

// Encode writes the canonical serialization of v.
func Encode(v Value) []byte {
	var buf bytes.Buffer
	encode(&buf, v)
	return buf.Bytes()
}

func encode(buf *bytes.Buffer, v Value) {
	switch v.Kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.Bool))
	case Number:
		buf.WriteString(normalizeNumber(v.Num))
	case String:
		writeString(buf, v.Str)
	case Seq:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			encode(buf, item)
		}
		buf.WriteByte(']')
	case Map:
		keys := make([]string, 0, len(v.Entries))
		for k, item := range v.Entries {
			if item.Kind == Null {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			encode(buf, v.Entries[k])
		}
		buf.WriteByte('}')
	}
}

func writeString(buf *bytes.Buffer, s string) {
	// json.Marshal of a string cannot fail.
	data, _ := json.Marshal(s)
	buf.Write(data)
}

// normalizeNumber renders integers without a fractional part and everything
// else in Go's shortest float form, so 1, 1.0 and 1e0 encode identically.
func normalizeNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Of returns the canonical serialization of any JSON-marshalable value.
func Of(v any) ([]byte, error) {
	val, err := FromAny(v)
	if err != nil {
		return nil, err
	}
	return Encode(val), nil
}

// Equal reports whether a and b have identical canonical forms. Values that
// cannot be marshaled are never equal.
func Equal(a, b any) bool {
	left, err := Of(a)
	if err != nil {
		return false
	}
	right, err := Of(b)
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}

// DocumentsEqual compares two documents by canonical form.
func DocumentsEqual(l, r model.Document) bool {
	return Equal(l, r)
}
