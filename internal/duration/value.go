package duration

import (
	"bytes"
	"encoding/json"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Value is a duration exactly as written in a project document: a JSON
// number or a string token. It round-trips through JSON and YAML unchanged.
type Value struct {
	raw any
}

// Of wraps a raw value (int, float64, string, json.Number).
func Of(raw any) Value { return Value{raw: raw} }

// Raw returns the wrapped value.
func (v Value) Raw() any { return v.raw }

// Days returns the parsed duration, or zero when it does not parse.
func (v Value) Days() int { return Days(v.raw) }

// Validate returns the parse error, if any.
func (v Value) Validate() error {
	_, err := Parse(v.raw)
	return err
}

// IsZero reports whether no value was provided. Used by yaml omitempty.
func (v Value) IsZero() bool { return v.raw == nil }

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		v.raw = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v.raw = s
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var n any
	if err := dec.Decode(&n); err != nil {
		return err
	}
	if num, ok := n.(json.Number); ok {
		if i, err := num.Int64(); err == nil {
			v.raw = int(i)
			return nil
		}
	}
	v.raw = n
	return nil
}

func (v Value) MarshalYAML() (any, error) {
	return v.raw, nil
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Tag {
	case "!!int":
		n, err := strconv.Atoi(node.Value)
		if err != nil {
			v.raw = node.Value
			return nil
		}
		v.raw = n
	case "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			v.raw = node.Value
			return nil
		}
		v.raw = f
	case "!!null":
		v.raw = nil
	default:
		v.raw = node.Value
	}
	return nil
}
