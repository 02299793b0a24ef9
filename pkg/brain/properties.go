package brain

import (
	"encoding/json"
	"fmt"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindFloat Kind = iota
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a node property: float, string or bool.
type Value struct {
	kind Kind
	f    float64
	s    string
	b    bool
}

func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }
func (v Value) Str() (string, bool)    { return v.s, v.kind == KindString }
func (v Value) Bool() (bool, bool)     { return v.b, v.kind == KindBool }

// Equal reports whether both values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	default:
		return v.b == o.b
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	default:
		return fmt.Sprintf("%t", v.b)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	default:
		return json.Marshal(v.b)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueOf converts a decoded scalar (JSON/YAML) into a Value.
func ValueOf(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case float64:
		return Float(x), nil
	case float32:
		return Float(float64(x)), nil
	case int:
		return Float(float64(x)), nil
	case int64:
		return Float(float64(x)), nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	default:
		return Value{}, fmt.Errorf("unsupported property value %T: %w", raw, ErrInput)
	}
}

// Properties maps property names to values.
type Properties map[string]Value

// Get returns the named property and whether it is present.
func (p Properties) Get(name string) (Value, bool) {
	v, ok := p[name]
	return v, ok
}

// Has reports whether the property is present.
func (p Properties) Has(name string) bool {
	_, ok := p[name]
	return ok
}

func (p Properties) clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
