package experiment

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// FileScheme prefixes text values whose replacement is the content of a
// file, e.g. "file://fragments/vector.xml".
const FileScheme = "file://"

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindText ValueKind = iota
	KindNumber
)

func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Value is a placeholder replacement: either text or a number. Numbers
// are rendered to decimal text once, when the Value is built.
type Value struct {
	kind ValueKind
	text string
}

// Text returns a text Value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Number returns a numeric Value rendered in plain decimal notation.
// Integral floats keep a trailing ".0" so 80.0 stays distinct from 80.
func Number(f float64) Value {
	text := strconv.FormatFloat(f, 'f', -1, 64)
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		text += ".0"
	}
	return Value{kind: KindNumber, text: text}
}

// Int returns a numeric Value for an integer.
func Int(n int64) Value {
	return Value{kind: KindNumber, text: strconv.FormatInt(n, 10)}
}

// Kind reports which variant v holds.
func (v Value) Kind() ValueKind { return v.kind }

// String returns the rendered text of v. File references are returned
// as-is; they are resolved during substitution.
func (v Value) String() string { return v.text }

// IsFileRef reports whether v is a text value pointing at a file.
func (v Value) IsFileRef() bool {
	return v.kind == KindText && strings.HasPrefix(v.text, FileScheme)
}

// FilePath returns the path part of a file reference.
func (v Value) FilePath() string {
	return strings.TrimPrefix(v.text, FileScheme)
}

// MarshalJSON encodes numbers as JSON numbers and text as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber {
		return []byte(v.text), nil
	}
	return json.Marshal(v.text)
}

// ParseValue converts a decoded JSON or YAML scalar into a Value.
func ParseValue(raw any) (Value, error) {
	v, err := valueOf(raw)
	if err != nil {
		return Value{}, &Error{Kind: ErrInputFormat, Msg: err.Error()}
	}
	return v, nil
}

func valueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case string:
		return Text(x), nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return Int(n), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q", x.String())
		}
		return Number(f), nil
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case int32:
		return Int(int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return Number(float64(x)), nil
		}
		return Int(int64(x)), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	default:
		return Value{}, fmt.Errorf("value %v (%T) must be a string or a number", raw, raw)
	}
}

// Arm maps placeholder tokens to replacement values. Tokens are not
// validated until the arm is applied.
type Arm map[string]Value

// Tokens returns the placeholder tokens of the arm in sorted order.
func (a Arm) Tokens() []string {
	tokens := make([]string, 0, len(a))
	for token := range a {
		tokens = append(tokens, token)
	}
	slices.Sort(tokens)
	return tokens
}

// ParseArm converts a decoded mapping of token to scalar into an Arm.
func ParseArm(raw map[string]any) (Arm, error) {
	arm, err := parseArm(raw)
	if err != nil {
		return nil, &Error{Kind: ErrInputFormat, Msg: err.Error()}
	}
	return arm, nil
}

func parseArm(raw map[string]any) (Arm, error) {
	arm := make(Arm, len(raw))
	for token, rv := range raw {
		v, err := valueOf(rv)
		if err != nil {
			return nil, fmt.Errorf("placeholder %q: %w", token, err)
		}
		arm[token] = v
	}
	return arm, nil
}

// Sweep maps arm names to arms.
type Sweep map[string]Arm

// ArmNames returns the arm names of the sweep in sorted order.
func (s Sweep) ArmNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
