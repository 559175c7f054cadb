// ABOUTME: Adapter between generic JSON node trees and Value
// ABOUTME: Applies the numeric policy: int32 when it fits, then int64, then double

package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// FromNode converts a generic decoded JSON tree into a Value. Numbers should
// be json.Number (decoder.UseNumber); float64 nodes are accepted as doubles.
func FromNode(node any) (Value, error) {
	switch x := node.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case json.Number:
		return numberValue(x)
	case float64:
		return Double(x), nil
	case []any:
		out := make([]Value, len(x))
		for i, e := range x {
			v, err := FromNode(e)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return Value{kind: KindArray, v: out}, nil
	case map[string]any:
		out := make(map[string]Value, len(x))
		for k, e := range x {
			v, err := FromNode(e)
			if err != nil {
				return Value{}, err
			}
			out[k] = v
		}
		return Value{kind: KindObject, v: out}, nil
	}
	return Value{}, fmt.Errorf("%w: node %T", ErrUnsupportedType, node)
}

func numberValue(n json.Number) (Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return Uint(u), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return Double(f), nil
}

// UnmarshalJSON decodes any JSON text into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var node any
	if err := dec.Decode(&node); err != nil {
		return err
	}
	out, err := FromNode(node)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// MarshalJSON encodes v. Doubles always carry a fraction or exponent so they
// read back as doubles; object keys are written in sorted order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch x := v.v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(x))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(x, 10))
	case float64:
		return encodeDouble(buf, x)
	case string:
		return encodeString(buf, x)
	case []Value:
		buf.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]Value:
		buf.WriteByte('{')
		for i, k := range slices.Sorted(maps.Keys(x)) {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := x[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: stored %T", ErrUnsupportedType, x)
	}
	return nil
}

func encodeDouble(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("cannot encode non-finite double %v", f)
	}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	buf.Write(b)
	if !bytes.ContainsAny(b, ".eE") {
		buf.WriteString(".0")
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates with a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}
