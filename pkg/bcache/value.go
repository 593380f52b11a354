package bcache

// ValueKind discriminates the tagged union Value represents: either raw
// bytes, or one node of the JSON-like structured value model (§3, §6).
type ValueKind int

const (
	KindBytes ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindSequence
	KindMapping
)

func (k ValueKind) String() string {
	switch k {
	case KindBytes:
		return "bytes"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is a single cache value: either an opaque byte string or a node of
// the structured value model (bool, int, float, string, ordered sequence,
// or string-keyed mapping). Construct one with the *Value constructors below;
// inspect it with Kind and the matching accessor.
//
// A top-level String value is stored identically to a Bytes value (raw
// UTF-8 passthrough, no structured encoding) — see DESIGN.md's resolution of
// the "numeric string" open question — and is read back as a Bytes value.
// String and Equal therefore treat a Bytes value and a String value with the
// same content alike. Strings nested inside a Sequence or Mapping are still
// structured-encoded normally.
type Value struct {
	kind ValueKind

	bytes   []byte
	boolean bool
	integer int64
	float   float64
	str     string
	seq     []Value
	mapping map[string]Value
}

// BytesValue wraps a raw byte string.
func BytesValue(b []byte) Value { return Value{kind: KindBytes, bytes: b} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: KindBool, boolean: b} }

// IntValue wraps a signed integer.
func IntValue(i int64) Value { return Value{kind: KindInt, integer: i} }

// FloatValue wraps an IEEE-754 double.
func FloatValue(f float64) Value { return Value{kind: KindFloat, float: f} }

// StringValue wraps a UTF-8 string.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// SequenceValue wraps an ordered sequence of values.
func SequenceValue(seq []Value) Value { return Value{kind: KindSequence, seq: seq} }

// MappingValue wraps a string-keyed mapping of values.
func MappingValue(m map[string]Value) Value { return Value{kind: KindMapping, mapping: m} }

// Kind reports which alternative of the tagged union v holds.
func (v Value) Kind() ValueKind { return v.kind }

// Bytes returns the wrapped byte string and true iff Kind() == KindBytes.
func (v Value) Bytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}

	return v.bytes, true
}

// Bool returns the wrapped boolean and true iff Kind() == KindBool.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}

	return v.boolean, true
}

// Int returns the wrapped integer and true iff Kind() == KindInt.
func (v Value) Int() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}

	return v.integer, true
}

// Float returns the wrapped double and true iff Kind() == KindFloat.
func (v Value) Float() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}

	return v.float, true
}

// String returns the wrapped string and true iff Kind() == KindString or
// Kind() == KindBytes (a Bytes value yields its content as a string).
func (v Value) String() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindBytes:
		return string(v.bytes), true
	default:
		return "", false
	}
}

// Sequence returns the wrapped ordered sequence and true iff
// Kind() == KindSequence.
func (v Value) Sequence() ([]Value, bool) {
	if v.kind != KindSequence {
		return nil, false
	}

	return v.seq, true
}

// Mapping returns the wrapped string-keyed mapping and true iff
// Kind() == KindMapping.
func (v Value) Mapping() (map[string]Value, bool) {
	if v.kind != KindMapping {
		return nil, false
	}

	return v.mapping, true
}

// Equal reports whether v and other represent the same value. A Bytes value
// and a String value are equal when their contents are.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		a, aok := v.String()
		b, bok := other.String()

		return aok && bok && a == b
	}

	switch v.kind {
	case KindBytes:
		return string(v.bytes) == string(other.bytes)
	case KindBool:
		return v.boolean == other.boolean
	case KindInt:
		return v.integer == other.integer
	case KindFloat:
		return v.float == other.float
	case KindString:
		return v.str == other.str
	case KindSequence:
		if len(v.seq) != len(other.seq) {
			return false
		}

		for i := range v.seq {
			if !v.seq[i].Equal(other.seq[i]) {
				return false
			}
		}

		return true
	case KindMapping:
		if len(v.mapping) != len(other.mapping) {
			return false
		}

		for key, val := range v.mapping {
			otherVal, ok := other.mapping[key]
			if !ok || !val.Equal(otherVal) {
				return false
			}
		}

		return true
	default:
		return false
	}
}
