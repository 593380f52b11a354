package bcache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// encodeValue turns v into the bytes stored in a frame's payload, and
// reports whether it should be stored with is_bytes=1 (raw passthrough) or
// is_bytes=0 (structured-encoded). A top-level Bytes or String value is
// always raw passthrough — see DESIGN.md's resolution of the "numeric
// string" open question (§9, note 3): treating top-level strings as raw
// bytes keeps set/get lossless without the original's loose numeric-string
// detection.
func encodeValue(v Value) (payload []byte, isBytes bool, err error) {
	switch v.kind {
	case KindBytes:
		return v.bytes, true, nil
	case KindString:
		return []byte(v.str), true, nil
	case KindBool, KindInt, KindFloat, KindSequence, KindMapping:
		any, err := valueToAny(v)
		if err != nil {
			return nil, false, err
		}

		encoded, err := json.Marshal(any)
		if err != nil {
			return nil, false, wrapCodecError("encode structured value", err)
		}

		return encoded, false, nil
	default:
		return nil, false, fmt.Errorf("%w: unknown value kind %d", ErrBadValue, v.kind)
	}
}

// decodeValue is the inverse of encodeValue: isBytes true yields a raw
// Bytes value; otherwise payload is parsed as a structured value.
// decodeAsMapping controls how a JSON object whose keys are exactly
// "0".."n-1" in order is decoded: true always yields a Mapping, false
// recovers a Sequence (mirroring how the structured value model has no
// separate "object" vs "indexed array" distinction — see Options doc).
func decodeValue(payload []byte, isBytes bool, decodeAsMapping bool) (Value, error) {
	if isBytes {
		return BytesValue(payload), nil
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var any interface{}
	if err := decoder.Decode(&any); err != nil {
		return Value{}, wrapCodecError("decode structured value", err)
	}

	return anyToValue(any, decodeAsMapping)
}

func valueToAny(v Value) (interface{}, error) {
	switch v.kind {
	case KindBool:
		return v.boolean, nil
	case KindInt:
		return json.Number(strconv.FormatInt(v.integer, 10)), nil
	case KindFloat:
		return json.Number(strconv.FormatFloat(v.float, 'g', -1, 64)), nil
	case KindString:
		return v.str, nil
	case KindSequence:
		arr := make([]interface{}, len(v.seq))

		for i, elem := range v.seq {
			encoded, err := valueToAny(elem)
			if err != nil {
				return nil, err
			}

			arr[i] = encoded
		}

		return arr, nil
	case KindMapping:
		obj := make(map[string]interface{}, len(v.mapping))

		for key, elem := range v.mapping {
			encoded, err := valueToAny(elem)
			if err != nil {
				return nil, err
			}

			obj[key] = encoded
		}

		return obj, nil
	default:
		return nil, fmt.Errorf("%w: %s is not a structured-encodable value", ErrBadValue, v.kind)
	}
}

func anyToValue(any interface{}, decodeAsMapping bool) (Value, error) {
	switch t := any.(type) {
	case nil:
		return Value{}, fmt.Errorf("%w: null is not a representable value", ErrCodecError)
	case bool:
		return BoolValue(t), nil
	case json.Number:
		return numberToValue(t)
	case string:
		return StringValue(t), nil
	case []interface{}:
		seq := make([]Value, len(t))

		for i, elem := range t {
			decoded, err := anyToValue(elem, decodeAsMapping)
			if err != nil {
				return Value{}, err
			}

			seq[i] = decoded
		}

		return SequenceValue(seq), nil
	case map[string]interface{}:
		if !decodeAsMapping {
			if seq, ok := sequentialArrayObject(t); ok {
				decoded := make([]Value, len(seq))

				for i, elem := range seq {
					v, err := anyToValue(elem, decodeAsMapping)
					if err != nil {
						return Value{}, err
					}

					decoded[i] = v
				}

				return SequenceValue(decoded), nil
			}
		}

		mapping := make(map[string]Value, len(t))

		for key, elem := range t {
			decoded, err := anyToValue(elem, decodeAsMapping)
			if err != nil {
				return Value{}, err
			}

			mapping[key] = decoded
		}

		return MappingValue(mapping), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported JSON node %T", ErrCodecError, any)
	}
}

// sequentialArrayObject reports whether obj's keys are exactly "0".."n-1",
// returning the values in index order if so.
func sequentialArrayObject(obj map[string]interface{}) ([]interface{}, bool) {
	if len(obj) == 0 {
		return nil, false
	}

	ordered := make([]interface{}, len(obj))

	for key, val := range obj {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(obj) {
			return nil, false
		}

		ordered[idx] = val
	}

	return ordered, true
}

func numberToValue(n json.Number) (Value, error) {
	if i, err := n.Int64(); err == nil && !looksLikeFloat(string(n)) {
		return IntValue(i), nil
	}

	f, err := n.Float64()
	if err != nil {
		return Value{}, fmt.Errorf("%w: invalid number %q", ErrCodecError, n)
	}

	return FloatValue(f), nil
}

func looksLikeFloat(s string) bool {
	for _, r := range s {
		if r == '.' || r == 'e' || r == 'E' {
			return true
		}
	}

	return false
}
