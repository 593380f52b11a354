package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ddofborg/blob-cache/pkg/bcache"
)

// jsonToValue parses raw as JSON and converts it to a bcache.Value using the
// package's exported constructors. It is the CLI-layer counterpart to
// pkg/bcache's unexported valueToAny/anyToValue: the core engine never needs
// to build a Value from free-form JSON text, only the REPL's "setjson"
// command does.
func jsonToValue(raw string) (bcache.Value, error) {
	decoder := json.NewDecoder(bytes.NewReader([]byte(raw)))
	decoder.UseNumber()

	var any interface{}
	if err := decoder.Decode(&any); err != nil {
		return bcache.Value{}, fmt.Errorf("decoding JSON: %w", err)
	}

	return anyToValue(any)
}

func anyToValue(any interface{}) (bcache.Value, error) {
	switch t := any.(type) {
	case nil:
		return bcache.Value{}, fmt.Errorf("null is not a representable value")
	case bool:
		return bcache.BoolValue(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return bcache.IntValue(i), nil
		}

		f, err := t.Float64()
		if err != nil {
			return bcache.Value{}, fmt.Errorf("invalid number %q: %w", t, err)
		}

		return bcache.FloatValue(f), nil
	case string:
		return bcache.StringValue(t), nil
	case []interface{}:
		seq := make([]bcache.Value, len(t))

		for i, elem := range t {
			v, err := anyToValue(elem)
			if err != nil {
				return bcache.Value{}, err
			}

			seq[i] = v
		}

		return bcache.SequenceValue(seq), nil
	case map[string]interface{}:
		mapping := make(map[string]bcache.Value, len(t))

		for key, elem := range t {
			v, err := anyToValue(elem)
			if err != nil {
				return bcache.Value{}, err
			}

			mapping[key] = v
		}

		return bcache.MappingValue(mapping), nil
	default:
		return bcache.Value{}, fmt.Errorf("unsupported JSON node %T", any)
	}
}

// valueToJSON renders a sequence or mapping Value back to JSON text for
// display in the REPL.
func valueToJSON(v bcache.Value) string {
	any, err := valueToAny(v)
	if err != nil {
		return fmt.Sprintf("<unrepresentable value: %v>", err)
	}

	out, err := json.Marshal(any)
	if err != nil {
		return fmt.Sprintf("<encode error: %v>", err)
	}

	return string(out)
}

func valueToAny(v bcache.Value) (interface{}, error) {
	switch v.Kind() {
	case bcache.KindBytes:
		b, _ := v.Bytes()

		return string(b), nil
	case bcache.KindBool:
		b, _ := v.Bool()

		return b, nil
	case bcache.KindInt:
		i, _ := v.Int()

		return i, nil
	case bcache.KindFloat:
		f, _ := v.Float()

		return f, nil
	case bcache.KindString:
		s, _ := v.String()

		return s, nil
	case bcache.KindSequence:
		seq, _ := v.Sequence()
		arr := make([]interface{}, len(seq))

		for i, elem := range seq {
			encoded, err := valueToAny(elem)
			if err != nil {
				return nil, err
			}

			arr[i] = encoded
		}

		return arr, nil
	case bcache.KindMapping:
		mapping, _ := v.Mapping()
		obj := make(map[string]interface{}, len(mapping))

		for key, elem := range mapping {
			encoded, err := valueToAny(elem)
			if err != nil {
				return nil, err
			}

			obj[key] = encoded
		}

		return obj, nil
	default:
		return nil, fmt.Errorf("unknown value kind %s", v.Kind())
	}
}
