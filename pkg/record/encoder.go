package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/grovetools/provenance/errors"
)

// Converter turns a value the JSON encoder cannot represent into one it can.
type Converter func(v interface{}) (interface{}, error)

// Encoder serializes record fields as JSON with sorted keys, four-space
// indentation and a trailing newline. Values of types with a registered
// converter are converted first; any other non-JSON value is an
// UNSUPPORTED_TYPE error.
type Encoder struct {
	converters map[reflect.Type]Converter
}

// NewEncoder returns an encoder with converters for time.Time (RFC 3339
// with nanoseconds) and time.Duration (its String form).
func NewEncoder() *Encoder {
	e := &Encoder{converters: make(map[reflect.Type]Converter)}
	e.Register(time.Time{}, func(v interface{}) (interface{}, error) {
		return v.(time.Time).Format(time.RFC3339Nano), nil
	})
	e.Register(time.Duration(0), func(v interface{}) (interface{}, error) {
		return v.(time.Duration).String(), nil
	})
	return e
}

// Register installs fn for values with the same dynamic type as sample,
// replacing any converter already registered for it.
func (e *Encoder) Register(sample interface{}, fn Converter) *Encoder {
	e.converters[reflect.TypeOf(sample)] = fn
	return e
}

// Encode serializes fields.
func (e *Encoder) Encode(fields map[string]interface{}) ([]byte, error) {
	normalized := make(map[string]interface{}, len(fields))
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := e.normalize(k, fields[k])
		if err != nil {
			return nil, err
		}
		normalized[k] = v
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	// encoding/json writes map keys in sorted order.
	if err := enc.Encode(normalized); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "encoding record")
	}
	return buf.Bytes(), nil
}

// normalize converts v into plain JSON values: strings, bools, numbers,
// nil, slices and string-keyed maps.
func (e *Encoder) normalize(key string, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}

	if fn, ok := e.converters[reflect.TypeOf(v)]; ok {
		converted, err := fn(v)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeUnsupportedType,
				fmt.Sprintf("converting %T (key %q)", v, key)).
				WithDetail("key", key)
		}
		return e.normalize(key, converted)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return e.normalize(key, rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []interface{}{}, nil
		}
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := e.normalize(key, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			item, err := e.normalize(key, iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = item
		}
		return out, nil
	}

	return nil, errors.UnsupportedType(key, fmt.Sprintf("%T", v))
}
