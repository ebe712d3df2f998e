package blackboard

import (
	"reflect"
	"strconv"
)

// Any is the type-erased escape hatch described in spec.md §4.2 rule 6.
// Writing an Any into an entry bypasses the type lock entirely, the same
// way BT::Any does in the source library; it is the mechanism generic
// ports use to accept a write of whatever type the caller has in hand.
type Any struct {
	Value interface{}
}

var anyType = reflect.TypeOf(Any{})

// FromStringFunc parses a string literal into a value of a registered
// port type. This is the "universal donor" mechanism of spec.md §9: every
// typed port must be reachable from a plain string, which is how tree
// descriptions and parent-blackboard literals feed leaves without the
// core ever seeing the textual format itself.
type FromStringFunc func(string) (interface{}, error)

type converterRegistry struct {
	byType map[reflect.Type]FromStringFunc
}

var converters = &converterRegistry{byType: map[reflect.Type]FromStringFunc{}}

func init() {
	RegisterConverter(reflect.TypeOf(""), func(s string) (interface{}, error) { return s, nil })
	RegisterConverter(reflect.TypeOf(int(0)), func(s string) (interface{}, error) {
		v, err := strconv.ParseInt(s, 10, 64)
		return int(v), err
	})
	RegisterConverter(reflect.TypeOf(int64(0)), func(s string) (interface{}, error) {
		return strconv.ParseInt(s, 10, 64)
	})
	RegisterConverter(reflect.TypeOf(uint64(0)), func(s string) (interface{}, error) {
		return strconv.ParseUint(s, 10, 64)
	})
	RegisterConverter(reflect.TypeOf(float64(0)), func(s string) (interface{}, error) {
		return strconv.ParseFloat(s, 64)
	})
	RegisterConverter(reflect.TypeOf(float32(0)), func(s string) (interface{}, error) {
		v, err := strconv.ParseFloat(s, 32)
		return float32(v), err
	})
	RegisterConverter(reflect.TypeOf(false), func(s string) (interface{}, error) {
		return strconv.ParseBool(s)
	})
}

// RegisterConverter installs the convertFromString specialization for t.
// A custom port type must register one before it can be bound to a
// string-literal value or remapped from a parent port written as a string.
func RegisterConverter(t reflect.Type, fn FromStringFunc) {
	converters.byType[t] = fn
}

// RegisterConverterFor is the generic convenience form of RegisterConverter.
func RegisterConverterFor[T any](fn func(string) (T, error)) {
	var zero T
	RegisterConverter(reflect.TypeOf(zero), func(s string) (interface{}, error) {
		return fn(s)
	})
}

// ConvertLiteral parses raw via T's registered convertFromString. This is
// the mechanism a port bound to a literal (rather than a blackboard key)
// uses to produce a typed value on demand, per spec.md §4.3.
func ConvertLiteral[T any](raw string) (T, error) {
	var zero T
	want := reflect.TypeOf(zero)
	v, known, err := convertFromString(want, raw)
	if err != nil {
		return zero, err
	}
	if !known {
		return zero, NewRuntimeError("no convertFromString registered for %s", want)
	}
	return v.(T), nil
}

func convertFromString(t reflect.Type, s string) (interface{}, bool, error) {
	fn, ok := converters.byType[t]
	if !ok {
		return nil, false, nil
	}
	v, err := fn(s)
	if err != nil {
		return nil, true, NewRuntimeError("convertFromString(%s, %q): %v", t, s, err)
	}
	return v, true, nil
}

// safeNumericCast implements spec.md §4.2 rule 5: lossless widening always
// succeeds, narrowing that would overflow, truncate a fractional part, or
// assign a negative value to an unsigned target fails. Bool participates:
// any nonzero arithmetic value converts to true.
func safeNumericCast(value interface{}, to reflect.Type) (interface{}, bool, error) {
	rv := reflect.ValueOf(value)
	if !isNumericKind(rv.Kind()) {
		return nil, false, nil
	}
	if to.Kind() == reflect.Bool {
		nonzero, err := isNonzero(rv)
		if err != nil {
			return nil, true, err
		}
		return nonzero, true, nil
	}
	if !isNumericKind(to.Kind()) {
		return nil, false, nil
	}

	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, frac, err := asInt64(rv)
		if err != nil {
			return nil, true, err
		}
		if frac {
			return nil, true, NewRuntimeError("safe numeric cast %s -> %s: fractional part truncated", rv.Type(), to)
		}
		if overflowsInt(i, to) {
			return nil, true, NewRuntimeError("safe numeric cast %s -> %s: value %d out of range", rv.Type(), to, i)
		}
		return reflect.ValueOf(i).Convert(to).Interface(), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, frac, err := asInt64(rv)
		if err != nil {
			return nil, true, err
		}
		if frac {
			return nil, true, NewRuntimeError("safe numeric cast %s -> %s: fractional part truncated", rv.Type(), to)
		}
		if i < 0 {
			return nil, true, NewRuntimeError("safe numeric cast %s -> %s: negative value %d into unsigned target", rv.Type(), to, i)
		}
		if overflowsUint(uint64(i), to) {
			return nil, true, NewRuntimeError("safe numeric cast %s -> %s: value %d out of range", rv.Type(), to, i)
		}
		return reflect.ValueOf(uint64(i)).Convert(to).Interface(), true, nil
	case reflect.Float32, reflect.Float64:
		f, err := asFloat64(rv)
		if err != nil {
			return nil, true, err
		}
		if reflect.Zero(to).OverflowFloat(f) {
			return nil, true, NewRuntimeError("safe numeric cast %s -> %s: value %g out of range", rv.Type(), to, f)
		}
		return reflect.ValueOf(f).Convert(to).Interface(), true, nil
	}
	return nil, false, nil
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Bool:
		return true
	}
	return false
}

func isNonzero(rv reflect.Value) (bool, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0, nil
	case reflect.Bool:
		return rv.Bool(), nil
	}
	return false, NewRuntimeError("cannot interpret %s as bool", rv.Type())
}

func asInt64(rv reflect.Value) (int64, bool, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), false, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > 1<<63-1 {
			return 0, false, NewRuntimeError("value %d does not fit in int64", u)
		}
		return int64(u), false, nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		i := int64(f)
		return i, f != float64(i), nil
	case reflect.Bool:
		if rv.Bool() {
			return 1, false, nil
		}
		return 0, false, nil
	}
	return 0, false, NewRuntimeError("cannot interpret %s as an integer", rv.Type())
}

func asFloat64(rv reflect.Value) (float64, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, NewRuntimeError("cannot interpret %s as a float", rv.Type())
}

func overflowsInt(v int64, to reflect.Type) bool {
	bits := to.Bits()
	if bits >= 64 {
		return false
	}
	lo := -(int64(1) << (bits - 1))
	hi := int64(1)<<(bits-1) - 1
	return v < lo || v > hi
}

func overflowsUint(v uint64, to reflect.Type) bool {
	bits := to.Bits()
	if bits >= 64 {
		return false
	}
	hi := uint64(1)<<bits - 1
	return v > hi
}
