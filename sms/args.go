package sms

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrArgumentType is returned when an argument is present with the wrong type.
var ErrArgumentType = errors.New("sms: argument has wrong type")

// Optional is a value that is either present or absent.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// IsPresent reports whether o holds a value.
func (o Optional[T]) IsPresent() bool {
	return o.ok
}

// Or returns the value when present and def otherwise.
func (o Optional[T]) Or(def T) T {
	if o.ok {
		return o.value
	}
	return def
}

// Arguments are the named values of a request. A key mapped to nil is
// treated the same as a missing key.
type Arguments map[string]any

// String extracts a string argument.
func (a Arguments) String(name string) (Optional[string], error) {
	switch typed := a[name].(type) {
	case nil:
		return None[string](), nil
	case string:
		return Some(typed), nil
	default:
		return None[string](), fmt.Errorf("%w: %s is %T, want string", ErrArgumentType, name, typed)
	}
}

// Int extracts an integer argument. JSON numbers decoded as float64 or
// json.Number are accepted when integral and within the int range.
func (a Arguments) Int(name string) (Optional[int], error) {
	switch typed := a[name].(type) {
	case nil:
		return None[int](), nil
	case int:
		return Some(typed), nil
	case int32:
		return Some(int(typed)), nil
	case int64:
		if typed < math.MinInt || typed > math.MaxInt {
			return None[int](), fmt.Errorf("%w: %s is %d, out of range", ErrArgumentType, name, typed)
		}
		return Some(int(typed)), nil
	case float64:
		return intFromFloat(name, typed)
	case json.Number:
		if n, err := typed.Int64(); err == nil {
			return Some(int(n)), nil
		}
		f, err := typed.Float64()
		if err != nil {
			return None[int](), fmt.Errorf("%w: %s is %q, want integer", ErrArgumentType, name, typed.String())
		}
		return intFromFloat(name, f)
	default:
		return None[int](), fmt.Errorf("%w: %s is %T, want integer", ErrArgumentType, name, typed)
	}
}

// float64(math.MaxInt) rounds up to 2^63, so the upper bound is exclusive.
const maxIntFloat = float64(math.MaxInt)

func intFromFloat(name string, f float64) (Optional[int], error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return None[int](), fmt.Errorf("%w: %s is %v, want integer", ErrArgumentType, name, f)
	}
	if f < -maxIntFloat || f >= maxIntFloat {
		return None[int](), fmt.Errorf("%w: %s is %v, out of range", ErrArgumentType, name, f)
	}
	return Some(int(f)), nil
}
