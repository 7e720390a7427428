package formz

import (
	"math"
	"reflect"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// EqualFunc reports whether two values are the same for change detection.
type EqualFunc[T any] func(a, b T) bool

// EmptyFunc reports whether a value counts as empty for required checks.
type EmptyFunc[T any] func(v T) bool

// DefaultIsEqual compares comparable values with == and falls back to
// reflect.DeepEqual for slices, maps, funcs, and structs or interfaces that
// hold them at runtime. Two NaNs are equal so that
// repeating a NaN edit does not republish.
func DefaultIsEqual[T any](a, b T) bool {
	return sameValue(any(a), any(b))
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	switch x := a.(type) {
	case float64:
		if y := b.(float64); math.IsNaN(x) && math.IsNaN(y) {
			return true
		}
	case float32:
		if y := b.(float32); math.IsNaN(float64(x)) && math.IsNaN(float64(y)) {
			return true
		}
	}
	// A comparable static type can still hold an uncomparable dynamic value,
	// such as a struct with an interface field carrying a slice.
	if reflect.ValueOf(a).Comparable() && reflect.ValueOf(b).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// sameErr compares validation errors by identity. ErrorList and ErrorMap are
// compared element by element, so two lists are the same only when they hold
// the same error values. Other uncomparable error types fall back to a
// structural comparison.
func sameErr(a, b error) bool {
	switch x := a.(type) {
	case ErrorList:
		y, ok := b.(ErrorList)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !sameErr(x[i], y[i]) {
				return false
			}
		}
		return true
	case ErrorMap:
		y, ok := b.(ErrorMap)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, err := range x {
			other, found := y[k]
			if !found || !sameErr(err, other) {
				return false
			}
		}
		return true
	}
	return sameValue(a, b)
}

// DefaultIsEmpty treats nil, the empty string, NaN, and empty slices or arrays
// as empty. Nil pointers, maps, interfaces, channels and funcs are empty too.
func DefaultIsEmpty[T any](v T) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.String, reflect.Array:
		return rv.Len() == 0
	case reflect.Slice:
		return rv.IsNil() || rv.Len() == 0
	case reflect.Float32, reflect.Float64:
		return math.IsNaN(rv.Float())
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

// DeepEqual returns an EqualFunc backed by cmp.Equal. Use it for struct or
// slice values where DefaultIsEqual's identity semantics are too strict.
func DeepEqual[T any](opts ...cmp.Option) EqualFunc[T] {
	return func(a, b T) bool {
		return cmp.Equal(a, b, opts...)
	}
}

var aggregateOpts = []cmp.Option{
	cmpopts.EquateNaNs(),
	cmpopts.EquateEmpty(),
	cmp.Exporter(func(reflect.Type) bool { return true }),
}

// aggregateEqual compares group values. Group values are rebuilt on every
// recomputation, so they are compared structurally rather than by reference.
func aggregateEqual(a, b any) bool {
	return cmp.Equal(a, b, aggregateOpts...)
}
