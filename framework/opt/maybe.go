// Package opt provides an optional value type.
package opt

import (
	"fmt"
)

// Maybe holds either a value of type V or nothing. The zero value holds nothing.
//
// The harness uses it for lookups where "not found" is an expected outcome rather than an
// error, such as reading a key that a scenario has just deleted.
type Maybe[V any] struct {
	defined bool
	value   V
}

// Some returns a Maybe that holds value.
func Some[V any](value V) Maybe[V] {
	return Maybe[V]{defined: true, value: value}
}

// None returns a Maybe that holds nothing.
func None[V any]() Maybe[V] { return Maybe[V]{} }

// IsDefined returns true if the Maybe holds a value.
func (m Maybe[V]) IsDefined() bool { return m.defined }

// Value returns the held value, or the zero value of V.
func (m Maybe[V]) Value() V { return m.value }

// OrElse returns the held value, or valueIfUndefined.
func (m Maybe[V]) OrElse(valueIfUndefined V) V {
	if m.defined {
		return m.value
	}
	return valueIfUndefined
}

// String returns the value's own String() if it has one, otherwise its %v formatting. An
// empty Maybe is shown as "[none]".
func (m Maybe[V]) String() string {
	if !m.defined {
		return "[none]"
	}
	if s, ok := interface{}(m.value).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", m.value)
}
