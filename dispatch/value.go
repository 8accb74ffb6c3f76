package dispatch

// Value is the single logical result extracted from a script-style response.
// The zero Value is the "no value" sentinel returned for non-script response
// kinds; callers must check Defined before dereferencing it.
type Value struct {
	v       any
	defined bool
}

// Some wraps a concrete result value.
func Some(v any) Value { return Value{v: v, defined: true} }

// None is the sentinel for responses that carry no logical value.
func None() Value { return Value{} }

// Defined reports whether the value may be dereferenced.
func (v Value) Defined() bool { return v.defined }

// Interface returns the underlying value. Dereferencing the None sentinel is
// a caller bug and panics.
func (v Value) Interface() any {
	if !v.defined {
		panic("dispatch: dereferenced the None value sentinel")
	}
	return v.v
}
