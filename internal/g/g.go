// Package g holds small generic helpers shared by storage and transport code.
package g

// Pointer returns pointer to copy of object
func Pointer[T any](o T) *T {
	return &o
}

// NonZero is Pointer for everything but the zero value, which becomes nil.
func NonZero[T comparable](o T) *T {
	var zero T
	if o == zero {
		return nil
	}
	return &o
}

// Deref returns *p, or the zero value when p is nil.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// NilToNil applies f to *i and keeps nil as nil.
func NilToNil[I any, O any](f func(i I) O, i *I) *O {
	if i == nil {
		return nil
	}
	return Pointer(f(*i))
}

// Map converts every element of in with f. The result is never nil.
func Map[I any, O any](in []I, f func(I) O) []O {
	out := make([]O, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}

func ToStrings[T ~string](ts []T) []string {
	return Map(ts, func(t T) string { return string(t) })
}

func FromStrings[T ~string](strings []string) []T {
	return Map(strings, func(s string) T { return T(s) })
}
