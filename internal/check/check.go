// Package check holds small numeric predicates shared by the config validators.
package check

import "golang.org/x/exp/constraints"

type Number interface {
	constraints.Integer | constraints.Float
}

func Positive[T Number](v T) bool {
	return v > 0
}

// OptionalPositive accepts nil or a strictly positive value.
func OptionalPositive[T Number](v *T) bool {
	return v == nil || *v > 0
}

// RequiredPositive rejects nil and non-positive values.
func RequiredPositive[T Number](v *T) bool {
	return v != nil && *v > 0
}

func InRange[T constraints.Ordered](v, lo, hi T) bool {
	return v >= lo && v <= hi
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}
