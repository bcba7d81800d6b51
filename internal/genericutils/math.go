package genericutils

import "golang.org/x/exp/constraints"

func Max[T constraints.Ordered](a T, others ...T) T {
	max := a
	for _, v := range others {
		if v > max {
			max = v
		}
	}
	return max
}

func Min[T constraints.Ordered](a T, others ...T) T {
	min := a
	for _, v := range others {
		if v < min {
			min = v
		}
	}
	return min
}

// DivCeil divides rounding up. b must be positive.
func DivCeil[T constraints.Integer](a, b T) T {
	return (a + b - 1) / b
}

// PowerOfTwoCeil returns the smallest power of two that is >= n (1 for n <= 1).
func PowerOfTwoCeil[T constraints.Unsigned](n T) T {
	p := T(1)
	for p < n {
		p <<= 1
	}
	return p
}
