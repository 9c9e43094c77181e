package common

func Range(min, max int) []int {
	result := make([]int, max-min)
	for i := range result {
		result[i] = i + min
	}
	return result
}

func Map[I, O any](p func(I) O, xs []I) []O {
	result := make([]O, len(xs))
	for i, x := range xs {
		result[i] = p(x)
	}
	return result
}

func Find[T any](p func(T) bool, xs []T) (T, bool) {
	for _, x := range xs {
		if p(x) {
			return x, true
		}
	}

	var x T
	return x, false
}

// Dedup keeps the first occurrence of every element, preserving order.
func Dedup[T comparable](xs []T) []T {
	seen := make(map[T]bool, len(xs))
	var result []T
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			result = append(result, x)
		}
	}
	return result
}

// Without returns xs with every element of removed filtered out, preserving
// order.
func Without[T comparable](xs []T, removed []T) []T {
	drop := make(map[T]bool, len(removed))
	for _, r := range removed {
		drop[r] = true
	}
	var result []T
	for _, x := range xs {
		if !drop[x] {
			result = append(result, x)
		}
	}
	return result
}
