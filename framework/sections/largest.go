package sections

import "cmp"

// LargestInteriorValue seeds the maximum with the first element and then
// compares elements 1 through len-2. The last element is never examined, so
// for one or two values the first is returned. Ties keep the earlier value.
// It reports false only for an empty slice.
func LargestInteriorValue[T cmp.Ordered](values []T) (T, bool) {
	var zero T
	if len(values) == 0 {
		return zero, false
	}
	largest := values[0]
	for i := 1; i < len(values)-1; i++ {
		if values[i] > largest {
			largest = values[i]
		}
	}
	return largest, true
}
