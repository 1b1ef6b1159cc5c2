package kvsource

import "bytes"

// Comparator orders record keys. It returns a negative number when a sorts
// before b, zero when they are the same key, and a positive number
// otherwise. Positions, LoadBefore and LoadAfter all follow this order, and
// two keys comparing equal are duplicates.
type Comparator func(a, b []byte) int

// BytesComparator orders keys by their bytes, shorter prefixes first.
var BytesComparator Comparator = bytes.Compare

// Reverse returns the opposite order of c, so the source serves its
// records from the highest key down.
func Reverse(c Comparator) Comparator {
	return func(a, b []byte) int { return c(b, a) }
}
