// Package ordering computes dense zero-based orderings for board collections.
// Every function is pure: inputs are never mutated and results are fresh slices
// whose order values are rewritten for the whole affected collection.
package ordering

import "sort"

// Positioned is satisfied by pointers to elements carrying an order field.
type Positioned[T any] interface {
	*T
	SetOrder(int)
}

// Parented is satisfied by pointers to elements that also belong to a parent
// collection.
type Parented[T any] interface {
	Positioned[T]
	SetParent(int)
}

// Renumber returns a copy of items with order rewritten to each position.
func Renumber[T any, P Positioned[T]](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := range out {
		P(&out[i]).SetOrder(i)
	}
	return out
}

// SortBy returns a stably sorted copy of items using key as the order value.
func SortBy[T any](items []T, key func(T) int) []T {
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}

// IndexOf returns the position of the first element matching pred, or -1.
func IndexOf[T any](items []T, pred func(T) bool) int {
	for i, item := range items {
		if pred(item) {
			return i
		}
	}
	return -1
}

// Reorder moves the element at from to position to (array-move semantics) and
// renumbers the collection. Indices refer to the already-sorted view. It
// reports false, returning items untouched, when nothing should be persisted:
// from equals to, or from is out of range. A destination past either end is
// clamped.
func Reorder[T any, P Positioned[T]](items []T, from, to int) ([]T, bool) {
	if from < 0 || from >= len(items) || from == to {
		return items, false
	}
	to = clamp(to, 0, len(items)-1)
	if from == to {
		return items, false
	}

	out := make([]T, 0, len(items))
	moved := items[from]
	for i, item := range items {
		if i == from {
			continue
		}
		if len(out) == to {
			out = append(out, moved)
		}
		out = append(out, item)
	}
	if len(out) < len(items) {
		out = append(out, moved)
	}
	return Renumber[T, P](out), true
}

// Move removes the element at from in source and inserts it into target at
// to, reassigning its parent to parentID. A destination outside
// [0, len(target)] appends to the end of target. Both resulting collections
// are renumbered. ok is false, with inputs returned untouched, when from is out
// of range.
func Move[T any, P Parented[T]](source, target []T, from, to, parentID int) (src, dst []T, ok bool) {
	if from < 0 || from >= len(source) {
		return source, target, false
	}
	if to < 0 || to > len(target) {
		to = len(target)
	}

	moved := source[from]
	P(&moved).SetParent(parentID)

	src = make([]T, 0, len(source)-1)
	src = append(src, source[:from]...)
	src = append(src, source[from+1:]...)

	dst = make([]T, 0, len(target)+1)
	dst = append(dst, target[:to]...)
	dst = append(dst, moved)
	dst = append(dst, target[to:]...)

	return Renumber[T, P](src), Renumber[T, P](dst), true
}

// Dense reports whether the order values of items are exactly {0..n-1}.
func Dense[T any](items []T, key func(T) int) bool {
	seen := make([]bool, len(items))
	for _, item := range items {
		o := key(item)
		if o < 0 || o >= len(items) || seen[o] {
			return false
		}
		seen[o] = true
	}
	return true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
