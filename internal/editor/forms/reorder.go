package forms

import "fmt"

// Move returns a copy of items with the element at from relocated to to.
// Reordering is a pure permutation (no field content changes), so it is
// exempt from per-field validation and the result is merged directly.
func Move[T any](items []T, from, to int) ([]T, error) {
	if from < 0 || from >= len(items) {
		return nil, fmt.Errorf("move: from index %d out of range", from)
	}
	if to < 0 || to >= len(items) {
		return nil, fmt.Errorf("move: to index %d out of range", to)
	}
	out := make([]T, len(items))
	copy(out, items)
	if from == to {
		return out, nil
	}
	item := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]T{item}, out[to:]...)...)
	return out, nil
}
