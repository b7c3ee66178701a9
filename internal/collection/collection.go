package collection

import (
	"errors"

	"github.com/vbonduro/listingwizard/internal/domain"
)

var ErrIndexOutOfRange = errors.New("collection index out of range")

// Append returns a new slice with item at the end. items is not modified.
func Append[T any](items []T, item T) []T {
	out := make([]T, len(items), len(items)+1)
	copy(out, items)
	return append(out, item)
}

// RemoveAt returns a new slice without the element at index.
func RemoveAt[T any](items []T, index int) ([]T, error) {
	if index < 0 || index >= len(items) {
		return nil, ErrIndexOutOfRange
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:index]...)
	return append(out, items[index+1:]...), nil
}

// UpdateAt returns a new slice with the element at index replaced by
// patch(element).
func UpdateAt[T any](items []T, index int, patch func(T) T) ([]T, error) {
	if index < 0 || index >= len(items) {
		return nil, ErrIndexOutOfRange
	}
	out := make([]T, len(items))
	copy(out, items)
	out[index] = patch(out[index])
	return out, nil
}

// Reindex drops every state addressed to collection[removed] and moves the
// states of later entries down by one. Keys of other collections and scalar
// keys are carried over unchanged.
func Reindex(states map[domain.FieldKey]domain.FieldState, collection string, removed int) map[domain.FieldKey]domain.FieldState {
	out := make(map[domain.FieldKey]domain.FieldState, len(states))
	for k, v := range states {
		if k.Kind != domain.KindItem || k.Collection != collection {
			out[k] = v
			continue
		}
		switch {
		case k.Index < removed:
			out[k] = v
		case k.Index > removed:
			k.Index--
			out[k] = v
		}
	}
	return out
}
