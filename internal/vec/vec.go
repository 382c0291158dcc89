// Package vec describes edits to ordered sequences. A Mutation is the edit
// as requested; its Effects are the concrete changes it makes to one
// particular sequence, so observers can replicate an edit without diffing.
package vec

import "slices"

// Kind enumerates mutations.
type Kind uint8

const (
	Insert Kind = iota + 1
	Update
	Remove
	Push
	Set
	Clear
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Remove:
		return "remove"
	case Push:
		return "push"
	case Set:
		return "set"
	case Clear:
		return "clear"
	}
	return "invalid"
}

// Mutation is one edit. Index and Items are used by Insert and Update
// (exactly one item), Index and End by Remove, Items by Push and Set.
type Mutation[T any] struct {
	Kind  Kind
	Index int
	End   int
	Items []T
}

func InsertAt[T any](index int, items ...T) Mutation[T] {
	return Mutation[T]{Kind: Insert, Index: index, Items: items}
}

func UpdateAt[T any](index int, item T) Mutation[T] {
	return Mutation[T]{Kind: Update, Index: index, Items: []T{item}}
}

// RemoveRange removes the half-open range [start, end).
func RemoveRange[T any](start, end int) Mutation[T] {
	return Mutation[T]{Kind: Remove, Index: start, End: end}
}

func RemoveAt[T any](index int) Mutation[T] {
	return RemoveRange[T](index, index+1)
}

func PushItems[T any](items ...T) Mutation[T] {
	return Mutation[T]{Kind: Push, Items: items}
}

func SetItems[T any](items []T) Mutation[T] {
	return Mutation[T]{Kind: Set, Items: items}
}

func ClearAll[T any]() Mutation[T] {
	return Mutation[T]{Kind: Clear}
}

// EffectKind enumerates concrete changes.
type EffectKind uint8

const (
	EffectInsert EffectKind = iota + 1
	EffectUpdate
	EffectRemove
)

// Effect is a concrete change to a sequence.
//
//	EffectInsert: Items were inserted at Index.
//	EffectUpdate: the item at Index changed from From to To.
//	EffectRemove: Items were removed from [Index, End).
type Effect[T any] struct {
	Kind  EffectKind
	Index int
	End   int
	Items []T
	From  T
	To    T
}

func clamp(i, lo, hi int) int {
	return max(lo, min(i, hi))
}

// Effects computes what m does to base. Indices outside base are clamped
// the same way Apply clamps them; an update outside base has no effect.
func (m Mutation[T]) Effects(base []T) []Effect[T] {
	n := len(base)
	switch m.Kind {
	case Insert:
		if len(m.Items) == 0 {
			return nil
		}
		return []Effect[T]{{Kind: EffectInsert, Index: clamp(m.Index, 0, n), Items: slices.Clone(m.Items)}}
	case Push:
		if len(m.Items) == 0 {
			return nil
		}
		return []Effect[T]{{Kind: EffectInsert, Index: n, Items: slices.Clone(m.Items)}}
	case Update:
		if m.Index < 0 || m.Index >= n || len(m.Items) == 0 {
			return nil
		}
		return []Effect[T]{{Kind: EffectUpdate, Index: m.Index, From: base[m.Index], To: m.Items[0]}}
	case Remove:
		start, end := clamp(m.Index, 0, n), clamp(m.End, 0, n)
		if start >= end {
			return nil
		}
		return []Effect[T]{{Kind: EffectRemove, Index: start, End: end, Items: slices.Clone(base[start:end])}}
	case Clear:
		if n == 0 {
			return nil
		}
		return []Effect[T]{{Kind: EffectRemove, Index: 0, End: n, Items: slices.Clone(base)}}
	case Set:
		var out []Effect[T]
		if n > 0 {
			out = append(out, Effect[T]{Kind: EffectRemove, Index: 0, End: n, Items: slices.Clone(base)})
		}
		if len(m.Items) > 0 {
			out = append(out, Effect[T]{Kind: EffectInsert, Index: 0, Items: slices.Clone(m.Items)})
		}
		return out
	}
	return nil
}

// Apply returns base with m applied. base may be modified in place.
func (m Mutation[T]) Apply(base []T) []T {
	n := len(base)
	switch m.Kind {
	case Insert:
		return slices.Insert(base, clamp(m.Index, 0, n), m.Items...)
	case Push:
		return append(base, m.Items...)
	case Update:
		if m.Index >= 0 && m.Index < n && len(m.Items) > 0 {
			base[m.Index] = m.Items[0]
		}
		return base
	case Remove:
		start, end := clamp(m.Index, 0, n), clamp(m.End, 0, n)
		if start >= end {
			return base
		}
		return slices.Delete(base, start, end)
	case Clear:
		return base[:0]
	case Set:
		return append(base[:0], m.Items...)
	}
	return base
}
