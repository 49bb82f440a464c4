package stats

import (
	"cmp"
	"slices"
)

// Ranker は睡眠時間（分）の降順と、同値の場合のタイブレークで並び順を定義する。
type Ranker[T any] struct {
	Minutes  func(T) int
	TieBreak func(a, b T) int
}

// Sort はitemsをその場で並べ替える。
func (r Ranker[T]) Sort(items []T) {
	slices.SortStableFunc(items, r.Compare)
}

// Compare はaがbより前に並ぶ場合に負の値を返す。
func (r Ranker[T]) Compare(a, b T) int {
	if c := cmp.Compare(r.Minutes(b), r.Minutes(a)); c != 0 {
		return c
	}
	if r.TieBreak == nil {
		return 0
	}
	return r.TieBreak(a, b)
}
