package tasks

// Move returns a copy of items with the element at from reinserted at to.
// Negative indices count from the end; a to still negative after that counts
// again from the end of the list without the moved item, and a to past the
// end appends. The input slice is never modified, and an out-of-range from
// yields an unchanged copy.
func Move[T any](items []T, from, to int) []T {
	out := make([]T, len(items))
	copy(out, items)
	from, ok := resolveIndex(len(items), from)
	if !ok {
		return out
	}
	if to < 0 {
		to += len(items)
	}
	item := out[from]
	out = append(out[:from], out[from+1:]...)
	if to < 0 {
		to += len(out)
	}
	if to < 0 {
		to = 0
	}
	if to > len(out) {
		to = len(out)
	}
	out = append(out, item)
	copy(out[to+1:], out[to:len(out)-1])
	out[to] = item
	return out
}

// CanMove reports whether Move(items, from, to) over n items changes order.
func CanMove(n, from, to int) bool {
	from, ok := resolveIndex(n, from)
	if !ok {
		return false
	}
	if to < 0 {
		to += n
	}
	if to < 0 {
		to += n - 1
	}
	if to < 0 {
		to = 0
	}
	if to > n-1 {
		to = n - 1
	}
	return from != to
}

func resolveIndex(n, i int) (int, bool) {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, false
	}
	return i, true
}
