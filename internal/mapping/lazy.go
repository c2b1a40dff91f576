package mapping

import "sync/atomic"

// lazy holds a value computed on first successful access. Concurrent first
// calls may compute more than once; the first published result wins and
// failures are not cached.
type lazy[T any] struct {
	value atomic.Pointer[T]
}

func (l *lazy[T]) get(compute func() (T, error)) (T, error) {
	if v := l.value.Load(); v != nil {
		return *v, nil
	}
	v, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	l.value.CompareAndSwap(nil, &v)
	return *l.value.Load(), nil
}
