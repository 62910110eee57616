package primitive

type waitQueue[T any] struct {
	items []T
}

func (q *waitQueue[T]) push(t T) { q.items = append(q.items, t) }

func (q *waitQueue[T]) pop() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	head := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return head, true
}

func (q *waitQueue[T]) len() int { return len(q.items) }
