package frontier

import "container/heap"

// Entry is one position in the active queue.
type Entry struct {
	Wave  int
	Score float64
	URL   string
}

func (e Entry) less(o Entry) bool {
	if e.Wave != o.Wave {
		return e.Wave < o.Wave
	}
	if e.Score != o.Score {
		return e.Score < o.Score
	}
	return e.URL < o.URL
}

// Queue is a min-heap of entries ordered by wave, score, then URL.
// A URL is held at most once. Callers serialize access.
type Queue struct {
	totalQueued int
	elements    []Entry
	queued      map[string]struct{}
}

func NewQueue() *Queue {
	return &Queue{
		elements: make([]Entry, 0),
		queued:   make(map[string]struct{}),
	}
}

// heap.Interface

func (q *Queue) Len() int           { return len(q.elements) }
func (q *Queue) Less(i, j int) bool { return q.elements[i].less(q.elements[j]) }
func (q *Queue) Swap(i, j int)      { q.elements[i], q.elements[j] = q.elements[j], q.elements[i] }

func (q *Queue) Push(x any) { q.elements = append(q.elements, x.(Entry)) }

func (q *Queue) Pop() any {
	n := len(q.elements)
	e := q.elements[n-1]
	q.elements = q.elements[:n-1]
	return e
}

// Enqueue reports false if e.URL is already queued.
func (q *Queue) Enqueue(e Entry) bool {
	if _, ok := q.queued[e.URL]; ok {
		return false
	}
	q.queued[e.URL] = struct{}{}
	heap.Push(q, e)
	q.totalQueued++
	return true
}

func (q *Queue) Dequeue() (Entry, bool) {
	if len(q.elements) == 0 {
		return Entry{}, false
	}
	e := heap.Pop(q).(Entry)
	delete(q.queued, e.URL)
	return e, true
}

func (q *Queue) TotalQueued() int { return q.totalQueued }
