package jobs

import (
	"sync"
)

// Queue is an unbounded FIFO safe for many producers and one consumer.
type Queue struct {
	mu    sync.Mutex
	items []Job
	head  int
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends a job at the tail.
func (q *Queue) Push(j Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, j)
}

// PushMany appends jobs at the tail in order, atomically with respect to
// other producers.
func (q *Queue) PushMany(js ...Job) {
	if len(js) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, js...)
}

// Pop removes and returns the head job.
func (q *Queue) Pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.items) {
		return Job{}, false
	}
	j := q.items[q.head]
	q.items[q.head] = Job{}
	q.head++

	// Compact once the consumed prefix dominates.
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return j, true
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Clear drops every queued job and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items) - q.head
	q.items = nil
	q.head = 0
	return n
}

// Sample returns up to n jobs from the head without removing them.
func (q *Queue) Sample(n int) []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	avail := len(q.items) - q.head
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return []Job{}
	}
	out := make([]Job, n)
	copy(out, q.items[q.head:q.head+n])
	return out
}
