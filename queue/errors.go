package queue

import "errors"

// Sentinel errors for the priority queue.
var (
	// ErrQueueFull is returned by Enqueue when the queue is at its
	// configured capacity.
	ErrQueueFull = errors.New("queue: capacity exceeded")

	// ErrTimeout is delivered to a ticket's completion channel when it
	// ages out past its deadline without being dispatched.
	ErrTimeout = errors.New("queue: request timed out waiting for dispatch")

	// ErrCancelled is delivered to a ticket's completion channel when its
	// context is done before dispatch.
	ErrCancelled = errors.New("queue: request cancelled")
)
