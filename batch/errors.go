package batch

import "errors"

// ErrClosed is returned by Submit once the batcher has been closed.
var ErrClosed = errors.New("batch: batcher closed")
