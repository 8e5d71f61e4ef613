package loader

import (
	"context"

	"github.com/google/uuid"

	"github.com/texloader/texloader/pkg/texture"
)

// Callbacks is the caller-owned notification sink for one request. Any field
// may be nil. Progress fires zero or more times, strictly before the single
// terminal callback; nothing fires after the terminal one or after
// cancellation.
type Callbacks struct {
	OnSuccess  func(image *texture.Image, resolvedPath string)
	OnError    func(err error)
	OnProgress func(fraction float64)
}

// Outcome is the terminal result of a request as seen through its Handle.
type Outcome struct {
	Image        *texture.Image
	ResolvedPath string
	Err          error
}

// Handle is the future side of a request. Exactly one Outcome arrives on the
// channel unless the request is cancelled, in which case the channel is
// closed without a value.
type Handle struct {
	id      uuid.UUID
	outcome chan Outcome
	cancel  context.CancelFunc
}

// ID returns the unique request ID.
func (h *Handle) ID() uuid.UUID {
	return h.id
}

// Outcome returns the channel carrying the terminal result.
func (h *Handle) Outcome() <-chan Outcome {
	return h.outcome
}

// Cancel cancels the request. After cancellation no further notifications
// are delivered, terminal ones included.
func (h *Handle) Cancel() {
	h.cancel()
}
