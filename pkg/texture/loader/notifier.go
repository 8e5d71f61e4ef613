package loader

import (
	"context"
	"sync"

	"github.com/texloader/texloader/pkg/texture"
)

// notifier enforces the notification contract for one request: progress
// callbacks never fire after the terminal callback, and nothing fires once
// the request's context is cancelled.
type notifier struct {
	ctx       context.Context
	callbacks Callbacks

	mu       sync.Mutex
	terminal bool
}

func newNotifier(ctx context.Context, callbacks Callbacks) *notifier {
	return &notifier{ctx: ctx, callbacks: callbacks}
}

func (n *notifier) progress(fraction float64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.terminal || n.ctx.Err() != nil {
		return
	}
	if n.callbacks.OnProgress != nil {
		n.callbacks.OnProgress(fraction)
	}
}

// success delivers the terminal success callback. It reports false when the
// request was already cancelled or terminated.
func (n *notifier) success(image *texture.Image, resolvedPath string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.terminal || n.ctx.Err() != nil {
		return false
	}
	n.terminal = true

	if n.callbacks.OnSuccess != nil {
		n.callbacks.OnSuccess(image, resolvedPath)
	}
	return true
}

// fail delivers the terminal error callback. It reports false when the
// request was already cancelled or terminated.
func (n *notifier) fail(err error) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.terminal || n.ctx.Err() != nil {
		return false
	}
	n.terminal = true

	if n.callbacks.OnError != nil {
		n.callbacks.OnError(err)
	}
	return true
}
