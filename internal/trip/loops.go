package trip

import (
	"context"
	"sync"
)

// Loops runs the periodic workers of the active trip as one unit: they are
// started together, share one context and stop together.
type Loops struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// StartLoops stops any running set and launches each fn in its own goroutine
// under a context derived from parent.
func (l *Loops) StartLoops(parent context.Context, fns ...func(context.Context)) {
	l.Stop()

	ctx, cancel := context.WithCancel(parent)
	l.mu.Lock()
	l.cancel = cancel
	l.wg.Add(len(fns))
	l.mu.Unlock()

	for _, fn := range fns {
		fn := fn
		go func() {
			defer l.wg.Done()
			fn(ctx)
		}()
	}
}

// Cancel signals the running set without waiting. It is safe to call from
// inside one of the loops.
func (l *Loops) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Stop cancels the running set and waits for every loop to return. Calling
// it from inside a loop deadlocks; use Cancel there.
func (l *Loops) Stop() {
	l.Cancel()
	l.wg.Wait()
}
