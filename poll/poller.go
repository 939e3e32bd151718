// Package poll keeps server-owned collections approximately fresh by
// re-running a fetch on a fixed cadence. Each tick is a full fetch; a failed
// tick is silently absorbed and the next scheduled tick is the retry.
package poll

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Func is one poll cycle. It owns its errors: the poller never inspects the
// outcome, so the function must log or swallow failures itself.
type Func func(ctx context.Context)

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Poller runs at most one recurring task per resource key.
type Poller struct {
	mu    sync.Mutex
	tasks map[string]*task
}

// NewPoller returns an empty poller.
func NewPoller() *Poller {
	return &Poller{tasks: make(map[string]*task)}
}

// Start begins polling fn under the given key. The function runs once
// immediately, then on every interval tick until Stop. Starting a key that is
// already active is a no-op, so callers may re-issue Start freely without
// leaking timers.
func (p *Poller) Start(ctx context.Context, key string, interval time.Duration, fn Func) error {
	if key == "" {
		return errors.New("poll key is required")
	}
	if interval <= 0 {
		return errors.New("poll interval must be > 0")
	}
	if fn == nil {
		return errors.New("poll func is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, active := p.tasks[key]; active {
		return nil
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{cancel: cancel, done: make(chan struct{})}
	p.tasks[key] = t

	go func() {
		defer close(t.done)

		fn(taskCtx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fn(taskCtx)
			case <-taskCtx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop cancels the task for a key and waits for its in-flight cycle to
// return. Stopping an unknown key is a no-op.
func (p *Poller) Stop(key string) {
	p.mu.Lock()
	t, ok := p.tasks[key]
	if ok {
		delete(p.tasks, key)
	}
	p.mu.Unlock()

	if !ok {
		return
	}
	t.cancel()
	<-t.done
}

// StopAll stops every active task. Used at session teardown.
func (p *Poller) StopAll() {
	p.mu.Lock()
	tasks := p.tasks
	p.tasks = make(map[string]*task)
	p.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
		<-t.done
	}
}

// Active reports whether a key currently has a running task.
func (p *Poller) Active(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.tasks[key]
	return ok
}
