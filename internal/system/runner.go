package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// ServiceRunner starts services and waits for them on shutdown.
type ServiceRunner struct {
	ctx     context.Context
	cancel  context.CancelFunc
	loggers ldlog.Loggers

	wg       sync.WaitGroup
	mu       sync.Mutex
	errors   error
	services []*runningService
}

type runningService struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewServiceRunner creates a runner. All services it starts see a context derived from ctx.
func NewServiceRunner(ctx context.Context, loggers ldlog.Loggers) *ServiceRunner {
	ctx, cancel := context.WithCancel(ctx)
	loggers.SetPrefix("[ServiceRunner]")
	return &ServiceRunner{ctx: ctx, cancel: cancel, loggers: loggers}
}

// Context returns the context services run in. It is canceled by Stop.
func (r *ServiceRunner) Context() context.Context {
	return r.ctx
}

// Spawn starts a service with a queue of the given size and returns its address. The address
// stops accepting messages once the service returns.
func Spawn[M any](r *ServiceRunner, name string, svc Service[M], queueSize int) Addr[M] {
	ch := make(chan M, queueSize)
	done := make(chan struct{})
	r.Go(name, func(ctx context.Context) error {
		defer close(done)
		svc.Start(ctx, ch)
		return nil
	})
	return Addr[M]{tx: ch, done: done}
}

// Go runs a function until it returns. Errors are collected and returned by Join.
func (r *ServiceRunner) Go(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithCancel(r.ctx)
	svc := &runningService{name: name, cancel: cancel, done: make(chan struct{})}
	r.mu.Lock()
	r.services = append(r.services, svc)
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(svc.done)
		defer cancel()
		if err := fn(ctx); err != nil {
			r.loggers.Errorf("Service %s failed: %s", name, err)
			r.mu.Lock()
			r.errors = multierr.Append(r.errors, fmt.Errorf("%s: %w", name, err))
			r.mu.Unlock()
		}
	}()
}

// StopInOrder stops the named services one at a time: each one is canceled and must return
// before the next is canceled, so a service can still hand its final work to the ones after it.
// Services not named are stopped together at the end. The timeout covers the whole sequence;
// once it passes, everything left is canceled at once.
func (r *ServiceRunner) StopInOrder(timeout time.Duration, names ...string) error {
	start := time.Now()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

stages:
	for _, name := range names {
		for _, svc := range r.servicesNamed(name) {
			svc.cancel()
			select {
			case <-svc.done:
			case <-deadline.C:
				r.loggers.Warnf("Service %s did not stop within %s", name, timeout)
				break stages
			}
		}
	}

	r.cancel()
	remaining := timeout - time.Since(start)
	if remaining < 0 {
		remaining = 0
	}
	return r.Join(remaining)
}

func (r *ServiceRunner) servicesNamed(name string) []*runningService {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ret []*runningService
	for _, svc := range r.services {
		if svc.name == name {
			ret = append(ret, svc)
		}
	}
	return ret
}

// Stop cancels the context of all services.
func (r *ServiceRunner) Stop() {
	r.cancel()
}

// Join waits up to timeout for all services to return, then returns their combined errors.
func (r *ServiceRunner) Join(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	default:
		select {
		case <-done:
		case <-time.After(timeout):
			err = fmt.Errorf("services did not stop within %s", timeout)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return multierr.Append(r.errors, err)
}
