package system

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Shutdown is broadcast to all services when the process stops. A zero Timeout means services
// must stop immediately; otherwise they may finish pending work within the timeout.
type Shutdown struct {
	Timeout time.Duration
}

// Controller coordinates process shutdown.
type Controller struct {
	timeout time.Duration
	loggers ldlog.Loggers

	mu          sync.Mutex
	subscribers []chan Shutdown
	last        *Shutdown
}

// NewController creates a Controller whose graceful shutdowns allow the given timeout.
func NewController(timeout time.Duration, loggers ldlog.Loggers) *Controller {
	loggers.SetPrefix("[Controller]")
	return &Controller{timeout: timeout, loggers: loggers}
}

// ShutdownHandle receives the shutdown broadcast.
type ShutdownHandle struct {
	ch <-chan Shutdown
}

// Notified returns a channel that receives the shutdown messages. It receives a graceful
// shutdown first and possibly a hard shutdown later.
func (h ShutdownHandle) Notified() <-chan Shutdown {
	return h.ch
}

// ShutdownHandle subscribes to shutdown. Subscribing after a shutdown was triggered delivers it
// immediately.
func (c *Controller) ShutdownHandle() ShutdownHandle {
	ch := make(chan Shutdown, 2)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, ch)
	if c.last != nil {
		ch <- *c.last
	}
	return ShutdownHandle{ch: ch}
}

// Timeout returns the graceful shutdown timeout.
func (c *Controller) Timeout() time.Duration {
	return c.timeout
}

// Shutdown broadcasts a shutdown. A graceful shutdown carries the configured timeout.
func (c *Controller) Shutdown(graceful bool) {
	msg := Shutdown{}
	if graceful {
		msg.Timeout = c.timeout
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = &msg
	for _, ch := range c.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Run waits for SIGINT or SIGTERM, or for ctx to end, and then triggers a graceful shutdown. A
// second signal, or the timeout passing, triggers a hard shutdown. Run returns after the hard
// shutdown.
func (c *Controller) Run(ctx context.Context) {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	c.run(ctx, signals)
}

func (c *Controller) run(ctx context.Context, signals <-chan os.Signal) {
	select {
	case sig := <-signals:
		c.loggers.Infof("Received %s, shutting down gracefully", sig)
	case <-ctx.Done():
		c.loggers.Info("Shutting down gracefully")
	}
	c.Shutdown(true)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case sig := <-signals:
		c.loggers.Warnf("Received %s again, shutting down immediately", sig)
	case <-timer.C:
		c.loggers.Warn("Graceful shutdown timed out")
	}
	c.Shutdown(false)
}
