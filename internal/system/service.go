package system

import (
	"context"
	"errors"
	"sync"
)

// ErrSendFailed is returned when a message is sent to a service that has stopped.
var ErrSendFailed = errors.New("failed to send message to service")

// Service handles messages of type M. Start must return when rx is closed or ctx is done.
type Service[M any] interface {
	Start(ctx context.Context, rx <-chan M)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc[M any] func(ctx context.Context, rx <-chan M)

// Start implements Service.
func (f ServiceFunc[M]) Start(ctx context.Context, rx <-chan M) { f(ctx, rx) }

// Recipient is anything that accepts messages of type M.
type Recipient[M any] interface {
	Send(msg M) error
}

// Addr is the address of a running service.
type Addr[M any] struct {
	tx   chan<- M
	done <-chan struct{}
}

// Send delivers a message, waiting while the service's queue is full. It fails once the
// service has stopped.
func (a Addr[M]) Send(msg M) error {
	if a.tx == nil {
		return ErrSendFailed
	}
	select {
	case <-a.done:
		return ErrSendFailed
	default:
	}
	select {
	case <-a.done:
		return ErrSendFailed
	case a.tx <- msg:
		return nil
	}
}

// MapRecipient returns the address as a Recipient of another message type, converting each message.
func MapRecipient[A, M any](addr Addr[M], convert func(A) M) Recipient[A] {
	return mappedRecipient[A, M]{addr: addr, convert: convert}
}

type mappedRecipient[A, M any] struct {
	addr    Addr[M]
	convert func(A) M
}

func (r mappedRecipient[A, M]) Send(msg A) error {
	return r.addr.Send(r.convert(msg))
}

// Sender delivers the single response to a request.
type Sender[T any] struct {
	ch chan T
}

// NewSender creates a Sender and the channel its response arrives on.
func NewSender[T any]() (Sender[T], <-chan T) {
	ch := make(chan T, 1)
	return Sender[T]{ch: ch}, ch
}

// Send delivers the response. Only the first call has an effect.
func (s Sender[T]) Send(value T) {
	select {
	case s.ch <- value:
	default:
	}
}

// Request sends a message built around a new Sender and waits for the response.
func Request[M, T any](ctx context.Context, r Recipient[M], build func(Sender[T]) M) (T, error) {
	sender, rx := NewSender[T]()
	var zero T
	if err := r.Send(build(sender)); err != nil {
		return zero, err
	}
	select {
	case v := <-rx:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// BroadcastChannel collects the senders of several requests that wait for the same value.
type BroadcastChannel[T any] struct {
	mu      sync.Mutex
	senders []Sender[T]
}

// Attach adds a waiting requester.
func (b *BroadcastChannel[T]) Attach(sender Sender[T]) {
	b.mu.Lock()
	b.senders = append(b.senders, sender)
	b.mu.Unlock()
}

// Len returns the number of waiting requesters.
func (b *BroadcastChannel[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.senders)
}

// Send delivers the value to every attached requester and detaches them.
func (b *BroadcastChannel[T]) Send(value T) {
	b.mu.Lock()
	senders := b.senders
	b.senders = nil
	b.mu.Unlock()
	for _, s := range senders {
		s.Send(value)
	}
}
