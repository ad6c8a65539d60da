package sharedtest

import (
	"context"
	"sync"

	"github.com/eventrelay/relay/internal/processing"
)

// CapturingProducer is a processing.Producer that records messages in memory.
type CapturingProducer struct {
	mu       sync.Mutex
	messages []processing.Message
	err      error
	closed   bool
}

// SetError makes subsequent calls to Produce fail.
func (p *CapturingProducer) SetError(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Produce implements processing.Producer.
func (p *CapturingProducer) Produce(_ context.Context, msgs ...processing.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msgs...)
	return nil
}

// Close implements processing.Producer.
func (p *CapturingProducer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Messages returns the messages produced to a topic.
func (p *CapturingProducer) Messages(topic processing.Topic) []processing.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result []processing.Message
	for _, m := range p.messages {
		if m.Topic == topic {
			result = append(result, m)
		}
	}
	return result
}

// IsClosed returns true if Close was called.
func (p *CapturingProducer) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
