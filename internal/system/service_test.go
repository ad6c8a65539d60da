package system

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

type getCount struct {
	sender Sender[int]
}

type counterMessage struct {
	increment int
	get       *getCount
}

func counterService() Service[counterMessage] {
	return ServiceFunc[counterMessage](func(ctx context.Context, rx <-chan counterMessage) {
		count := 0
		for {
			select {
			case msg := <-rx:
				count += msg.increment
				if msg.get != nil {
					msg.get.sender.Send(count)
				}
			case <-ctx.Done():
				return
			}
		}
	})
}

func TestSendAndRequest(t *testing.T) {
	runner := NewServiceRunner(context.Background(), ldlog.NewDisabledLoggers())
	addr := Spawn(runner, "counter", counterService(), 10)

	require.NoError(t, addr.Send(counterMessage{increment: 2}))
	require.NoError(t, addr.Send(counterMessage{increment: 3}))

	n, err := Request(context.Background(), Recipient[counterMessage](addr), func(s Sender[int]) counterMessage {
		return counterMessage{get: &getCount{sender: s}}
	})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	runner.Stop()
	require.NoError(t, runner.Join(time.Second))
	assert.Equal(t, ErrSendFailed, addr.Send(counterMessage{increment: 1}))
}

func TestMapRecipient(t *testing.T) {
	runner := NewServiceRunner(context.Background(), ldlog.NewDisabledLoggers())
	defer runner.Stop()
	addr := Spawn(runner, "counter", counterService(), 10)

	increments := MapRecipient(addr, func(n int) counterMessage { return counterMessage{increment: n} })
	require.NoError(t, increments.Send(4))

	n, err := Request(context.Background(), Recipient[counterMessage](addr), func(s Sender[int]) counterMessage {
		return counterMessage{get: &getCount{sender: s}}
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestRequestTimesOut(t *testing.T) {
	runner := NewServiceRunner(context.Background(), ldlog.NewDisabledLoggers())
	defer runner.Stop()
	silent := Spawn[Sender[int]](runner, "silent", ServiceFunc[Sender[int]](func(ctx context.Context, rx <-chan Sender[int]) {
		for {
			select {
			case <-rx:
			case <-ctx.Done():
				return
			}
		}
	}), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := Request(ctx, Recipient[Sender[int]](silent), func(s Sender[int]) Sender[int] { return s })
	assert.Equal(t, context.DeadlineExceeded, err)
}

func TestZeroAddrFails(t *testing.T) {
	var addr Addr[int]
	assert.Equal(t, ErrSendFailed, addr.Send(1))
}

func TestBroadcastChannel(t *testing.T) {
	var b BroadcastChannel[string]
	s1, rx1 := NewSender[string]()
	s2, rx2 := NewSender[string]()
	b.Attach(s1)
	b.Attach(s2)
	assert.Equal(t, 2, b.Len())

	b.Send("hello")
	assert.Equal(t, "hello", <-rx1)
	assert.Equal(t, "hello", <-rx2)
	assert.Equal(t, 0, b.Len())
}

func TestSenderOnlyDeliversOnce(t *testing.T) {
	s, rx := NewSender[int]()
	s.Send(1)
	s.Send(2)
	assert.Equal(t, 1, <-rx)
	select {
	case v := <-rx:
		t.Fatalf("unexpected second value %d", v)
	default:
	}
}

func TestRunnerCollectsErrors(t *testing.T) {
	runner := NewServiceRunner(context.Background(), ldlog.NewDisabledLoggers())
	runner.Go("a", func(ctx context.Context) error { return errors.New("boom") })
	runner.Go("b", func(ctx context.Context) error { <-ctx.Done(); return nil })
	runner.Stop()
	err := runner.Join(time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: boom")
}

func TestRunnerJoinTimesOut(t *testing.T) {
	runner := NewServiceRunner(context.Background(), ldlog.NewDisabledLoggers())
	release := make(chan struct{})
	defer close(release)
	runner.Go("stuck", func(ctx context.Context) error { <-release; return nil })
	err := runner.Join(10 * time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not stop")
}

func TestRunnerStopInOrderLetsEachStageHandOffWork(t *testing.T) {
	runner := NewServiceRunner(context.Background(), ldlog.NewDisabledLoggers())
	handoff := make(chan int, 10)
	var received []int
	var stopped []string
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		stopped = append(stopped, name)
		mu.Unlock()
	}

	runner.Go("consumer", func(ctx context.Context) error {
		<-ctx.Done()
		for {
			select {
			case n := <-handoff:
				received = append(received, n)
			default:
				record("consumer")
				return nil
			}
		}
	})
	runner.Go("producer", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(5 * time.Millisecond)
		handoff <- 1
		handoff <- 2
		record("producer")
		return nil
	})
	runner.Go("other", func(ctx context.Context) error {
		<-ctx.Done()
		record("other")
		return nil
	})

	require.NoError(t, runner.StopInOrder(time.Second, "producer", "consumer"))
	assert.Equal(t, []int{1, 2}, received)
	assert.Equal(t, []string{"producer", "consumer", "other"}, stopped)
}

func TestRunnerStopInOrderGivesUpAfterTimeout(t *testing.T) {
	runner := NewServiceRunner(context.Background(), ldlog.NewDisabledLoggers())
	release := make(chan struct{})
	defer close(release)
	laterStopped := make(chan struct{})
	runner.Go("stuck", func(ctx context.Context) error { <-release; return nil })
	runner.Go("later", func(ctx context.Context) error {
		<-ctx.Done()
		close(laterStopped)
		return nil
	})

	err := runner.StopInOrder(20*time.Millisecond, "stuck", "later")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not stop")
	select {
	case <-laterStopped:
	case <-time.After(time.Second):
		t.Fatal("remaining services were not canceled after the timeout")
	}
}
