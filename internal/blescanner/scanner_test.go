package blescanner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewsignal/brewsignal/internal/adapters"
)

type fakeBackend struct {
	runs    int32
	failN   int32
	fedOnce func(sink Sink)
}

func (f *fakeBackend) Run(ctx context.Context, sink Sink) error {
	n := atomic.AddInt32(&f.runs, 1)
	if f.fedOnce != nil {
		f.fedOnce(sink)
	}
	if n <= f.failN {
		return errors.New("boom")
	}
	<-ctx.Done()
	return nil
}

func TestScanner_StartStopIdempotent(t *testing.T) {
	b := &fakeBackend{}
	s := New(b)
	s.Start(context.Background(), func(adapters.Payload) {})
	s.Start(context.Background(), func(adapters.Payload) {}) // no-op
	s.Stop()
	s.Stop() // no-op
	assert.GreaterOrEqual(t, atomic.LoadInt32(&b.runs), int32(1))
}

func TestScanner_RetriesOnFailure(t *testing.T) {
	b := &fakeBackend{failN: 2}
	s := New(b)
	s.Start(context.Background(), func(adapters.Payload) {})
	deadline := time.After(5 * time.Second)
	for atomic.LoadInt32(&b.runs) < 3 {
		select {
		case <-deadline:
			t.Fatal("backend did not retry in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	s.Stop()
	assert.GreaterOrEqual(t, atomic.LoadInt32(&b.runs), int32(3))
}

func TestScanner_FeedsSink(t *testing.T) {
	var got []adapters.Payload
	b := &fakeBackend{
		fedOnce: func(sink Sink) {
			sink(adapters.Payload{SourceProtocol: "mock"})
		},
	}
	s := New(b)
	s.Start(context.Background(), func(p adapters.Payload) { got = append(got, p) })
	require.Eventually(t, func() bool { return len(got) == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	assert.Equal(t, "mock", got[0].SourceProtocol)
}
