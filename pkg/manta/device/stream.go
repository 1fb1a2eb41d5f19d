package device

import (
	"context"
	"io"
	"sync"
)

// Stream is the common BufferStream implementation: a device's receive loop
// pushes raw buffers through the sample pool and finishes the stream on exit.
// A fatal transport error is surfaced to the consumer exactly once; a clean
// stop drains the pool and then reports io.EOF.
type Stream struct {
	pool   *SampleBufferPool
	done   chan struct{}
	notify chan struct{}

	finishOnce sync.Once

	mu       sync.Mutex
	err      error
	surfaced bool
}

func NewStream(pool *SampleBufferPool) *Stream {
	return &Stream{
		pool:   pool,
		done:   make(chan struct{}),
		notify: make(chan struct{}, 1),
	}
}

// Push hands one received buffer to the consumer side.
func (s *Stream) Push(buf []byte) {
	s.pool.Append(buf)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Finish ends the stream. err is nil for an intentional stop.
func (s *Stream) Finish(err error) {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

// Done closes when the feeding loop has exited.
func (s *Stream) Done() <-chan struct{} { return s.done }

func (s *Stream) takeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil && !s.surfaced {
		s.surfaced = true
		return s.err
	}
	return nil
}

func (s *Stream) Next(ctx context.Context) ([]byte, error) {
	for {
		if buf, ok := s.pool.Pop(); ok {
			return buf, nil
		}
		select {
		case <-s.done:
			if buf, ok := s.pool.Pop(); ok {
				return buf, nil
			}
			if err := s.takeErr(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		default:
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.notify:
		case <-s.done:
		}
	}
}
