package schedule

import (
	"sync"
)

// Serializer runs submitted functions one at a time in submission order.
// The caller that finds the serializer idle runs the queue on its own
// goroutine; calls made while a function is running, including calls from
// inside that function, are queued and Do returns immediately.
type Serializer struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

// Do runs fn now or queues it behind the running function.
func (s *Serializer) Do(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.drain()
}

func (s *Serializer) drain() {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.running = false
			s.queue = nil
			s.mu.Unlock()
			panic(r)
		}
	}()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		next()
	}
}

// Busy reports whether a function is running.
func (s *Serializer) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
