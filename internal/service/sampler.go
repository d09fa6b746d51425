package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	qgotel "github.com/Strob0t/quorumgate/internal/adapter/otel"
	"github.com/Strob0t/quorumgate/internal/domain/performance"
)

// Sampler periodically records process resource use into a bounded ring.
// When the ring is full the oldest sample is evicted.
type Sampler struct {
	interval time.Duration
	read     func() performance.ResourceSample
	metrics  *qgotel.Metrics

	mu   sync.Mutex
	ring []performance.ResourceSample
	next int
	full bool
	stop context.CancelFunc
	done chan struct{}
}

// NewSampler creates a Sampler that keeps at most capacity samples.
func NewSampler(interval time.Duration, capacity int) *Sampler {
	if capacity < 1 {
		capacity = 1
	}
	return &Sampler{
		interval: interval,
		read:     readRuntime,
		ring:     make([]performance.ResourceSample, capacity),
	}
}

// SetMetrics enables heap gauge recording.
func (s *Sampler) SetMetrics(m *qgotel.Metrics) { s.metrics = m }

func readRuntime() performance.ResourceSample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return performance.ResourceSample{
		HeapAlloc:  ms.HeapAlloc,
		Sys:        ms.Sys,
		Goroutines: runtime.NumGoroutine(),
		Timestamp:  time.Now().UTC(),
	}
}

// Start launches the sampling loop. It takes one sample immediately. Calling
// Start on a running sampler does nothing.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.stop = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
}

func (s *Sampler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	s.Sample(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sample(ctx)
		}
	}
}

// Stop ends the sampling loop and waits for it to exit.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Sample takes one reading and stores it.
func (s *Sampler) Sample(ctx context.Context) performance.ResourceSample {
	r := s.read()
	s.metrics.Heap(ctx, r.HeapAlloc)

	s.mu.Lock()
	s.ring[s.next] = r
	s.next = (s.next + 1) % len(s.ring)
	if s.next == 0 {
		s.full = true
	}
	s.mu.Unlock()
	return r
}

// Samples returns the retained samples, oldest first.
func (s *Sampler) Samples() []performance.ResourceSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.full {
		return append([]performance.ResourceSample(nil), s.ring[:s.next]...)
	}
	out := make([]performance.ResourceSample, 0, len(s.ring))
	out = append(out, s.ring[s.next:]...)
	return append(out, s.ring[:s.next]...)
}

// Latest returns the most recent sample.
func (s *Sampler) Latest() (performance.ResourceSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.full && s.next == 0 {
		return performance.ResourceSample{}, false
	}
	i := (s.next - 1 + len(s.ring)) % len(s.ring)
	return s.ring[i], true
}
