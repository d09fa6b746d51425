package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Strob0t/quorumgate/internal/domain/performance"
)

func TestSamplerRingEvictsOldest(t *testing.T) {
	s := NewSampler(time.Hour, 3)
	var n uint64
	s.read = func() performance.ResourceSample {
		n++
		return performance.ResourceSample{HeapAlloc: n}
	}

	if _, ok := s.Latest(); ok {
		t.Fatal("expected no sample before the first reading")
	}
	for i := 0; i < 5; i++ {
		s.Sample(context.Background())
	}

	got := s.Samples()
	if len(got) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(got))
	}
	for i, want := range []uint64{3, 4, 5} {
		if got[i].HeapAlloc != want {
			t.Fatalf("sample %d: expected %d, got %d", i, want, got[i].HeapAlloc)
		}
	}
	if latest, _ := s.Latest(); latest.HeapAlloc != 5 {
		t.Fatalf("expected latest 5, got %d", latest.HeapAlloc)
	}
}

func TestSamplerStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewSampler(5*time.Millisecond, 10)
	s.Start(context.Background())
	s.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for len(s.Samples()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	s.Stop()

	if len(s.Samples()) < 2 {
		t.Fatal("expected the loop to take periodic samples")
	}
}

func TestMonitorUsesSamplerMemory(t *testing.T) {
	mon, _ := newMonitor(t, performance.DefaultSLA())
	s := NewSampler(time.Hour, 2)
	s.read = func() performance.ResourceSample { return performance.ResourceSample{HeapAlloc: 1234} }
	s.Sample(context.Background())
	mon.SetSampler(s)

	m := mon.Monitor(context.Background(), pipelineWith(90), time.Now())
	if m.MemoryUsage != 1234 {
		t.Fatalf("expected sampled memory, got %d", m.MemoryUsage)
	}
	if len(mon.Samples()) != 1 {
		t.Fatal("expected sampler samples to be exposed")
	}
}
