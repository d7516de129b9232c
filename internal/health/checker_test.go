package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type proberFunc func(ctx context.Context) error

func (f proberFunc) Health(ctx context.Context) error { return f(ctx) }

func TestCheckRecordsStatus(t *testing.T) {
	healthy := true
	c := NewChecker(proberFunc(func(ctx context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	}))
	if got := c.Last().Status; got != StatusUnknown {
		t.Fatalf("initial status = %s, want unknown", got)
	}
	if r := c.Check(context.Background()); r.Status != StatusConnected {
		t.Fatalf("status = %s, want connected", r.Status)
	}
	healthy = false
	c.Check(context.Background())
	last := c.Last()
	if last.Status != StatusUnavailable || last.Err == nil || last.CheckedAt.IsZero() {
		t.Fatalf("unexpected last report: %+v", last)
	}
}

func TestStartProbesImmediatelyAndStopHalts(t *testing.T) {
	var probes atomic.Int32
	reports := make(chan Report, 16)
	c := &Checker{
		Prober: proberFunc(func(ctx context.Context) error {
			probes.Add(1)
			return nil
		}),
		Interval: 5 * time.Millisecond,
		OnReport: func(r Report) {
			select {
			case reports <- r:
			default:
			}
		},
	}
	c.Start(context.Background())
	c.Start(context.Background())

	for i := 0; i < 3; i++ {
		select {
		case r := <-reports:
			if r.Status != StatusConnected {
				t.Fatalf("status = %s", r.Status)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for probe %d", i+1)
		}
	}

	c.Stop()
	after := probes.Load()
	time.Sleep(30 * time.Millisecond)
	if got := probes.Load(); got != after {
		t.Fatalf("probes continued after Stop: %d -> %d", after, got)
	}
	c.Stop()
}

func TestStopBeforeStart(t *testing.T) {
	c := NewChecker(proberFunc(func(ctx context.Context) error { return nil }))
	c.Stop()
}

func TestParentCancelEndsPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Checker{Prober: proberFunc(func(ctx context.Context) error { return nil }), Interval: time.Millisecond}
	c.Start(ctx)
	cancel()
	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return after parent cancel")
	}
}
