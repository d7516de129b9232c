// Package health polls the goal service's health endpoint.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultInterval = 30 * time.Second

// Status is the last observed connectivity.
type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusConnected   Status = "connected"
	StatusUnavailable Status = "unavailable"
)

// Prober performs one health request. Any error means unavailable.
type Prober interface {
	Health(ctx context.Context) error
}

// Report is a single probe result.
type Report struct {
	Status    Status
	CheckedAt time.Time
	Err       error
}

// Checker probes immediately on Start and then every Interval until Stop.
// OnReport, when set, is called from the polling goroutine after each probe.
type Checker struct {
	Prober   Prober
	Interval time.Duration
	OnReport func(Report)
	Logger   *slog.Logger

	mu      sync.Mutex
	last    Report
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewChecker returns a Checker with the default interval.
func NewChecker(p Prober) *Checker {
	return &Checker{Prober: p, Interval: DefaultInterval}
}

// Check runs one probe synchronously and records it.
func (c *Checker) Check(ctx context.Context) Report {
	r := c.measure(ctx)
	c.record(r)
	return r
}

func (c *Checker) measure(ctx context.Context) Report {
	err := c.Prober.Health(ctx)
	r := Report{Status: StatusConnected, CheckedAt: time.Now(), Err: err}
	if err != nil {
		r.Status = StatusUnavailable
		c.logger().Debug("health check failed", "error", err)
	}
	return r
}

func (c *Checker) record(r Report) {
	c.mu.Lock()
	c.last = r
	c.mu.Unlock()
}

// Last returns the most recent report. Status is unknown before the first probe.
func (c *Checker) Last() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last.Status == "" {
		return Report{Status: StatusUnknown}
	}
	return c.last
}

// Start launches the polling goroutine. Calling Start on a running Checker is a no-op.
func (c *Checker) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.started = true

	interval := c.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	go c.run(ctx, interval, c.done)
}

// Stop cancels polling and waits for the goroutine to exit. No probe starts
// after Stop returns. Safe to call more than once.
func (c *Checker) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.started = false
	c.mu.Unlock()

	cancel()
	<-done
}

func (c *Checker) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.probe(ctx)
		}
	}
}

// probe drops results of a probe interrupted by Stop.
func (c *Checker) probe(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	r := c.measure(ctx)
	if ctx.Err() != nil {
		return
	}
	c.record(r)
	if c.OnReport != nil {
		c.OnReport(r)
	}
}

func (c *Checker) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}
