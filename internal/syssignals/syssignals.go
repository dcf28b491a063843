// Package syssignals implements the system-signals sampler (§6): a
// background monitor publishing EMA-smoothed CPU and memory pressure at a
// fixed cadence, for use as input to higher-level self-model components.
package syssignals

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// alpha is the EMA smoothing factor: next = alpha*current + (1-alpha)*prev.
const alpha = 0.1

// sampleInterval is the sampling cadence.
const sampleInterval = 2 * time.Second

// Signals is one smoothed sample. Source and Host are provenance set once
// at construction and never updated afterward.
type Signals struct {
	CPULoadPct        float64
	MemoryPressurePct float64
	GPUAvailable      bool
	OccurredAt        time.Time
	Source            string
	Host              string
}

// Monitor runs the background sampler. Construct with New; Close stops it.
// The first Close call cancels the background goroutine; later calls return
// at once. There is no reference counting: a Monitor shared across
// components is closed once, by the owner that constructed it.
type Monitor struct {
	signals atomic.Pointer[Signals]
	cancel  context.CancelFunc
	done    chan struct{}
}

// New starts the background sampler immediately, taking its first
// synchronous measurement before returning so Get never sees a zero value.
func New(source string) *Monitor {
	host, _ := os.Hostname()

	m := &Monitor{done: make(chan struct{})}
	initial := Signals{
		CPULoadPct:        sampleCPU(),
		MemoryPressurePct: sampleMemory(),
		GPUAvailable:      false,
		OccurredAt:        time.Now().UTC(),
		Source:            source,
		Host:              host,
	}
	m.signals.Store(&initial)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.loop(ctx, source, host)
	return m
}

func (m *Monitor) loop(ctx context.Context, source, host string) {
	defer close(m.done)
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prev := m.signals.Load()
			next := Signals{
				CPULoadPct:        alpha*sampleCPU() + (1-alpha)*prev.CPULoadPct,
				MemoryPressurePct: alpha*sampleMemory() + (1-alpha)*prev.MemoryPressurePct,
				GPUAvailable:      prev.GPUAvailable,
				OccurredAt:        time.Now().UTC(),
				Source:            source,
				Host:              host,
			}
			m.signals.Store(&next)
		}
	}
}

// Get returns the most recent smoothed sample.
func (m *Monitor) Get() Signals {
	return *m.signals.Load()
}

// Close stops the background sampler and waits for it to exit.
func (m *Monitor) Close() error {
	m.cancel()
	<-m.done
	return nil
}

func sampleCPU() float64 {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return 0
	}
	return percents[0]
}

func sampleMemory() float64 {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return v.UsedPercent
}
