package wsserver

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// resourceGuard samples system-wide CPU usage in the background and lets the
// server reject new connections once it crosses a configured threshold,
// rather than discovering overload only after accepted clients start
// falling behind.
type resourceGuard struct {
	rejectThreshold float64
	currentCPU      atomic.Uint64 // math.Float64bits of the last sampled percentage
}

func newResourceGuard(rejectThreshold float64) *resourceGuard {
	g := &resourceGuard{rejectThreshold: rejectThreshold}
	return g
}

func (g *resourceGuard) start(stop <-chan struct{}, interval time.Duration) {
	if g.rejectThreshold <= 0 {
		return
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				percents, err := cpu.Percent(0, false)
				if err != nil || len(percents) == 0 {
					continue
				}
				g.store(percents[0])
			}
		}
	}()
}

func (g *resourceGuard) store(pct float64) {
	g.currentCPU.Store(math.Float64bits(pct))
}

func (g *resourceGuard) shouldAcceptConnection() bool {
	if g.rejectThreshold <= 0 {
		return true
	}
	return math.Float64frombits(g.currentCPU.Load()) < g.rejectThreshold
}
