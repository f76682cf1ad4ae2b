package health

import (
	"context"
	"sync"
	"time"
)

// Checker probes one dependency. Implementations must honor the context
// deadline; the runner enforces one per probe.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// ProbeRunner evaluates registered checkers for the readiness probe.
// Results are cached for the configured interval so probe storms do not
// turn into dependency storms.
type ProbeRunner struct {
	timeout  time.Duration
	interval time.Duration

	mu       sync.Mutex
	checkers []Checker
	last     []CheckResult
	lastAt   time.Time
}

func NewProbeRunner(timeout, interval time.Duration) *ProbeRunner {
	return &ProbeRunner{timeout: timeout, interval: interval}
}

func (p *ProbeRunner) Register(c Checker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkers = append(p.checkers, c)
}

// Ready runs all checkers (or returns the cached verdict) and reports
// whether every dependency is healthy.
func (p *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	p.mu.Lock()
	if time.Since(p.lastAt) < p.interval && p.last != nil {
		results := p.last
		p.mu.Unlock()
		return allHealthy(results), results
	}
	checkers := make([]Checker, len(p.checkers))
	copy(checkers, p.checkers)
	p.mu.Unlock()

	results := make([]CheckResult, 0, len(checkers))
	for _, c := range checkers {
		probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := c.Check(probeCtx)
		cancel()
		result := CheckResult{Name: c.Name(), Healthy: err == nil}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}

	p.mu.Lock()
	p.last = results
	p.lastAt = time.Now()
	p.mu.Unlock()
	return allHealthy(results), results
}

func allHealthy(results []CheckResult) bool {
	for _, r := range results {
		if !r.Healthy {
			return false
		}
	}
	return true
}
