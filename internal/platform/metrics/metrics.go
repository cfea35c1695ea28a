package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	payrollRuns      uint64
	payrollComputed  uint64
	payrollFailed    uint64
	payrollClampedNP uint64

	mu        sync.Mutex
	anomalies map[string]uint64
}

func New() *Collector {
	return &Collector{anomalies: map[string]uint64{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordPayrollRun adds one period run. anomalies counts warning and error
// codes across the run's results.
func (c *Collector) RecordPayrollRun(computed, failed, negativeNet int, anomalies map[string]int) {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.payrollRuns, 1)
	atomic.AddUint64(&c.payrollComputed, uint64(computed))
	atomic.AddUint64(&c.payrollFailed, uint64(failed))
	atomic.AddUint64(&c.payrollClampedNP, uint64(negativeNet))

	c.mu.Lock()
	defer c.mu.Unlock()
	for code, n := range anomalies {
		c.anomalies[code] += uint64(n)
	}
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	anomalies := make(map[string]uint64, len(c.anomalies))
	for code, n := range c.anomalies {
		anomalies[code] = n
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":           total,
		"errorsTotal":             errs,
		"rateLimitedTotal":        limited,
		"avgDurationMs":           avg,
		"totalDurationMs":         totalMs,
		"payrollRunsTotal":        atomic.LoadUint64(&c.payrollRuns),
		"payrollResultsTotal":     atomic.LoadUint64(&c.payrollComputed),
		"payrollFailedTotal":      atomic.LoadUint64(&c.payrollFailed),
		"payrollNegativeNetTotal": atomic.LoadUint64(&c.payrollClampedNP),
		"payrollAnomaliesByCode":  anomalies,
	}
}
