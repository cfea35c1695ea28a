package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollectorSnapshot(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond)
	c.Record(500, 30*time.Millisecond)
	c.Record(429, 0)
	c.RecordPayrollRun(10, 1, 2, map[string]int{"zero_attendance": 3, "negative_net_clamped": 2})
	c.RecordPayrollRun(5, 0, 0, map[string]int{"zero_attendance": 1})

	snap := c.Snapshot()
	assert.Equal(t, uint64(3), snap["requestsTotal"])
	assert.Equal(t, uint64(1), snap["errorsTotal"])
	assert.Equal(t, uint64(1), snap["rateLimitedTotal"])
	assert.InDelta(t, 40.0/3.0, snap["avgDurationMs"], 0.001)
	assert.Equal(t, uint64(2), snap["payrollRunsTotal"])
	assert.Equal(t, uint64(15), snap["payrollResultsTotal"])
	assert.Equal(t, uint64(1), snap["payrollFailedTotal"])
	assert.Equal(t, uint64(2), snap["payrollNegativeNetTotal"])
	assert.Equal(t, map[string]uint64{"zero_attendance": 4, "negative_net_clamped": 2}, snap["payrollAnomaliesByCode"])
}

func TestNilCollectorIgnoresPayrollRuns(t *testing.T) {
	var c *Collector
	c.RecordPayrollRun(1, 0, 0, nil)
}
