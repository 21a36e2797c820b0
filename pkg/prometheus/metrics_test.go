package prometheus_test

import (
	"testing"

	"github.com/openmined/mine/pkg/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestMakeMetricsTwice(t *testing.T) {
	counter, latency := prometheus.MakeMetrics("mine_test", "api")
	assert.NotNil(t, counter)
	assert.NotNil(t, latency)

	assert.NotPanics(t, func() {
		c, l := prometheus.MakeMetrics("mine_test", "api")
		c.With("method", "state").Add(1)
		l.With("method", "state").Observe(1)
	})
}
