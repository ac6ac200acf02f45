package hostmetrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleReturnsNonNegativeValues(t *testing.T) {
	ctx := context.Background()
	s := NewSampler(ctx)

	sample := s.Sample(ctx)

	assert.GreaterOrEqual(t, sample.CPUPercent, 0.0)
	assert.GreaterOrEqual(t, sample.MemoryUsedMB, 0.0)
	assert.GreaterOrEqual(t, sample.DiskUsedGB, 0.0)
}
