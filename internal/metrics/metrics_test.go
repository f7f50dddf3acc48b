package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	r := New()
	require.NotNil(t, r.Gatherer())

	r.ObserveMCPRequest("ok")
	r.SetMCPQueueDepth(3)
	r.ObserveStepDuration("shell", 0.5)
	r.ObserveStepAttempt("ok")

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilRegistryIsNoOp(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveMCPRequest("ok")
		r.SetMCPQueueDepth(1)
		r.ObserveStepDuration("shell", 0.1)
		r.ObserveStepAttempt("fail")
		assert.Nil(t, r.Gatherer())
	})
}
