package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowctl/flowctl/internal/flow"
)

func mkFlow(steps ...*flow.Step) *flow.Flow {
	f := &flow.Flow{
		Version:   1,
		OutputDir: "out",
		Steps:     steps,
		StepIndex: make(map[string]int, len(steps)),
	}
	for i, s := range steps {
		f.StepIndex[s.ID] = i
	}
	return f
}

func shellStep(id string, deps ...string) *flow.Step {
	return &flow.Step{ID: id, Uses: flow.UsesShell, DependsOn: deps, Shell: &flow.ShellUses{Run: "true"}}
}

func TestComputeDeclarationOrderForDisjointSteps(t *testing.T) {
	f := mkFlow(shellStep("a"), shellStep("b"), shellStep("c"))

	p, err := Compute(f, nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, p.Order)
	assert.Empty(t, p.Precompleted)
}

func TestComputeChain(t *testing.T) {
	f := mkFlow(shellStep("a"), shellStep("b", "a"), shellStep("c", "b"))

	p, err := Compute(f, nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, p.Order)
}

func TestComputeOnlyPullsInTransitiveDeps(t *testing.T) {
	f := mkFlow(shellStep("a"), shellStep("b", "a"), shellStep("c", "b"), shellStep("d"))

	p, err := Compute(f, []string{"c"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, p.Order)
}

func TestComputeContinueFromMarksPrecompleted(t *testing.T) {
	f := mkFlow(shellStep("a"), shellStep("b", "a"), shellStep("c", "b"))

	p, err := Compute(f, []string{"c"}, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, p.Order)
	assert.True(t, p.Precompleted["a"])
	assert.False(t, p.Precompleted["b"])
}

func TestComputeUnknownOnlyFails(t *testing.T) {
	f := mkFlow(shellStep("a"))

	_, err := Compute(f, []string{"missing"}, "")
	require.Error(t, err)
}

func TestComputeUnknownContinueFromFails(t *testing.T) {
	f := mkFlow(shellStep("a"))

	_, err := Compute(f, nil, "missing")
	require.Error(t, err)
}

func TestComputeCycleFails(t *testing.T) {
	a := shellStep("a", "b")
	b := shellStep("b", "a")
	f := mkFlow(a, b)

	_, err := Compute(f, nil, "")
	require.Error(t, err)
}
