package depgraph

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
)

func TestSimpleChain(t *testing.T) {
	refs := []ProcessRef{
		{ID: 0, Name: "a", Before: []string{"b"}},
		{ID: 1, Name: "b"},
	}
	g, err := Build(refs)
	assert.NilError(t, err)

	id, ok := g.PopRunnable()
	assert.Assert(t, ok)
	assert.Equal(t, id, 0)

	_, ok = g.PopRunnable()
	assert.Assert(t, !ok)

	g.NotifyProcessFinished(0)
	id, ok = g.PopRunnable()
	assert.Assert(t, ok)
	assert.Equal(t, id, 1)
}

func TestInitialRunnablesAllYieldedFirst(t *testing.T) {
	refs := []ProcessRef{
		{ID: 0, Name: "a"},
		{ID: 1, Name: "b"},
		{ID: 2, Name: "c", After: []string{"a", "b"}},
	}
	g, err := Build(refs)
	assert.NilError(t, err)
	assert.Assert(t, g.HasRunnables())

	first, _ := g.PopRunnable()
	second, _ := g.PopRunnable()
	assert.DeepEqual(t, []int{first, second}, []int{0, 1})
	_, ok := g.PopRunnable()
	assert.Assert(t, !ok)
}

func TestCycleDetected(t *testing.T) {
	refs := []ProcessRef{
		{ID: 0, Name: "a", Before: []string{"b"}},
		{ID: 1, Name: "b", Before: []string{"a"}},
	}
	_, err := Build(refs)
	assert.ErrorContains(t, err, "cycle")
	var cycleErr *CycleError
	assert.Assert(t, errors.As(err, &cycleErr))
}

func TestUnknownReference(t *testing.T) {
	refs := []ProcessRef{
		{ID: 0, Name: "a", After: []string{"ghost"}},
	}
	_, err := Build(refs)
	var unkErr *UnknownReferenceError
	assert.Assert(t, errors.As(err, &unkErr))
	assert.Equal(t, unkErr.Name, "ghost")
}

func TestCronjobDependencyRejected(t *testing.T) {
	refs := []ProcessRef{
		{ID: 0, Name: "cron", Cronjob: true},
		{ID: 1, Name: "a", After: []string{"cron"}},
	}
	_, err := Build(refs)
	var cronErr *CronjobDependencyError
	assert.Assert(t, errors.As(err, &cronErr))
}

func TestNotifyProcessFinishedIdempotent(t *testing.T) {
	refs := []ProcessRef{
		{ID: 0, Name: "a", Before: []string{"b"}},
		{ID: 1, Name: "b"},
	}
	g, err := Build(refs)
	assert.NilError(t, err)
	g.PopRunnable()

	g.NotifyProcessFinished(0)
	g.NotifyProcessFinished(0)
	id, ok := g.PopRunnable()
	assert.Assert(t, ok)
	assert.Equal(t, id, 1)
	_, ok = g.PopRunnable()
	assert.Assert(t, !ok)
	assert.Assert(t, g.IsRunnable(1))
}

func TestPopRunnableYieldsEachIDAtMostOnce(t *testing.T) {
	refs := []ProcessRef{
		{ID: 0, Name: "a"},
	}
	g, err := Build(refs)
	assert.NilError(t, err)
	first, ok := g.PopRunnable()
	assert.Assert(t, ok)
	assert.Equal(t, first, 0)
	_, ok = g.PopRunnable()
	assert.Assert(t, !ok)
}
