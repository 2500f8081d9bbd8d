package sltm

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemand(t *testing.T) {
	demand := NewDemand()
	require.NoError(t, demand.Set(5, 7, 100))
	require.NoError(t, demand.Set(5, 6, 50))
	require.NoError(t, demand.Set(3, 7, 25))
	require.NoError(t, demand.Add(5, 7, 10))

	assert.Equal(t, 110.0, demand.Get(5, 7))
	assert.Equal(t, 0.0, demand.Get(7, 5))
	assert.Equal(t, []NodeID{3, 5}, demand.Origins())
	assert.Equal(t, []NodeID{6, 7}, demand.Destinations(5))
	assert.InDelta(t, 185.0, demand.Total(), 1e-12)

	require.NoError(t, demand.Set(3, 7, 0))
	assert.Equal(t, []NodeID{5}, demand.Origins())

	assert.True(t, errors.Is(demand.Set(5, 7, -1), ErrNegativeFlow))
	assert.True(t, errors.Is(demand.Set(5, 5, 1), ErrInvalidConfigValue))
}

func TestOdPathSets(t *testing.T) {
	tr := newTriangle(t)
	demand := NewDemand()
	require.NoError(t, demand.Set(tr.origin, tr.d1, 1000))
	sets := NewOdPathSets(tr.net, demand)

	oc := originConnector(tr.net, tr.origin)
	dc := destinationConnector(tr.net, tr.d1)
	direct := Path{oc, tr.n1n3, dc}
	detour := Path{oc, tr.n1n2, tr.n2n3, dc}

	require.NoError(t, sets.Add(tr.origin, tr.d1, direct, 0.3))
	choices := sets.Paths(tr.origin, tr.d1)
	require.Len(t, choices, 1)
	assert.Equal(t, 1.0, choices[0].Probability)

	require.NoError(t, sets.Add(tr.origin, tr.d1, detour, 0.5))
	choices = sets.Paths(tr.origin, tr.d1)
	require.Len(t, choices, 2)
	assert.InDelta(t, 0.5, choices[0].Probability, 1e-12)
	assert.InDelta(t, 0.5, choices[1].Probability, 1e-12)

	require.NoError(t, sets.Add(tr.origin, tr.d1, direct, 0.5))
	choices = sets.Paths(tr.origin, tr.d1)
	require.Len(t, choices, 2)
	assert.InDelta(t, 0.75, choices[0].Probability, 1e-12)
	assert.InDelta(t, 0.25, choices[1].Probability, 1e-12)
	assert.InDelta(t, 750.0, sets.PathFlow(tr.origin, tr.d1, choices[0]), 1e-9)

	// Full step drops every other path
	require.NoError(t, sets.Add(tr.origin, tr.d1, detour, 1))
	choices = sets.Paths(tr.origin, tr.d1)
	require.Len(t, choices, 1)
	assert.Equal(t, detour, choices[0].Path)

	assert.True(t, errors.Is(sets.Add(tr.origin, tr.d1, detour, 2), ErrInvalidStepSize))
	assert.True(t, errors.Is(sets.Add(tr.origin, tr.d2, detour, 0.5), ErrPathWrongEnds))
}

func TestPath(t *testing.T) {
	path := Path{3, 1, 4}
	assert.Equal(t, "[3->1->4]", path.String())
	assert.InDelta(t, 6.0, path.Cost([]float64{0, 1, 0, 2, 3}), 1e-12)
	assert.True(t, path.equal(Path{3, 1, 4}))
	assert.False(t, path.equal(Path{3, 1}))
}
