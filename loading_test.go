package sltm

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bottleneckBushes(t *testing.T, c *corridor, flow float64) *Bushes {
	t.Helper()
	bushes := NewBushes(c.net)
	bush, err := bushes.GetOrCreate(c.origin)
	require.NoError(t, err)
	path := Path{originConnector(c.net, c.origin), c.links[0], c.links[1], c.links[2], destinationConnector(c.net, c.destination)}
	require.NoError(t, bush.AddPathFlow(c.destination, path, flow))
	return bushes
}

func TestLoadingBottleneck(t *testing.T) {
	for _, scheme := range []SolutionScheme{SCHEME_POINT_QUEUE_BASIC, SCHEME_POINT_QUEUE_ADVANCED} {
		t.Run(scheme.String(), func(t *testing.T) {
			c := newBottleneckCorridor(t)
			diagrams := NewFundamentalDiagramComponent()
			require.NoError(t, diagrams.Initialize(c.net))
			logger, sink := newCapturingLogger(DEBUG)

			loading, err := NewNetworkLoading(c.net, diagrams, WithLoadingScheme(scheme), WithLoadingLogger(logger))
			require.NoError(t, err)
			result, err := loading.Load(context.Background(), bottleneckBushes(t, c, 2000))
			require.NoError(t, err)
			assert.True(t, result.Converged)
			assert.Less(t, result.Change, DEFAULT_LOADING_EPSILON)
			assert.Greater(t, result.Iterations, 1)
			assert.Empty(t, sink.errors())

			data := loading.Data()
			a, b, cc := c.links[0], c.links[1], c.links[2]
			assert.InDelta(t, 0.25, data.AcceptanceFactors()[a], 1e-9)
			assert.InDelta(t, 1.0, data.AcceptanceFactors()[b], 1e-9)
			assert.InDelta(t, 2000.0, data.SendingFlows()[a], 1e-6)
			assert.InDelta(t, 500.0, data.OutFlows()[a], 1e-6)
			assert.InDelta(t, 500.0, data.SendingFlows()[b], 1e-6)
			assert.InDelta(t, 500.0, data.OutFlows()[b], 1e-6)
			assert.InDelta(t, 500.0, data.SendingFlows()[cc], 1e-6)
			assert.InDelta(t, 500.0, data.SendingFlows()[destinationConnector(c.net, c.destination)], 1e-6)

			adapter := loading.NodeModelAdapter()
			bottleneckNode := adapter.Result(c.nodes[1])
			require.NotNil(t, bottleneckNode)
			assert.Equal(t, NODE_MODEL_RESULT_TURN_BASED, bottleneckNode.Kind)
			assert.InDelta(t, 500.0, bottleneckNode.TotalAcceptedTurnFlow(), 1e-6)

			destination := adapter.Result(c.destination)
			require.NotNil(t, destination)
			assert.Equal(t, NODE_MODEL_RESULT_CENTROID, destination.Kind)

			if scheme == SCHEME_POINT_QUEUE_ADVANCED {
				// Uncongested nodes are not solved
				assert.Nil(t, adapter.Result(c.nodes[0]))
				assert.Equal(t, 1, result.BlockingNodes)
			} else {
				assert.NotNil(t, adapter.Result(c.nodes[0]))
			}

			// Next loading starts over from unrestricted state and gets the same answer
			again, err := loading.Load(context.Background(), bottleneckBushes(t, c, 2000))
			require.NoError(t, err)
			assert.Equal(t, result.Iterations, again.Iterations)
			assert.InDelta(t, 0.25, data.AcceptanceFactors()[a], 1e-9)
		})
	}
}

func TestLoadingPathsMatchBushes(t *testing.T) {
	c := newBottleneckCorridor(t)
	diagrams := NewFundamentalDiagramComponent()
	require.NoError(t, diagrams.Initialize(c.net))

	demand := NewDemand()
	require.NoError(t, demand.Set(c.origin, c.destination, 2000))
	sets := NewOdPathSets(c.net, demand)
	path := Path{originConnector(c.net, c.origin), c.links[0], c.links[1], c.links[2], destinationConnector(c.net, c.destination)}
	require.NoError(t, sets.Add(c.origin, c.destination, path, 1))

	pathLoading, err := NewNetworkLoading(c.net, diagrams)
	require.NoError(t, err)
	_, err = pathLoading.Load(context.Background(), sets)
	require.NoError(t, err)

	bushLoading, err := NewNetworkLoading(c.net, diagrams)
	require.NoError(t, err)
	_, err = bushLoading.Load(context.Background(), bottleneckBushes(t, c, 2000))
	require.NoError(t, err)

	assert.InDeltaSlice(t, bushLoading.Data().SendingFlows(), pathLoading.Data().SendingFlows(), 1e-6)
	assert.InDeltaSlice(t, bushLoading.Data().AcceptanceFactors(), pathLoading.Data().AcceptanceFactors(), 1e-9)
	assert.InDeltaSlice(t, bushLoading.Data().AcceptedTurnFlows(), pathLoading.Data().AcceptedTurnFlows(), 1e-6)
}

func TestLoadingUncongested(t *testing.T) {
	c := newBottleneckCorridor(t)
	diagrams := NewFundamentalDiagramComponent()
	require.NoError(t, diagrams.Initialize(c.net))
	loading, err := NewNetworkLoading(c.net, diagrams, WithLoadingTrackAllNodes(true))
	require.NoError(t, err)

	result, err := loading.Load(context.Background(), bottleneckBushes(t, c, 300))
	require.NoError(t, err)
	assert.True(t, result.Converged)
	assert.Equal(t, 2, result.Iterations)
	for _, alpha := range loading.Data().AcceptanceFactors() {
		assert.InDelta(t, 1.0, alpha, 1e-12)
	}
	for _, linkID := range c.links {
		assert.InDelta(t, 300.0, loading.Data().OutFlows()[linkID], 1e-9)
	}
}

func TestLoadingConfiguration(t *testing.T) {
	c := newBottleneckCorridor(t)
	diagrams := NewFundamentalDiagramComponent()
	require.NoError(t, diagrams.Initialize(c.net))

	_, err := NewNetworkLoading(nil, diagrams)
	assert.True(t, errors.Is(err, ErrNetworkMissing))
	_, err = NewNetworkLoading(c.net, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfigValue))
	_, err = NewNetworkLoading(c.net, diagrams, WithLoadingScheme(SCHEME_PHYSICAL_QUEUE_BASIC))
	assert.True(t, errors.Is(err, ErrUnsupportedScheme))
	_, err = NewNetworkLoading(c.net, diagrams, WithLoadingEpsilon(0))
	assert.True(t, errors.Is(err, ErrInvalidConfigValue))

	unprepared := NewNetwork()
	_, err = NewNetworkLoading(unprepared, diagrams)
	assert.True(t, errors.Is(err, ErrNetworkNotPrepared))

	loading, err := NewNetworkLoading(c.net, diagrams, WithLoadingIterations(5))
	require.NoError(t, err)
	_, err = loading.Load(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrInvalidConfigValue))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = loading.Load(ctx, bottleneckBushes(t, c, 100))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSolutionScheme(t *testing.T) {
	scheme, ok := ParseSolutionScheme("basic")
	require.True(t, ok)
	assert.Equal(t, SCHEME_POINT_QUEUE_BASIC, scheme)
	scheme, ok = ParseSolutionScheme("point_queue_advanced")
	require.True(t, ok)
	assert.Equal(t, SCHEME_POINT_QUEUE_ADVANCED, scheme)
	scheme, ok = ParseSolutionScheme("physical_queue_basic")
	require.True(t, ok)
	assert.False(t, scheme.IsSupported())
	_, ok = ParseSolutionScheme("spillback")
	assert.False(t, ok)
	assert.Equal(t, "undefined", SolutionScheme(0).String())
}
