package sltm

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeFlowRouter(t *testing.T, net *Network) (*Router, []float64) {
	t.Helper()
	diagrams := NewFundamentalDiagramComponent()
	require.NoError(t, diagrams.Initialize(net))
	costs := NewLinkCostComputer(net, diagrams).FreeFlowCosts()
	router, err := NewRouter(net, costs)
	require.NoError(t, err)
	return router, costs
}

func TestRouterCheapestPath(t *testing.T) {
	tr := newTriangle(t)
	router, costs := freeFlowRouter(t, tr.net)

	path, cost, err := router.ShortestPath(tr.origin, tr.d1)
	require.NoError(t, err)
	expected := Path{originConnector(tr.net, tr.origin), tr.n1n3, destinationConnector(tr.net, tr.d1)}
	assert.Equal(t, expected, path)
	assert.InDelta(t, expected.Cost(costs), cost, 1e-9)
	require.NoError(t, validatePath(tr.net, tr.origin, tr.d1, path))

	// Make direct link expensive
	costs[tr.n1n3] = 10
	router, err = NewRouter(tr.net, costs)
	require.NoError(t, err)
	path, _, err = router.ShortestPath(tr.origin, tr.d1)
	require.NoError(t, err)
	assert.Equal(t, Path{originConnector(tr.net, tr.origin), tr.n1n2, tr.n2n3, destinationConnector(tr.net, tr.d1)}, path)
}

func TestRouterSkipsCentroids(t *testing.T) {
	net := NewNetwork()
	n1 := addTestNode(t, net, 37.60, 55.75)
	n2 := addTestNode(t, net, 37.70, 55.75)
	long, err := net.AddLink(n1, n2, LINK_PRIMARY, 2, WithLengthKm(100))
	require.NoError(t, err)
	// Zone touching both nodes would be a shortcut if traffic could pass through it
	zone, err := net.AddNode(orb.Point{37.65, 55.75}, true)
	require.NoError(t, err)
	_, err = net.AddLink(n1, zone, LINK_CONNECTOR, -1, WithLengthKm(CONNECTOR_LENGTH_KM))
	require.NoError(t, err)
	_, err = net.AddLink(zone, n2, LINK_CONNECTOR, -1, WithLengthKm(CONNECTOR_LENGTH_KM))
	require.NoError(t, err)
	origin := addTestCentroid(t, net, n1)
	destination := addTestCentroid(t, net, n2)
	require.NoError(t, net.Prepare())

	router, _ := freeFlowRouter(t, net)
	path, _, err := router.ShortestPath(origin, destination)
	require.NoError(t, err)
	assert.Equal(t, Path{originConnector(net, origin), long, destinationConnector(net, destination)}, path)
	for _, linkID := range path[1 : len(path)-1] {
		assert.False(t, net.Link(linkID).IsConnector())
	}
}

func TestRouterNoPath(t *testing.T) {
	net := NewNetwork()
	n1 := addTestNode(t, net, 37.60, 55.75)
	n2 := addTestNode(t, net, 37.61, 55.75)
	addTestLink(t, net, n1, n2, LINK_PRIMARY, 2)
	origin := addTestCentroid(t, net, n2)
	destination := addTestCentroid(t, net, n1)
	require.NoError(t, net.Prepare())

	router, costs := freeFlowRouter(t, net)
	_, _, err := router.ShortestPath(origin, destination)
	assert.True(t, errors.Is(err, ErrNoPath), "unexpected error: %v", err)

	_, _, err = router.ShortestPath(n1, destination)
	assert.True(t, errors.Is(err, ErrNotCentroid))

	_, err = NewRouter(net, costs[:1])
	assert.True(t, errors.Is(err, ErrInvalidConfigValue))
	_, err = NewRouter(NewNetwork(), nil)
	assert.True(t, errors.Is(err, ErrNetworkNotPrepared))
}
