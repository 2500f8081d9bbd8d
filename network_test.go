package sltm

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkAddLink(t *testing.T) {
	net := NewNetwork()
	n1 := addTestNode(t, net, 37.60, 55.75)
	n2 := addTestNode(t, net, 37.61, 55.75)

	_, err := net.AddLink(n1, 42, LINK_PRIMARY, 1)
	assert.True(t, errors.Is(err, ErrNodeNotFound))
	_, err = net.AddLink(n1, n2, LinkType(999), 1)
	assert.True(t, errors.Is(err, ErrUnknownLinkType))

	id, err := net.AddLink(n1, n2, LINK_SECONDARY, 0)
	require.NoError(t, err)
	link := net.Link(id)
	assert.Equal(t, 2, link.Lanes())
	assert.Equal(t, -1.0, link.MaxSpeed())
	// Length is evaluated from geometry when it is not given
	assert.InDelta(t, 0.63, link.LengthKm(), 0.01)
	assert.Len(t, link.Geom(), 2)
	assert.False(t, link.IsConnector())

	empty := NewNetwork()
	assert.True(t, errors.Is(empty.Prepare(), ErrNetworkEmpty))

	require.NoError(t, net.Prepare())
	assert.True(t, net.IsPrepared())
	_, err = net.AddNode(orb.Point{37.62, 55.75}, false)
	assert.True(t, errors.Is(err, ErrNetworkPrepared))
	_, err = net.AddLink(n2, n1, LINK_SECONDARY, 1)
	assert.True(t, errors.Is(err, ErrNetworkPrepared))
	assert.Nil(t, net.Link(100))
	assert.Nil(t, net.Node(-1))
}

func TestNetworkCentroids(t *testing.T) {
	net := NewNetwork()
	n1 := addTestNode(t, net, 37.60, 55.75)
	n2 := addTestNode(t, net, 37.61, 55.75)
	addTestLink(t, net, n1, n2, LINK_PRIMARY, 2)
	centroid := addTestCentroid(t, net, n1)

	_, err := net.AddCentroid(centroid)
	assert.True(t, errors.Is(err, ErrInvalidConfigValue))
	_, err = net.AddCentroid(77)
	assert.True(t, errors.Is(err, ErrNodeNotFound))

	require.NoError(t, net.Prepare())
	assert.Equal(t, []NodeID{centroid}, net.Centroids())
	node := net.Node(centroid)
	assert.True(t, node.IsCentroid())
	require.Len(t, node.OutcomingLinks(), 1)
	require.Len(t, node.IncomingLinks(), 1)
	connector := net.Link(node.OutcomingLinks()[0])
	assert.True(t, connector.IsConnector())
	assert.Equal(t, n1, connector.Target())
	assert.Equal(t, CONNECTOR_LENGTH_KM, connector.LengthKm())
	// Centroids never get movements
	assert.Empty(t, node.Movements())
}

func TestNetworkMovements(t *testing.T) {
	c := newDivergingCorridor(t)
	net := c.net
	diverge := net.Link(c.shared).Target()

	// Shared link may continue to both branches: eastbound traffic turns left to the northern one and right to the southern one
	composite := []string{"EBL", "EBR"}
	turns := []MovementType{MOVEMENT_LEFT, MOVEMENT_RIGHT}
	for i, branch := range c.branches {
		id, ok := net.MovementBetween(c.shared, branch)
		require.True(t, ok)
		mvmt := net.Movement(id)
		assert.Equal(t, diverge, mvmt.NodeID)
		assert.Len(t, mvmt.Geom(), 2)
		assert.Equal(t, APPROACH_EB, mvmt.Approach())
		assert.Equal(t, turns[i], mvmt.MovementType())
		assert.Equal(t, composite[i], mvmt.CompositeType())
	}
	_, ok := net.MovementBetween(c.branches[0], c.branches[1])
	assert.False(t, ok)

	// No U-turns
	for i := 0; i < net.MovementsNum(); i++ {
		mvmt := net.Movement(MovementID(i))
		entry := net.Link(mvmt.IncomingLinkID)
		exit := net.Link(mvmt.OutcomingLinkID)
		assert.NotEqual(t, entry.Source(), exit.Target(), "movement %d is a U-turn", mvmt.ID)
		assert.False(t, net.Node(mvmt.NodeID).IsCentroid())
		assert.Equal(t, entry.Target(), mvmt.NodeID)
		assert.Equal(t, exit.Source(), mvmt.NodeID)
	}

	// Origin connector feeds shared link
	_, ok = net.MovementBetween(originConnector(net, c.origin), c.shared)
	assert.True(t, ok)
}

func TestClassifyMovement(t *testing.T) {
	cases := []struct {
		name      string
		entry     orb.LineString
		exit      orb.LineString
		approach  Approach
		turn      MovementType
		composite string
	}{
		{"eastbound thru", orb.LineString{{0, 0}, {10, 0}}, orb.LineString{{10, 0}, {20, 1}}, APPROACH_EB, MOVEMENT_THRU, "EBT"},
		{"northbound right", orb.LineString{{0, 0}, {0, 10}}, orb.LineString{{0, 10}, {10, 10}}, APPROACH_NB, MOVEMENT_RIGHT, "NBR"},
		{"southbound left", orb.LineString{{0, 10}, {0, 0}}, orb.LineString{{0, 0}, {10, 0}}, APPROACH_SB, MOVEMENT_LEFT, "SBL"},
		{"westbound u-turn", orb.LineString{{10, 0}, {0, 0}}, orb.LineString{{0, 0}, {10, -0.5}}, APPROACH_WB, MOVEMENT_U_TURN, "WBU"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			approach, turn := classifyMovement(tc.entry, tc.exit)
			assert.Equal(t, tc.approach, approach)
			assert.Equal(t, tc.turn, turn)
			mvmt := Movement{approach: approach, movementType: turn}
			assert.Equal(t, tc.composite, mvmt.CompositeType())
		})
	}
	assert.Equal(t, "undefined", (&Movement{}).CompositeType())
}

func TestLinkTypeProperties(t *testing.T) {
	net := NewNetwork(WithLinkTypeProperties(LINK_SERVICE, LinkTypeProperties{FreeSpeed: 15, CapacityPerLane: 400, MaxDensityPerLane: 150, DefaultLanes: 1}))
	props, ok := net.LinkTypeProperties(LINK_SERVICE)
	require.True(t, ok)
	assert.Equal(t, 15.0, props.FreeSpeed)
	props, ok = net.LinkTypeProperties(LINK_MOTORWAY)
	require.True(t, ok)
	assert.Equal(t, 2300.0, props.CapacityPerLane)
	assert.Equal(t, 4, props.DefaultLanes)
	assert.Len(t, net.LinkTypes(), int(LINK_CONNECTOR))
	assert.Equal(t, "living_street", LINK_LIVING_STREET.String())
}
