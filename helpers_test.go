package sltm

import (
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

// corridor is small test network: origin centroid, chain of links and destination centroid
type corridor struct {
	net         *Network
	origin      NodeID
	destination NodeID
	nodes       []NodeID
	links       []LinkID
}

func addTestNode(t *testing.T, net *Network, lon, lat float64) NodeID {
	t.Helper()
	id, err := net.AddNode(orb.Point{lon, lat}, false)
	require.NoError(t, err)
	return id
}

func addTestLink(t *testing.T, net *Network, source, target NodeID, linkType LinkType, lanes int) LinkID {
	t.Helper()
	id, err := net.AddLink(source, target, linkType, lanes, WithLengthKm(1.0))
	require.NoError(t, err)
	return id
}

func addTestCentroid(t *testing.T, net *Network, attachTo NodeID) NodeID {
	t.Helper()
	id, err := net.AddCentroid(attachTo)
	require.NoError(t, err)
	return id
}

// newBottleneckCorridor builds O -> n1 -A-> n2 -B-> n3 -C-> n4 -> D where B is single lane with capacity 500 pcu/h
func newBottleneckCorridor(t *testing.T) *corridor {
	t.Helper()
	net := NewNetwork(WithLinkTypeProperties(LINK_RESIDENTIAL, LinkTypeProperties{
		FreeSpeed:         50,
		CapacityPerLane:   500,
		MaxDensityPerLane: DEFAULT_MAX_DENSITY_PCU_KM_LANE,
		DefaultLanes:      1,
	}))
	c := &corridor{net: net}
	for i := 0; i < 4; i++ {
		c.nodes = append(c.nodes, addTestNode(t, net, 37.60+0.01*float64(i), 55.75))
	}
	c.links = append(c.links, addTestLink(t, net, c.nodes[0], c.nodes[1], LINK_PRIMARY, 3))
	c.links = append(c.links, addTestLink(t, net, c.nodes[1], c.nodes[2], LINK_RESIDENTIAL, 1))
	c.links = append(c.links, addTestLink(t, net, c.nodes[2], c.nodes[3], LINK_PRIMARY, 3))
	c.origin = addTestCentroid(t, net, c.nodes[0])
	c.destination = addTestCentroid(t, net, c.nodes[3])
	require.NoError(t, net.Prepare())
	return c
}

// originConnector returns connector leaving the centroid
func originConnector(net *Network, centroid NodeID) LinkID {
	return net.Node(centroid).OutcomingLinks()[0]
}

// destinationConnector returns connector entering the centroid
func destinationConnector(net *Network, centroid NodeID) LinkID {
	return net.Node(centroid).IncomingLinks()[0]
}

// divergingCorridor is O -> n1 -shared-> n2, then n2 -left-> n3 -> D1 and n2 -right-> n4 -> D2
type divergingCorridor struct {
	net          *Network
	origin       NodeID
	destinations [2]NodeID
	shared       LinkID
	branches     [2]LinkID
}

func newDivergingCorridor(t *testing.T) *divergingCorridor {
	t.Helper()
	net := NewNetwork()
	n1 := addTestNode(t, net, 37.60, 55.75)
	n2 := addTestNode(t, net, 37.61, 55.75)
	n3 := addTestNode(t, net, 37.62, 55.76)
	n4 := addTestNode(t, net, 37.62, 55.74)
	c := &divergingCorridor{net: net}
	c.shared = addTestLink(t, net, n1, n2, LINK_MOTORWAY, 4)
	c.branches[0] = addTestLink(t, net, n2, n3, LINK_PRIMARY, 3)
	c.branches[1] = addTestLink(t, net, n2, n4, LINK_PRIMARY, 3)
	c.origin = addTestCentroid(t, net, n1)
	c.destinations[0] = addTestCentroid(t, net, n3)
	c.destinations[1] = addTestCentroid(t, net, n4)
	require.NoError(t, net.Prepare())
	return c
}

func (c *divergingCorridor) path(i int) Path {
	return Path{
		originConnector(c.net, c.origin),
		c.shared,
		c.branches[i],
		destinationConnector(c.net, c.destinations[i]),
	}
}

// triangle has two routes n1 -> n3 (via n2 and direct) plus link n3 -> n2 which closes a cycle with n2 -> n3.
// Centroid D1 is attached to n3 and D2 to n2.
type triangle struct {
	net                    *Network
	origin, d1, d2         NodeID
	n1n2, n2n3, n1n3, n3n2 LinkID
}

func newTriangle(t *testing.T) *triangle {
	t.Helper()
	net := NewNetwork()
	n1 := addTestNode(t, net, 37.60, 55.75)
	n2 := addTestNode(t, net, 37.61, 55.76)
	n3 := addTestNode(t, net, 37.62, 55.75)
	tr := &triangle{net: net}
	tr.n1n2 = addTestLink(t, net, n1, n2, LINK_PRIMARY, 2)
	tr.n2n3 = addTestLink(t, net, n2, n3, LINK_PRIMARY, 2)
	tr.n1n3 = addTestLink(t, net, n1, n3, LINK_PRIMARY, 2)
	tr.n3n2 = addTestLink(t, net, n3, n2, LINK_PRIMARY, 2)
	tr.origin = addTestCentroid(t, net, n1)
	tr.d1 = addTestCentroid(t, net, n3)
	tr.d2 = addTestCentroid(t, net, n2)
	require.NoError(t, net.Prepare())
	return tr
}

// logSink collects formatted log lines
type logSink struct {
	lines []string
}

func (sink *logSink) errors() []string {
	found := []string{}
	for _, line := range sink.lines {
		if strings.Contains(line, `"error"=`) {
			found = append(found, line)
		}
	}
	return found
}

func newCapturingLogger(verbosity int) (logr.Logger, *logSink) {
	sink := &logSink{}
	logger := funcr.New(func(prefix, args string) {
		sink.lines = append(sink.lines, args)
	}, funcr.Options{Verbosity: verbosity})
	return logger, sink
}

// nestedFork splits flow twice downstream of a shared link:
//
//	n1 -s-> n2 -a-> n3 -c-> n5 (D1)
//	        n2 -b-> n4 (D3)
//	                n3 -e-> n6 (D2) -g-> n7 (D4)
type nestedFork struct {
	net              *Network
	origin           NodeID
	destinations     [4]NodeID
	s, a, b, c, e, g LinkID
	oc               LinkID
	paths            [4]Path
}

func newNestedFork(t *testing.T) *nestedFork {
	t.Helper()
	net := NewNetwork()
	n1 := addTestNode(t, net, 37.60, 55.75)
	n2 := addTestNode(t, net, 37.61, 55.75)
	n3 := addTestNode(t, net, 37.62, 55.76)
	n4 := addTestNode(t, net, 37.62, 55.74)
	n5 := addTestNode(t, net, 37.63, 55.77)
	n6 := addTestNode(t, net, 37.63, 55.76)
	n7 := addTestNode(t, net, 37.64, 55.76)
	f := &nestedFork{net: net}
	f.s = addTestLink(t, net, n1, n2, LINK_MOTORWAY, 4)
	f.a = addTestLink(t, net, n2, n3, LINK_PRIMARY, 3)
	f.b = addTestLink(t, net, n2, n4, LINK_PRIMARY, 2)
	f.c = addTestLink(t, net, n3, n5, LINK_PRIMARY, 2)
	f.e = addTestLink(t, net, n3, n6, LINK_PRIMARY, 2)
	f.g = addTestLink(t, net, n6, n7, LINK_PRIMARY, 2)
	f.origin = addTestCentroid(t, net, n1)
	for i, node := range []NodeID{n5, n6, n4, n7} {
		f.destinations[i] = addTestCentroid(t, net, node)
	}
	require.NoError(t, net.Prepare())
	f.oc = originConnector(net, f.origin)
	dc := func(i int) LinkID { return destinationConnector(net, f.destinations[i]) }
	f.paths = [4]Path{
		{f.oc, f.s, f.a, f.c, dc(0)},
		{f.oc, f.s, f.a, f.e, dc(1)},
		{f.oc, f.s, f.b, dc(2)},
		{f.oc, f.s, f.a, f.e, f.g, dc(3)},
	}
	return f
}

// diamond is acyclic network with alternative routes towards three destinations:
//
//	m1 -> m2 (D2), m1 -> m3 (D1), m2 -> m3, m2 -> m4 (D3), m3 -> m4
type diamond struct {
	net          *Network
	origin       NodeID
	destinations [3]NodeID
	// paths are alternative paths per destination
	paths [3][]Path
}

func newDiamond(t *testing.T) *diamond {
	t.Helper()
	net := NewNetwork()
	m1 := addTestNode(t, net, 37.60, 55.75)
	m2 := addTestNode(t, net, 37.61, 55.76)
	m3 := addTestNode(t, net, 37.62, 55.75)
	m4 := addTestNode(t, net, 37.63, 55.76)
	m1m2 := addTestLink(t, net, m1, m2, LINK_PRIMARY, 2)
	m2m3 := addTestLink(t, net, m2, m3, LINK_PRIMARY, 2)
	m1m3 := addTestLink(t, net, m1, m3, LINK_PRIMARY, 2)
	m3m4 := addTestLink(t, net, m3, m4, LINK_PRIMARY, 2)
	m2m4 := addTestLink(t, net, m2, m4, LINK_PRIMARY, 2)
	dm := &diamond{net: net}
	dm.origin = addTestCentroid(t, net, m1)
	for i, node := range []NodeID{m3, m2, m4} {
		dm.destinations[i] = addTestCentroid(t, net, node)
	}
	require.NoError(t, net.Prepare())
	oc := originConnector(net, dm.origin)
	dc := func(i int) LinkID { return destinationConnector(net, dm.destinations[i]) }
	dm.paths = [3][]Path{
		{{oc, m1m2, m2m3, dc(0)}, {oc, m1m3, dc(0)}},
		{{oc, m1m2, dc(1)}},
		{{oc, m1m3, m3m4, dc(2)}, {oc, m1m2, m2m4, dc(2)}, {oc, m1m2, m2m3, m3m4, dc(2)}},
	}
	return dm
}
