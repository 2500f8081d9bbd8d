package sltm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
)

const (
	// CONNECTOR_LENGTH_KM is length of connectors created by AddCentroid
	CONNECTOR_LENGTH_KM = 0.01
)

// Network is single layer, single mode road network: nodes, directed link segments and movements (turns).
//
// Network is built via AddNode / AddLink / AddCentroid and then frozen by Prepare.
// Identifiers are dense indices starting from zero, so they can be used to index flat arrays.
type Network struct {
	links         []*LinkSegment
	nodes         []*Node
	movements     []*Movement
	movementIndex map[turnKey]MovementID
	linkTypeProps map[LinkType]LinkTypeProperties
	osmNodes      map[osm.NodeID]NodeID
	prepared      bool
}

type NetworkOption func(*Network)

// WithLinkTypeProperties overrides default physical parameters of given link type
func WithLinkTypeProperties(linkType LinkType, props LinkTypeProperties) NetworkOption {
	return func(net *Network) {
		net.linkTypeProps[linkType] = props
	}
}

func NewNetwork(options ...NetworkOption) *Network {
	net := &Network{
		links:         make([]*LinkSegment, 0),
		nodes:         make([]*Node, 0),
		movements:     make([]*Movement, 0),
		movementIndex: make(map[turnKey]MovementID),
		linkTypeProps: make(map[LinkType]LinkTypeProperties),
		osmNodes:      make(map[osm.NodeID]NodeID),
	}
	for _, lt := range linkTypes() {
		net.linkTypeProps[lt] = defaultLinkTypeProperties(lt)
	}
	for _, option := range options {
		option(net)
	}
	return net
}

func (net *Network) String() string {
	types := make([]string, 0, len(net.linkTypeProps))
	for _, lt := range net.LinkTypes() {
		types = append(types, fmt.Sprintf("\t\t%s: %s", lt, net.linkTypeProps[lt]))
	}
	return fmt.Sprintf(`
Network:
	nodes: %d
	links: %d
	movements: %d
	prepared: %t
	link types:
%s
	`,
		len(net.nodes),
		len(net.links),
		len(net.movements),
		net.prepared,
		strings.Join(types, "\n"),
	)
}

// AddNode adds new node and returns its identifier
func (net *Network) AddNode(geom orb.Point, isCentroid bool) (NodeID, error) {
	if net.prepared {
		return -1, ErrNetworkPrepared
	}
	id := NodeID(len(net.nodes))
	net.nodes = append(net.nodes, newNode(id, geom, isCentroid))
	return id, nil
}

func (net *Network) addOSMNode(osmID osm.NodeID, geom orb.Point) (NodeID, error) {
	if id, ok := net.osmNodes[osmID]; ok {
		return id, nil
	}
	id, err := net.AddNode(geom, false)
	if err != nil {
		return -1, err
	}
	net.nodes[id].osmNodeID = osmID
	net.osmNodes[osmID] = id
	return id, nil
}

// AddLink adds directed link segment between two existing nodes. Non-positive number of lanes means default lanes of the link type.
func (net *Network) AddLink(source, target NodeID, linkType LinkType, lanes int, options ...LinkOption) (LinkID, error) {
	if net.prepared {
		return -1, ErrNetworkPrepared
	}
	sourceNode, err := net.node(source)
	if err != nil {
		return -1, errors.Wrap(err, "Can't add link: source")
	}
	targetNode, err := net.node(target)
	if err != nil {
		return -1, errors.Wrap(err, "Can't add link: target")
	}
	props, ok := net.linkTypeProps[linkType]
	if !ok {
		return -1, errors.Wrapf(ErrUnknownLinkType, "Can't add link of type %d", linkType)
	}
	if lanes <= 0 {
		lanes = props.DefaultLanes
	}
	if lanes <= 0 {
		return -1, errors.Wrapf(ErrInvalidLanes, "Can't add link of type '%s'", linkType)
	}
	link := &LinkSegment{
		ID:           LinkID(len(net.links)),
		lanes:        lanes,
		maxSpeed:     -1,
		osmWayID:     -1,
		linkType:     linkType,
		sourceNodeID: source,
		targetNodeID: target,
	}
	for _, option := range options {
		option(link)
	}
	link.prepareGeometry(sourceNode, targetNode)
	net.links = append(net.links, link)
	sourceNode.outcomingLinks = append(sourceNode.outcomingLinks, link.ID)
	targetNode.incomingLinks = append(targetNode.incomingLinks, link.ID)
	return link.ID, nil
}

// AddCentroid creates centroid at the location of given node and connects it with the node in both directions
func (net *Network) AddCentroid(attachTo NodeID) (NodeID, error) {
	node, err := net.node(attachTo)
	if err != nil {
		return -1, errors.Wrap(err, "Can't add centroid")
	}
	if node.isCentroid {
		return -1, errors.Wrapf(ErrInvalidConfigValue, "Can't attach centroid to another centroid %d", attachTo)
	}
	centroid, err := net.AddNode(node.geom, true)
	if err != nil {
		return -1, err
	}
	if _, err = net.AddLink(centroid, attachTo, LINK_CONNECTOR, -1, WithLengthKm(CONNECTOR_LENGTH_KM)); err != nil {
		return -1, errors.Wrap(err, "Can't add origin connector")
	}
	if _, err = net.AddLink(attachTo, centroid, LINK_CONNECTOR, -1, WithLengthKm(CONNECTOR_LENGTH_KM)); err != nil {
		return -1, errors.Wrap(err, "Can't add destination connector")
	}
	return centroid, nil
}

// Prepare validates network and generates movements. Network can't be modified afterwards.
func (net *Network) Prepare() error {
	if net.prepared {
		return nil
	}
	if len(net.links) == 0 {
		return ErrNetworkEmpty
	}
	mvmtID := MovementID(0)
	for _, node := range net.nodes {
		mvmtList := node.genMovement(&mvmtID, net.links)
		for _, mvmt := range mvmtList {
			net.movements = append(net.movements, mvmt)
			net.movementIndex[turnKey{entry: mvmt.IncomingLinkID, exit: mvmt.OutcomingLinkID}] = mvmt.ID
		}
	}
	net.prepared = true
	return nil
}

func (net *Network) IsPrepared() bool {
	return net.prepared
}

func (net *Network) node(id NodeID) (*Node, error) {
	if id < 0 || int(id) >= len(net.nodes) {
		return nil, errors.Wrapf(ErrNodeNotFound, "Node %d", id)
	}
	return net.nodes[id], nil
}

// Node returns node by its identifier or nil if there is no such node
func (net *Network) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(net.nodes) {
		return nil
	}
	return net.nodes[id]
}

// Link returns link segment by its identifier or nil if there is no such link
func (net *Network) Link(id LinkID) *LinkSegment {
	if id < 0 || int(id) >= len(net.links) {
		return nil
	}
	return net.links[id]
}

// Movement returns movement by its identifier or nil if there is no such movement
func (net *Network) Movement(id MovementID) *Movement {
	if id < 0 || int(id) >= len(net.movements) {
		return nil
	}
	return net.movements[id]
}

// MovementBetween returns identifier of the turn from entry link segment to exit link segment
func (net *Network) MovementBetween(entry, exit LinkID) (MovementID, bool) {
	id, ok := net.movementIndex[turnKey{entry: entry, exit: exit}]
	return id, ok
}

// NodeByOSM returns node created for given OSM node
func (net *Network) NodeByOSM(osmID osm.NodeID) (NodeID, bool) {
	id, ok := net.osmNodes[osmID]
	return id, ok
}

func (net *Network) NodesNum() int {
	return len(net.nodes)
}

func (net *Network) LinksNum() int {
	return len(net.links)
}

func (net *Network) MovementsNum() int {
	return len(net.movements)
}

// LinkTypeProperties returns physical parameters of the link type
func (net *Network) LinkTypeProperties(linkType LinkType) (LinkTypeProperties, bool) {
	props, ok := net.linkTypeProps[linkType]
	return props, ok
}

// LinkTypes returns every link type known to the network in a stable order
func (net *Network) LinkTypes() []LinkType {
	types := make([]LinkType, 0, len(net.linkTypeProps))
	for lt := range net.linkTypeProps {
		types = append(types, lt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Centroids returns identifiers of every centroid
func (net *Network) Centroids() []NodeID {
	centroids := []NodeID{}
	for _, node := range net.nodes {
		if node.isCentroid {
			centroids = append(centroids, node.ID)
		}
	}
	return centroids
}
