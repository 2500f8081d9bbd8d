package sltm

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"
)

/* Links stuff */

type LinkID int

// LinkSegment is directed edge segment of the network. Its ID is a stable index within the network.
type LinkSegment struct {
	geom             orb.LineString
	lengthKm         float64
	maxSpeed         float64
	lanes            int
	ID               LinkID
	osmWayID         osm.WayID
	linkType         LinkType
	sourceNodeID     NodeID
	targetNodeID     NodeID
	wasBidirectional bool
}

type LinkOption func(*LinkSegment)

// WithLengthKm sets length explicitly. Otherwise it is evaluated from geometry.
func WithLengthKm(lengthKm float64) LinkOption {
	return func(link *LinkSegment) {
		link.lengthKm = lengthKm
	}
}

// WithMaxSpeed sets physical speed limit (km/h) of the link segment
func WithMaxSpeed(maxSpeed float64) LinkOption {
	return func(link *LinkSegment) {
		link.maxSpeed = maxSpeed
	}
}

// WithGeometry sets geometry of the link segment. It should start at source node and end at target node.
func WithGeometry(geom orb.LineString) LinkOption {
	return func(link *LinkSegment) {
		link.geom = geom.Clone()
	}
}

func withOSMWay(wayID osm.WayID, wasBidirectional bool) LinkOption {
	return func(link *LinkSegment) {
		link.osmWayID = wayID
		link.wasBidirectional = wasBidirectional
	}
}

func (link *LinkSegment) Source() NodeID {
	return link.sourceNodeID
}

func (link *LinkSegment) Target() NodeID {
	return link.targetNodeID
}

func (link *LinkSegment) LinkType() LinkType {
	return link.linkType
}

func (link *LinkSegment) Lanes() int {
	return link.lanes
}

func (link *LinkSegment) LengthKm() float64 {
	return link.lengthKm
}

// MaxSpeed returns physical speed limit in km/h or -1 if it is not known
func (link *LinkSegment) MaxSpeed() float64 {
	return link.maxSpeed
}

func (link *LinkSegment) Geom() orb.LineString {
	return link.geom
}

func (link *LinkSegment) OSMWayID() osm.WayID {
	return link.osmWayID
}

// IsConnector returns true for links connecting centroid to the physical network
func (link *LinkSegment) IsConnector() bool {
	return link.linkType == LINK_CONNECTOR
}

// prepareGeometry makes sure geometry exists and evaluates length if it has not been provided
func (link *LinkSegment) prepareGeometry(source, target *Node) {
	if len(link.geom) < 2 {
		link.geom = orb.LineString{source.geom, target.geom}
	}
	if link.lengthKm <= 0 {
		link.lengthKm = geo.LengthHaversign(link.geom) / 1000.0
	}
}
