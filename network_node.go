package sltm

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

/* Nodes stuff */

type NodeID int

type Node struct {
	incomingLinks  []LinkID
	outcomingLinks []LinkID
	movements      []MovementID
	geom           orb.Point
	ID             NodeID
	osmNodeID      osm.NodeID
	isCentroid     bool
}

func newNode(id NodeID, geom orb.Point, isCentroid bool) *Node {
	return &Node{
		incomingLinks:  make([]LinkID, 0),
		outcomingLinks: make([]LinkID, 0),
		movements:      make([]MovementID, 0),
		geom:           geom,
		ID:             id,
		osmNodeID:      -1,
		isCentroid:     isCentroid,
	}
}

// IsCentroid returns true when node is an origin/destination zone. Centroids never carry through traffic.
func (node *Node) IsCentroid() bool {
	return node.isCentroid
}

// IncomingLinks returns entry link segments in stable order. The slice must not be modified.
func (node *Node) IncomingLinks() []LinkID {
	return node.incomingLinks
}

// OutcomingLinks returns exit link segments in stable order. The slice must not be modified.
func (node *Node) OutcomingLinks() []LinkID {
	return node.outcomingLinks
}

// Movements returns turns available at the node
func (node *Node) Movements() []MovementID {
	return node.movements
}

func (node *Node) Geom() orb.Point {
	return node.geom
}

func (node *Node) OSMNodeID() osm.NodeID {
	return node.osmNodeID
}

// genMovement generates set of movements for given node. Reverse directions (U-turns) are skipped.
func (node *Node) genMovement(movementID *MovementID, links []*LinkSegment) []*Movement {
	movements := []*Movement{}
	if movementID == nil || node.isCentroid {
		return movements
	}
	if len(node.incomingLinks) == 0 || len(node.outcomingLinks) == 0 {
		return movements
	}
	for _, incomingLinkID := range node.incomingLinks {
		incomingLink := links[incomingLinkID]
		for _, outcomingLinkID := range node.outcomingLinks {
			outcomingLink := links[outcomingLinkID]
			if incomingLink.sourceNodeID == outcomingLink.targetNodeID {
				// Ignore all reverse directions
				continue
			}
			mvmt := Movement{
				ID:              *movementID,
				NodeID:          node.ID,
				IncomingLinkID:  incomingLink.ID,
				OutcomingLinkID: outcomingLink.ID,
			}
			mvmt.approach, mvmt.movementType = classifyMovement(lineToEuclidean(incomingLink.geom), lineToEuclidean(outcomingLink.geom))
			mvmt.geom = movementGeomBetweenLines(incomingLink.geom, outcomingLink.geom)
			*movementID++
			movements = append(movements, &mvmt)
		}
	}
	node.movements = make([]MovementID, 0, len(movements))
	for _, mvmt := range movements {
		node.movements = append(node.movements, mvmt.ID)
	}
	return movements
}
