package sltm

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

type MovementID int

// Movement is a turn between entry link segment and exit link segment at a node.
// Its ID is stable and used to index turn-level flow arrays.
type Movement struct {
	geom orb.LineString

	ID              MovementID
	NodeID          NodeID
	IncomingLinkID  LinkID
	OutcomingLinkID LinkID

	approach     Approach
	movementType MovementType
}

func (mvmt *Movement) MovementType() MovementType {
	return mvmt.movementType
}

// Approach returns heading of the entry link segment towards the node
func (mvmt *Movement) Approach() Approach {
	return mvmt.approach
}

// CompositeType returns approach and turn code, e.g. "EBL" for left turn of eastbound traffic
func (mvmt *Movement) CompositeType() string {
	if mvmt.approach == APPROACH_UNDEFINED || mvmt.movementType == MOVEMENT_UNDEFINED {
		return "undefined"
	}
	return mvmt.approach.String() + mvmt.movementType.code()
}

func (mvmt *Movement) Geom() orb.LineString {
	return mvmt.geom
}

type turnKey struct {
	entry LinkID
	exit  LinkID
}

// classifyMovement returns approach of the entry line and turn kind between entry and exit lines.
// Both lines are expected in planar coordinates.
//
// Note: panics if number of points in any line is less than 2
func classifyMovement(entry orb.LineString, exit orb.LineString) (Approach, MovementType) {
	entryStart, entryEnd := entry[0], entry[len(entry)-1]
	exitEnd := exit[len(exit)-1]
	heading := math.Atan2(entryEnd.Y()-entryStart.Y(), entryEnd.X()-entryStart.X())
	turning := math.Atan2(exitEnd.Y()-entryEnd.Y(), exitEnd.X()-entryEnd.X())
	return approachOf(heading), turnOf(normalizeAngle(turning - heading))
}

// normalizeAngle wraps angle into [-pi, pi]
func normalizeAngle(angle float64) float64 {
	if angle < -math.Pi {
		angle += 2 * math.Pi
	}
	if angle > math.Pi {
		angle -= 2 * math.Pi
	}
	return angle
}

func approachOf(heading float64) Approach {
	switch {
	case -0.75*math.Pi <= heading && heading < -0.25*math.Pi:
		return APPROACH_SB
	case -0.25*math.Pi <= heading && heading < 0.25*math.Pi:
		return APPROACH_EB
	case 0.25*math.Pi <= heading && heading < 0.75*math.Pi:
		return APPROACH_NB
	default:
		return APPROACH_WB
	}
}

func turnOf(angle float64) MovementType {
	switch {
	case -0.25*math.Pi <= angle && angle <= 0.25*math.Pi:
		return MOVEMENT_THRU
	case angle < -0.25*math.Pi:
		return MOVEMENT_RIGHT
	case angle <= 0.75*math.Pi:
		return MOVEMENT_LEFT
	default:
		return MOVEMENT_U_TURN
	}
}

// movementGeomBetweenLines returns movement geometry for given lines pair.
// Degenerated lines produce straight connection between end of first line and start of second one.
func movementGeomBetweenLines(l1 orb.LineString, l2 orb.LineString) orb.LineString {
	length1 := geo.Length(l1)
	length2 := geo.Length(l2)
	if length1 == 0 || length2 == 0 {
		return orb.LineString{l1[len(l1)-1], l2[0]}
	}
	point1, _ := geo.PointAtDistanceAlongLine(l1, length1-indentation(length1))
	point2, _ := geo.PointAtDistanceAlongLine(l2, indentation(length2))
	return orb.LineString{point1, point2}
}

const (
	// indentationThreshold is distance (meters) from the node where movement geometry starts and ends
	indentationThreshold = 8.0
)

func indentation(length float64) float64 {
	if length <= indentationThreshold {
		return length / 2.0
	}
	return indentationThreshold
}

type MovementType uint16

const (
	MOVEMENT_THRU = MovementType(iota + 1)
	MOVEMENT_RIGHT
	MOVEMENT_LEFT
	MOVEMENT_U_TURN

	MOVEMENT_UNDEFINED = MovementType(0)
)

func (iotaIdx MovementType) String() string {
	return [...]string{"undefined", "thru", "right", "left", "uturn"}[iotaIdx]
}

func (iotaIdx MovementType) code() string {
	return [...]string{"", "T", "R", "L", "U"}[iotaIdx]
}

// Approach is heading of traffic entering a node
type Approach uint16

const (
	APPROACH_SB = Approach(iota + 1)
	APPROACH_EB
	APPROACH_NB
	APPROACH_WB

	APPROACH_UNDEFINED = Approach(0)
)

func (iotaIdx Approach) String() string {
	return [...]string{"undefined", "SB", "EB", "NB", "WB"}[iotaIdx]
}
