package sltm

import (
	"fmt"
)

type LinkType uint16

const (
	LINK_MOTORWAY = LinkType(iota + 1)
	LINK_TRUNK
	LINK_PRIMARY
	LINK_SECONDARY
	LINK_TERTIARY
	LINK_RESIDENTIAL
	LINK_LIVING_STREET
	LINK_SERVICE
	LINK_UNCLASSIFIED
	LINK_CONNECTOR

	LINK_UNDEFINED = LinkType(0)
)

func (iotaIdx LinkType) String() string {
	return [...]string{"undefined", "motorway", "trunk", "primary", "secondary", "tertiary", "residential", "living_street", "service", "unclassified", "connector"}[iotaIdx]
}

// LinkTypeProperties are physical parameters shared by every link segment of the same type.
// Capacity and density are expressed per lane.
type LinkTypeProperties struct {
	FreeSpeed         float64 // km/h
	CapacityPerLane   float64 // pcu/h/lane
	MaxDensityPerLane float64 // pcu/km/lane
	DefaultLanes      int
}

func (props LinkTypeProperties) String() string {
	return fmt.Sprintf("free_speed: %.2f km/h, capacity: %.2f pcu/h/lane, max_density: %.2f pcu/km/lane, lanes: %d", props.FreeSpeed, props.CapacityPerLane, props.MaxDensityPerLane, props.DefaultLanes)
}

const (
	// DEFAULT_MAX_DENSITY_PCU_KM_LANE is jam density used by Newell's simplified kinematic wave defaults
	DEFAULT_MAX_DENSITY_PCU_KM_LANE = 180.0
	// DEFAULT_CAPACITY_PCU_HOUR_LANE is used when link type has no capacity defined
	DEFAULT_CAPACITY_PCU_HOUR_LANE = 1800.0
	// DEFAULT_FREE_SPEED_KM_HOUR is used when link type has no speed defined
	DEFAULT_FREE_SPEED_KM_HOUR = 50.0
)

var (
	onewayDefaultByLink = map[LinkType]bool{
		LINK_MOTORWAY:      false,
		LINK_TRUNK:         false,
		LINK_PRIMARY:       false,
		LINK_SECONDARY:     false,
		LINK_TERTIARY:      false,
		LINK_RESIDENTIAL:   false,
		LINK_LIVING_STREET: false,
		LINK_SERVICE:       false,
		LINK_UNCLASSIFIED:  false,
		LINK_CONNECTOR:     false,
	}
	defaultLanesByLinkType = map[LinkType]int{
		LINK_MOTORWAY:      4,
		LINK_TRUNK:         3,
		LINK_PRIMARY:       3,
		LINK_SECONDARY:     2,
		LINK_TERTIARY:      2,
		LINK_RESIDENTIAL:   1,
		LINK_LIVING_STREET: 1,
		LINK_SERVICE:       1,
		LINK_UNCLASSIFIED:  1,
		LINK_CONNECTOR:     2,
	}
	defaultSpeedByLinkType = map[LinkType]float64{
		LINK_MOTORWAY:      120,
		LINK_TRUNK:         100,
		LINK_PRIMARY:       80,
		LINK_SECONDARY:     60,
		LINK_TERTIARY:      40,
		LINK_RESIDENTIAL:   30,
		LINK_LIVING_STREET: 20,
		LINK_SERVICE:       30,
		LINK_UNCLASSIFIED:  30,
		LINK_CONNECTOR:     120,
	}
	defaultCapacityByLinkType = map[LinkType]float64{
		LINK_MOTORWAY:      2300,
		LINK_TRUNK:         2200,
		LINK_PRIMARY:       1800,
		LINK_SECONDARY:     1600,
		LINK_TERTIARY:      1200,
		LINK_RESIDENTIAL:   1000,
		LINK_LIVING_STREET: 800,
		LINK_SERVICE:       800,
		LINK_UNCLASSIFIED:  800,
		LINK_CONNECTOR:     9999,
	}
)

// defaultLinkTypeProperties returns physical parameters for given link type based on default tables
func defaultLinkTypeProperties(linkType LinkType) LinkTypeProperties {
	props := LinkTypeProperties{
		FreeSpeed:         DEFAULT_FREE_SPEED_KM_HOUR,
		CapacityPerLane:   DEFAULT_CAPACITY_PCU_HOUR_LANE,
		MaxDensityPerLane: DEFAULT_MAX_DENSITY_PCU_KM_LANE,
		DefaultLanes:      1,
	}
	if speed, ok := defaultSpeedByLinkType[linkType]; ok {
		props.FreeSpeed = speed
	}
	if capacity, ok := defaultCapacityByLinkType[linkType]; ok {
		props.CapacityPerLane = capacity
	}
	if lanes, ok := defaultLanesByLinkType[linkType]; ok {
		props.DefaultLanes = lanes
	}
	return props
}

// linkTypes returns every known link type in a stable order
func linkTypes() []LinkType {
	types := make([]LinkType, 0, int(LINK_CONNECTOR))
	for lt := LINK_MOTORWAY; lt <= LINK_CONNECTOR; lt++ {
		types = append(types, lt)
	}
	return types
}
