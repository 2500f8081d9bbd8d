package sltm

import (
	"sort"

	"github.com/pkg/errors"
)

// Demand is origin-destination matrix in pcu/h between centroids
type Demand struct {
	matrix map[NodeID]map[NodeID]float64
}

func NewDemand() *Demand {
	return &Demand{
		matrix: make(map[NodeID]map[NodeID]float64),
	}
}

// Set sets demand between origin and destination. Zero value removes OD pair.
func (demand *Demand) Set(origin, destination NodeID, pcuHour float64) error {
	if pcuHour < 0 {
		return errors.Wrapf(ErrNegativeFlow, "Demand %d -> %d: %f", origin, destination, pcuHour)
	}
	if origin == destination {
		return errors.Wrapf(ErrInvalidConfigValue, "Demand within the same centroid %d", origin)
	}
	if pcuHour == 0 {
		if destinations, ok := demand.matrix[origin]; ok {
			delete(destinations, destination)
			if len(destinations) == 0 {
				delete(demand.matrix, origin)
			}
		}
		return nil
	}
	if _, ok := demand.matrix[origin]; !ok {
		demand.matrix[origin] = make(map[NodeID]float64)
	}
	demand.matrix[origin][destination] = pcuHour
	return nil
}

// Add increases demand between origin and destination
func (demand *Demand) Add(origin, destination NodeID, pcuHour float64) error {
	return demand.Set(origin, destination, demand.Get(origin, destination)+pcuHour)
}

func (demand *Demand) Get(origin, destination NodeID) float64 {
	return demand.matrix[origin][destination]
}

// Origins returns origins with non-zero demand in ascending order
func (demand *Demand) Origins() []NodeID {
	origins := make([]NodeID, 0, len(demand.matrix))
	for origin := range demand.matrix {
		origins = append(origins, origin)
	}
	sort.Slice(origins, func(i, j int) bool { return origins[i] < origins[j] })
	return origins
}

// Destinations returns destinations reachable from the origin with non-zero demand in ascending order
func (demand *Demand) Destinations(origin NodeID) []NodeID {
	destinations := make([]NodeID, 0, len(demand.matrix[origin]))
	for destination := range demand.matrix[origin] {
		destinations = append(destinations, destination)
	}
	sort.Slice(destinations, func(i, j int) bool { return destinations[i] < destinations[j] })
	return destinations
}

// Total returns sum of demand over every OD pair
func (demand *Demand) Total() float64 {
	total := 0.0
	for _, origin := range demand.Origins() {
		for _, destination := range demand.Destinations(origin) {
			total += demand.matrix[origin][destination]
		}
	}
	return total
}

// validate checks that every origin and destination is centroid of the network
func (demand *Demand) validate(net *Network) error {
	for origin, destinations := range demand.matrix {
		if node := net.Node(origin); node == nil || !node.isCentroid {
			return errors.Wrapf(ErrNotCentroid, "Origin %d", origin)
		}
		for destination := range destinations {
			if node := net.Node(destination); node == nil || !node.isCentroid {
				return errors.Wrapf(ErrNotCentroid, "Destination %d", destination)
			}
		}
	}
	return nil
}
