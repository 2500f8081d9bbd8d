package sltm

import (
	"math"
)

// GapResult is relative duality gap with its components
type GapResult struct {
	// Experienced is total travel time experienced by the current solution (pcu*h)
	Experienced float64
	// Shortest is total travel time if every OD pair used its shortest path (pcu*h)
	Shortest float64
}

// Relative returns (experienced - shortest) / shortest
func (gap GapResult) Relative() float64 {
	if gap.Shortest <= 0 {
		if gap.Experienced <= 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Max(0, (gap.Experienced-gap.Shortest)/gap.Shortest)
}

// bushExperiencedCost returns total travel time of the bush flow towards destination
func bushExperiencedCost(bush *Bush, destination NodeID, costs []float64) float64 {
	total := 0.0
	for linkID, labelled := range bush.flows {
		for _, dests := range labelled {
			total += dests[destination] * costs[linkID]
		}
	}
	return total
}

// pathsExperiencedCost returns total travel time of the OD pair flow spread over its path set
func pathsExperiencedCost(sets *OdPathSets, origin, destination NodeID, costs []float64) float64 {
	total := 0.0
	for _, choice := range sets.Paths(origin, destination) {
		total += sets.PathFlow(origin, destination, choice) * choice.Path.Cost(costs)
	}
	return total
}
