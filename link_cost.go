package sltm

import (
	"math"
)

const (
	// MIN_SPEED_KM_HOUR bounds travel time on jammed links
	MIN_SPEED_KM_HOUR = 1.0
)

// LinkCostComputer derives steady state travel times (hours) of links from fundamental diagrams
type LinkCostComputer struct {
	net      *Network
	diagrams *FundamentalDiagramComponent
}

func NewLinkCostComputer(net *Network, diagrams *FundamentalDiagramComponent) *LinkCostComputer {
	return &LinkCostComputer{
		net:      net,
		diagrams: diagrams,
	}
}

// FreeFlowCosts returns travel time of every link at free speed
func (computer *LinkCostComputer) FreeFlowCosts() []float64 {
	costs := make([]float64, len(computer.net.links))
	for i, link := range computer.net.links {
		costs[i] = link.lengthKm / computer.freeSpeed(link)
	}
	return costs
}

// Costs returns travel time of every link given loaded sending flows and acceptance factors.
// Links restricted by their downstream node are on congested branch, others on free-flow branch.
func (computer *LinkCostComputer) Costs(sendingFlows, acceptanceFactors []float64) []float64 {
	costs := make([]float64, len(computer.net.links))
	for i, link := range computer.net.links {
		costs[i] = computer.LinkCost(link, sendingFlows[i], acceptanceFactors[i])
	}
	return costs
}

// LinkCost returns travel time (hours) of single link
func (computer *LinkCostComputer) LinkCost(link *LinkSegment, sendingFlow, acceptanceFactor float64) float64 {
	fd, ok := computer.diagrams.Get(link)
	if !ok {
		return link.lengthKm / computer.freeSpeed(link)
	}
	lanes := float64(link.lanes)
	var speed float64
	if acceptanceFactor < 1.0 {
		outflow := math.Min(sendingFlow*acceptanceFactor/lanes, fd.Capacity())
		branch := fd.CongestedBranch()
		speed = branch.SpeedKmHour(branch.DensityPcuKm(outflow))
	} else {
		inflow := math.Min(sendingFlow/lanes, fd.Capacity())
		branch := fd.FreeFlowBranch()
		speed = branch.SpeedKmHour(branch.DensityPcuKm(inflow))
	}
	speed = math.Min(math.Max(speed, MIN_SPEED_KM_HOUR), fd.FreeSpeed())
	return link.lengthKm / speed
}

func (computer *LinkCostComputer) freeSpeed(link *LinkSegment) float64 {
	if fd, ok := computer.diagrams.Get(link); ok {
		return fd.FreeSpeed()
	}
	if link.maxSpeed > 0 {
		return link.maxSpeed
	}
	if props, ok := computer.net.LinkTypeProperties(link.linkType); ok && props.FreeSpeed > 0 {
		return props.FreeSpeed
	}
	return DEFAULT_FREE_SPEED_KM_HOUR
}
