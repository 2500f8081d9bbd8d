package sltm

import (
	"math"
)

type NodeModelResultKind uint16

const (
	// NODE_MODEL_RESULT_CENTROID is produced for zone vertices: everything is accepted, no turn matrix
	NODE_MODEL_RESULT_CENTROID = NodeModelResultKind(iota + 1)
	// NODE_MODEL_RESULT_TURN_BASED is produced for regular intersections solved by node model
	NODE_MODEL_RESULT_TURN_BASED
)

func (iotaIdx NodeModelResultKind) String() string {
	return [...]string{"centroid", "turn_based"}[iotaIdx-1]
}

// NodeModelResult is tagged result of the node model for a single node.
//
// Consumers switch over Kind. TurnSendingFlows and AcceptedTurnFlows are filled for NODE_MODEL_RESULT_TURN_BASED only
// and indexed as [entry index][exit index] following node's entry/exit order.
type NodeModelResult struct {
	Kind              NodeModelResultKind
	NodeID            NodeID
	EntryLinks        []LinkID
	ExitLinks         []LinkID
	SendingFlows      []float64
	AcceptanceFactors []float64
	TurnSendingFlows  [][]float64
	AcceptedTurnFlows [][]float64
}

func newCentroidNodeModelResult(node *Node, sendingFlows []float64) *NodeModelResult {
	alphas := make([]float64, len(node.incomingLinks))
	for i := range alphas {
		alphas[i] = 1.0
	}
	return &NodeModelResult{
		Kind:              NODE_MODEL_RESULT_CENTROID,
		NodeID:            node.ID,
		EntryLinks:        node.incomingLinks,
		ExitLinks:         node.outcomingLinks,
		SendingFlows:      sendingFlows,
		AcceptanceFactors: alphas,
	}
}

// AcceptedOutflow returns total flow accepted from entry with given index
func (res *NodeModelResult) AcceptedOutflow(entryIdx int) float64 {
	return res.SendingFlows[entryIdx] * res.AcceptanceFactors[entryIdx]
}

// TotalAcceptedOutflow returns sum of sending flows scaled by acceptance factors over all entries
func (res *NodeModelResult) TotalAcceptedOutflow() float64 {
	total := 0.0
	for i := range res.SendingFlows {
		total += res.AcceptedOutflow(i)
	}
	return total
}

// TotalAcceptedTurnFlow returns flow leaving the node over all exits.
// Every sending flow of centroid result is accepted, so it equals to the total sending flow.
func (res *NodeModelResult) TotalAcceptedTurnFlow() float64 {
	total := 0.0
	switch res.Kind {
	case NODE_MODEL_RESULT_CENTROID:
		for _, sending := range res.SendingFlows {
			total += sending
		}
	case NODE_MODEL_RESULT_TURN_BASED:
		for i := range res.AcceptedTurnFlows {
			for _, flow := range res.AcceptedTurnFlows[i] {
				total += flow
			}
		}
	default:
		panic("Should not happen!")
	}
	return total
}

// NodeModelInput is data needed by capacity constrained node model
type NodeModelInput struct {
	// TurnSendingFlows is indexed as [entry][exit], pcu/h
	TurnSendingFlows [][]float64
	// EntryCapacities is capacity of every entry, pcu/h. Infinite value means unconstrained.
	EntryCapacities []float64
	// ExitReceivingFlows is supply of every exit, pcu/h. Infinite value means unconstrained.
	ExitReceivingFlows []float64
}

// SolveTampere solves general unsignalised node model with capacity proportional priorities (Tampère et al., 2011).
// Entry sending flows are capped by entry capacities first. Returns acceptance factor per entry and accepted turn flows.
func SolveTampere(input NodeModelInput) ([]float64, [][]float64) {
	nEntries := len(input.TurnSendingFlows)
	nExits := len(input.ExitReceivingFlows)

	sending := make([]float64, nEntries)
	capped := make([]float64, nEntries)
	priority := make([]float64, nEntries)
	accepted := make([][]float64, nEntries)
	active := make([]bool, nEntries)
	for i := 0; i < nEntries; i++ {
		accepted[i] = make([]float64, nExits)
		for j := 0; j < nExits; j++ {
			sending[i] += input.TurnSendingFlows[i][j]
		}
		capped[i] = math.Min(sending[i], input.EntryCapacities[i])
		priority[i] = input.EntryCapacities[i]
		if math.IsInf(priority[i], 1) {
			priority[i] = capped[i]
		}
		active[i] = capped[i] > 0
	}

	// turning fraction of entry i towards exit j
	fraction := func(i, j int) float64 {
		if sending[i] <= 0 {
			return 0
		}
		return input.TurnSendingFlows[i][j] / sending[i]
	}

	remainingSupply := make([]float64, nExits)
	exitActive := make([]bool, nExits)
	copy(remainingSupply, input.ExitReceivingFlows)
	for j := 0; j < nExits; j++ {
		exitActive[j] = true
	}

	acceptAll := func(i int, scale float64) {
		for j := 0; j < nExits; j++ {
			flow := scale * fraction(i, j)
			accepted[i][j] = flow
			remainingSupply[j] = math.Max(0, remainingSupply[j]-flow)
		}
		active[i] = false
	}

	for {
		anyActive := false
		for i := 0; i < nEntries; i++ {
			if active[i] {
				anyActive = true
				break
			}
		}
		if !anyActive {
			break
		}

		// most restrictive exit
		mostRestrictive := -1
		smallestShare := math.Inf(1)
		for j := 0; j < nExits; j++ {
			if !exitActive[j] {
				continue
			}
			orientedPriority := 0.0
			for i := 0; i < nEntries; i++ {
				if active[i] {
					orientedPriority += priority[i] * fraction(i, j)
				}
			}
			if orientedPriority <= 0 {
				continue
			}
			share := remainingSupply[j] / orientedPriority
			if share < smallestShare {
				smallestShare = share
				mostRestrictive = j
			}
		}

		// no exit restricts anything: all remaining entries are demand constrained
		if mostRestrictive < 0 {
			for i := 0; i < nEntries; i++ {
				if active[i] {
					acceptAll(i, capped[i])
				}
			}
			break
		}

		demandConstrained := false
		for i := 0; i < nEntries; i++ {
			if !active[i] || fraction(i, mostRestrictive) <= 0 {
				continue
			}
			if capped[i] <= smallestShare*priority[i]*(1+1e-12) {
				acceptAll(i, capped[i])
				demandConstrained = true
			}
		}
		if demandConstrained {
			continue
		}

		for i := 0; i < nEntries; i++ {
			if !active[i] || fraction(i, mostRestrictive) <= 0 {
				continue
			}
			acceptAll(i, smallestShare*priority[i])
		}
		exitActive[mostRestrictive] = false
	}

	alphas := make([]float64, nEntries)
	for i := 0; i < nEntries; i++ {
		if sending[i] <= 0 {
			alphas[i] = 1.0
			continue
		}
		total := 0.0
		for j := 0; j < nExits; j++ {
			total += accepted[i][j]
		}
		alphas[i] = math.Min(1.0, total/sending[i])
	}
	return alphas, accepted
}
