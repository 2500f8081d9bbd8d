package sltm

import (
	"math"

	"github.com/go-logr/logr"
)

const (
	// DEFAULT_NODE_MODEL_TOLERANCE is relative tolerance of node model flow conservation check
	DEFAULT_NODE_MODEL_TOLERANCE = 1e-6
)

// NodeModelAdapter solves node models for every node which needs it within loading pass
// and translates results into acceptance factors of the pass context.
type NodeModelAdapter struct {
	net       *Network
	diagrams  *FundamentalDiagramComponent
	logger    logr.Logger
	tolerance float64

	// entryIdx and exitIdx are positions of movement's links within incoming/outcoming links of its node
	entryIdx []int
	exitIdx  []int

	results []*NodeModelResult
}

func NewNodeModelAdapter(net *Network, diagrams *FundamentalDiagramComponent, logger logr.Logger) *NodeModelAdapter {
	adapter := &NodeModelAdapter{
		net:       net,
		diagrams:  diagrams,
		logger:    logger,
		tolerance: DEFAULT_NODE_MODEL_TOLERANCE,
		entryIdx:  make([]int, len(net.movements)),
		exitIdx:   make([]int, len(net.movements)),
		results:   make([]*NodeModelResult, len(net.nodes)),
	}
	for _, node := range net.nodes {
		entries := make(map[LinkID]int, len(node.incomingLinks))
		for i, linkID := range node.incomingLinks {
			entries[linkID] = i
		}
		exits := make(map[LinkID]int, len(node.outcomingLinks))
		for j, linkID := range node.outcomingLinks {
			exits[linkID] = j
		}
		for _, mvmtID := range node.movements {
			mvmt := net.movements[mvmtID]
			adapter.entryIdx[mvmtID] = entries[mvmt.IncomingLinkID]
			adapter.exitIdx[mvmtID] = exits[mvmt.OutcomingLinkID]
		}
	}
	return adapter
}

// Result returns the latest node model result of the node. Nil means node has not been solved in the latest pass.
func (adapter *NodeModelAdapter) Result(node NodeID) *NodeModelResult {
	if node < 0 || int(node) >= len(adapter.results) {
		return nil
	}
	return adapter.results[node]
}

// Solve solves node model of every tracked node using turn sending flows of the pass context
// and writes acceptance factors back. Entries of untracked nodes are considered unconstrained.
// Returns number of nodes solved with turn based node model.
func (adapter *NodeModelAdapter) Solve(data *FlowUpdateData) int {
	solved := 0
	for _, node := range adapter.net.nodes {
		var result *NodeModelResult
		switch {
		case node.isCentroid:
			sending := make([]float64, len(node.incomingLinks))
			for i, linkID := range node.incomingLinks {
				sending[i] = data.sendingFlows[linkID]
			}
			result = newCentroidNodeModelResult(node, sending)
		case data.isTracked(node.ID):
			result = adapter.solveTurnBased(node, data)
			solved++
		default:
			adapter.results[node.ID] = nil
			for _, linkID := range node.incomingLinks {
				data.acceptanceFactors[linkID] = 1.0
			}
			continue
		}
		adapter.results[node.ID] = result
		adapter.apply(result, data)
	}
	return solved
}

func (adapter *NodeModelAdapter) solveTurnBased(node *Node, data *FlowUpdateData) *NodeModelResult {
	input := NodeModelInput{
		TurnSendingFlows:   make([][]float64, len(node.incomingLinks)),
		EntryCapacities:    make([]float64, len(node.incomingLinks)),
		ExitReceivingFlows: make([]float64, len(node.outcomingLinks)),
	}
	for i, linkID := range node.incomingLinks {
		input.TurnSendingFlows[i] = make([]float64, len(node.outcomingLinks))
		input.EntryCapacities[i] = adapter.diagrams.LinkCapacity(adapter.net.links[linkID])
	}
	// point queue: receiving flow of exit is its capacity
	for j, linkID := range node.outcomingLinks {
		input.ExitReceivingFlows[j] = adapter.diagrams.LinkCapacity(adapter.net.links[linkID])
	}
	for _, mvmtID := range node.movements {
		input.TurnSendingFlows[adapter.entryIdx[mvmtID]][adapter.exitIdx[mvmtID]] = data.turnSendingFlows[mvmtID]
	}
	sending := make([]float64, len(node.incomingLinks))
	for i := range input.TurnSendingFlows {
		for _, flow := range input.TurnSendingFlows[i] {
			sending[i] += flow
		}
	}
	alphas, accepted := SolveTampere(input)
	return &NodeModelResult{
		Kind:              NODE_MODEL_RESULT_TURN_BASED,
		NodeID:            node.ID,
		EntryLinks:        node.incomingLinks,
		ExitLinks:         node.outcomingLinks,
		SendingFlows:      sending,
		AcceptanceFactors: alphas,
		TurnSendingFlows:  input.TurnSendingFlows,
		AcceptedTurnFlows: accepted,
	}
}

// apply writes acceptance factors of the result into pass context and checks flow conservation
func (adapter *NodeModelAdapter) apply(result *NodeModelResult, data *FlowUpdateData) {
	switch result.Kind {
	case NODE_MODEL_RESULT_CENTROID:
		for _, linkID := range result.EntryLinks {
			data.acceptanceFactors[linkID] = 1.0
		}
	case NODE_MODEL_RESULT_TURN_BASED:
		for i, linkID := range result.EntryLinks {
			data.acceptanceFactors[linkID] = result.AcceptanceFactors[i]
		}
	default:
		panic("Should not happen!")
	}
	expected := result.TotalAcceptedOutflow()
	actual := result.TotalAcceptedTurnFlow()
	if math.Abs(expected-actual) > adapter.tolerance*math.Max(1.0, expected) {
		recordConservationViolation("node_model")
		adapter.logger.Error(ErrFlowConservation, "Accepted turn flows do not match accepted outflow of node", "node", result.NodeID, "kind", result.Kind.String(), "expected", expected, "actual", actual)
	}
}
