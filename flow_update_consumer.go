package sltm

import (
	"math"

	"github.com/go-logr/logr"
)

// FlowUpdateConsumer propagates flow of its flow containers through the network during single loading pass
// and accumulates results into the pass context.
type FlowUpdateConsumer interface {
	Update(data *FlowUpdateData)
}

// FlowContainers is set of flow containers (bushes or path sets) which can be loaded onto the network
type FlowContainers interface {
	// LinkFlowUpdate returns consumer which maintains link sending flows and outflows
	LinkFlowUpdate(logger logr.Logger) FlowUpdateConsumer
	// TurnFlowUpdate returns consumer which maintains turn sending flows and accepted turn flows
	TurnFlowUpdate(logger logr.Logger) FlowUpdateConsumer
}

// flowTracker decides which quantities are accumulated while container is walked
type flowTracker interface {
	// origin is called for the first link segment of container with flow entering it
	origin(data *FlowUpdateData, link LinkID, flow float64)
	// turn is called for every traversed turn with turn sending flow and accepted turn flow
	turn(data *FlowUpdateData, node NodeID, entry, exit LinkID, sending, accepted float64)
	// final is called for the last link segment which has no outgoing turn
	final(data *FlowUpdateData, link LinkID, sending, accepted float64)
}

// linkFlowTracker accumulates sending flows and outflows of link segments
type linkFlowTracker struct{}

func (linkFlowTracker) origin(data *FlowUpdateData, link LinkID, flow float64) {
	data.sendingFlows[link] += flow
}

func (linkFlowTracker) turn(data *FlowUpdateData, _ NodeID, entry, exit LinkID, _, accepted float64) {
	data.outFlows[entry] += accepted
	data.sendingFlows[exit] += accepted
}

func (linkFlowTracker) final(data *FlowUpdateData, link LinkID, _, accepted float64) {
	data.outFlows[link] += accepted
}

// turnFlowTracker accumulates flows of movements at tracked nodes.
// It maintains link sending flows too when pass context asks for it.
type turnFlowTracker struct {
	net    *Network
	logger logr.Logger
}

func (tracker turnFlowTracker) origin(data *FlowUpdateData, link LinkID, flow float64) {
	if data.updateSendingFlows {
		data.sendingFlows[link] += flow
	}
}

func (tracker turnFlowTracker) turn(data *FlowUpdateData, node NodeID, entry, exit LinkID, sending, accepted float64) {
	if data.updateSendingFlows {
		data.sendingFlows[exit] += accepted
	}
	if !data.isTracked(node) {
		return
	}
	mvmtID, ok := tracker.net.MovementBetween(entry, exit)
	if !ok {
		tracker.logger.Error(ErrMovementNotFound, "Can't track turn flow", "node", node, "entry", entry, "exit", exit)
		return
	}
	data.turnSendingFlows[mvmtID] += sending
	data.acceptedTurnFlows[mvmtID] += accepted
}

// final is no-op: turn requires two link segments
func (tracker turnFlowTracker) final(*FlowUpdateData, LinkID, float64, float64) {}

// checkEntryConservation compares accepted flow of the entry segment with flow distributed over exits
func checkEntryConservation(logger logr.Logger, link *LinkSegment, tolerance, accepted, distributed float64, component string) {
	if link.IsConnector() {
		return
	}
	if math.Abs(accepted-distributed) <= tolerance*math.Max(1.0, accepted) {
		return
	}
	recordConservationViolation(component)
	logger.Error(ErrFlowConservation, "Flow distributed over exits does not match accepted flow of entry", "link", link.ID, "expected", accepted, "actual", distributed)
}
