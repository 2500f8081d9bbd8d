package sltm

import (
	"math"

	"github.com/go-logr/logr"
)

// pathFlowUpdate walks every path of every OD pair and propagates path flow scaled by choice probability
type pathFlowUpdate struct {
	sets      *OdPathSets
	tracker   flowTracker
	logger    logr.Logger
	component string
}

func (upd *pathFlowUpdate) Update(data *FlowUpdateData) {
	net := upd.sets.net
	for _, od := range upd.sets.odPairs() {
		choices := upd.sets.sets[od]
		total := 0.0
		for _, choice := range choices {
			total += choice.Probability
		}
		if math.Abs(total-1.0) > data.conservationTolerance*float64(len(choices)) {
			recordConservationViolation(upd.component)
			upd.logger.Error(ErrFlowConservation, "Path choice probabilities do not sum up to one", "origin", od.origin, "destination", od.destination, "actual", total)
		}
		for _, choice := range choices {
			flow := upd.sets.PathFlow(od.origin, od.destination, choice)
			if flow <= 0 {
				continue
			}
			path := choice.Path
			upd.tracker.origin(data, path[0], flow)
			sending := flow
			for i, linkID := range path {
				accepted := sending * data.acceptanceFactors[linkID]
				if i == len(path)-1 {
					upd.tracker.final(data, linkID, sending, accepted)
					break
				}
				link := net.links[linkID]
				upd.tracker.turn(data, link.targetNodeID, linkID, path[i+1], sending, accepted)
				sending = accepted
			}
		}
	}
}

// PathLinkFlowUpdate loads path sets and accumulates link sending flows and outflows
type PathLinkFlowUpdate struct {
	pathFlowUpdate
}

func NewPathLinkFlowUpdate(sets *OdPathSets, logger logr.Logger) *PathLinkFlowUpdate {
	return &PathLinkFlowUpdate{pathFlowUpdate{
		sets:      sets,
		tracker:   linkFlowTracker{},
		logger:    logger,
		component: "path_link_flow_update",
	}}
}

// PathTurnFlowUpdate loads path sets and accumulates turn flows of tracked nodes
type PathTurnFlowUpdate struct {
	pathFlowUpdate
}

func NewPathTurnFlowUpdate(sets *OdPathSets, logger logr.Logger) *PathTurnFlowUpdate {
	return &PathTurnFlowUpdate{pathFlowUpdate{
		sets:      sets,
		tracker:   turnFlowTracker{net: sets.net, logger: logger},
		logger:    logger,
		component: "path_turn_flow_update",
	}}
}
