package sltm

import (
	"sort"

	"github.com/go-logr/logr"
)

// Bushes is set of origin bushes
type Bushes struct {
	net    *Network
	bushes map[NodeID]*Bush
}

func NewBushes(net *Network) *Bushes {
	return &Bushes{
		net:    net,
		bushes: make(map[NodeID]*Bush),
	}
}

// Get returns bush of the origin
func (bushes *Bushes) Get(origin NodeID) (*Bush, bool) {
	bush, ok := bushes.bushes[origin]
	return bush, ok
}

// GetOrCreate returns bush of the origin creating empty one if needed
func (bushes *Bushes) GetOrCreate(origin NodeID, options ...BushOption) (*Bush, error) {
	if bush, ok := bushes.bushes[origin]; ok {
		return bush, nil
	}
	bush, err := NewBush(bushes.net, origin, options...)
	if err != nil {
		return nil, err
	}
	bushes.bushes[origin] = bush
	return bush, nil
}

// Origins returns origins of bushes in ascending order
func (bushes *Bushes) Origins() []NodeID {
	origins := make([]NodeID, 0, len(bushes.bushes))
	for origin := range bushes.bushes {
		origins = append(origins, origin)
	}
	sort.Slice(origins, func(i, j int) bool { return origins[i] < origins[j] })
	return origins
}

func (bushes *Bushes) LinkFlowUpdate(logger logr.Logger) FlowUpdateConsumer {
	return NewBushLinkFlowUpdate(bushes, logger)
}

func (bushes *Bushes) TurnFlowUpdate(logger logr.Logger) FlowUpdateConsumer {
	return NewBushTurnFlowUpdate(bushes, logger)
}

// bushFlowUpdate walks every bush in topological order and propagates labelled flow using splitting rates of the bush
// and acceptance factors of the pass context. Flow follows label transitions of the splitting rates.
type bushFlowUpdate struct {
	bushes    *Bushes
	tracker   flowTracker
	logger    logr.Logger
	component string
	// scratch is labelled sending flow of currently walked bush
	scratch map[labelledLink]float64
}

func (upd *bushFlowUpdate) Update(data *FlowUpdateData) {
	for _, origin := range upd.bushes.Origins() {
		upd.updateBush(upd.bushes.bushes[origin], data)
	}
}

func (upd *bushFlowUpdate) updateBush(bush *Bush, data *FlowUpdateData) {
	for key := range upd.scratch {
		delete(upd.scratch, key)
	}
	net := bush.net
	for _, linkID := range net.nodes[bush.origin].outcomingLinks {
		for _, label := range bush.Labels(linkID) {
			flow := bush.LabelledFlow(linkID, label)
			upd.scratch[labelledLink{link: linkID, label: label}] = flow
			upd.tracker.origin(data, linkID, flow)
		}
	}
	for _, linkID := range bush.order {
		link := net.links[linkID]
		alpha := data.acceptanceFactors[linkID]
		for _, label := range bush.Labels(linkID) {
			sending := upd.scratch[labelledLink{link: linkID, label: label}]
			if sending <= 0 {
				continue
			}
			accepted := sending * alpha
			rates := bush.SplittingRates(linkID, label)
			if len(rates) == 0 {
				upd.tracker.final(data, linkID, sending, accepted)
				continue
			}
			distributed := 0.0
			for _, rate := range rates {
				turnAccepted := accepted * rate.Rate
				upd.tracker.turn(data, link.targetNodeID, linkID, rate.Link, sending*rate.Rate, turnAccepted)
				upd.scratch[labelledLink{link: rate.Link, label: rate.Label}] += turnAccepted
				distributed += turnAccepted
			}
			checkEntryConservation(upd.logger, link, data.conservationTolerance, accepted, distributed, upd.component)
		}
	}
}

// BushLinkFlowUpdate loads bushes and accumulates link sending flows and outflows
type BushLinkFlowUpdate struct {
	bushFlowUpdate
}

func NewBushLinkFlowUpdate(bushes *Bushes, logger logr.Logger) *BushLinkFlowUpdate {
	return &BushLinkFlowUpdate{bushFlowUpdate{
		bushes:    bushes,
		tracker:   linkFlowTracker{},
		logger:    logger,
		component: "bush_link_flow_update",
		scratch:   make(map[labelledLink]float64),
	}}
}

// BushTurnFlowUpdate loads bushes and accumulates turn flows of tracked nodes
type BushTurnFlowUpdate struct {
	bushFlowUpdate
}

func NewBushTurnFlowUpdate(bushes *Bushes, logger logr.Logger) *BushTurnFlowUpdate {
	return &BushTurnFlowUpdate{bushFlowUpdate{
		bushes:    bushes,
		tracker:   turnFlowTracker{net: bushes.net, logger: logger},
		logger:    logger,
		component: "bush_turn_flow_update",
		scratch:   make(map[labelledLink]float64),
	}}
}
