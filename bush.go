package sltm

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
)

const (
	// DEFAULT_BUSH_PRUNE_THRESHOLD is flow (pcu/h) below which labelled flow is removed from bush
	DEFAULT_BUSH_PRUNE_THRESHOLD = 1e-10
	// DEFAULT_BUSH_TOLERANCE is relative tolerance of bush flow conservation checks
	DEFAULT_BUSH_TOLERANCE = 1e-9
)

// BushLabel is flow composition label. It is index in the arena of labels of the owning bush
// and has no meaning outside of that bush.
type BushLabel int

type bushLabelInfo struct {
	// composition is destinations whose flow may travel under the label, ascending
	composition []NodeID
}

func (info bushLabelInfo) contains(destination NodeID) bool {
	idx := sort.Search(len(info.composition), func(i int) bool { return info.composition[i] >= destination })
	return idx < len(info.composition) && info.composition[idx] == destination
}

// labelledLink is link segment together with composition label of the flow on it
type labelledLink struct {
	link  LinkID
	label BushLabel
}

// destinationFlows is flow per destination
type destinationFlows map[NodeID]float64

func (flows destinationFlows) total() float64 {
	total := 0.0
	for _, flow := range flows {
		total += flow
	}
	return total
}

// SplittingRate is fraction of labelled flow of an entry link which continues via given exit link under given exit label
type SplittingRate struct {
	Link  LinkID
	Label BushLabel
	Rate  float64
}

// Bush is acyclic sub-graph rooted at origin centroid which carries labelled flow towards destinations.
//
// Flow is stored per (link segment, label, destination) and every labelled turn at a node is stored explicitly,
// so labelled flow may change its label at a node. A label is a composition of destinations travelling together:
// destinations which diverged once never share a label downstream of the divergence.
type Bush struct {
	net    *Network
	origin NodeID

	labels             []bushLabelInfo
	labelByComposition map[string]BushLabel
	flows              map[LinkID]map[BushLabel]destinationFlows
	// turns is labelled turn flow: entry (link, label) -> exit (link, label) -> flow per destination
	turns  map[labelledLink]map[labelledLink]destinationFlows
	demand map[NodeID]float64

	// derived structure, rebuilt after every mutation
	order      []LinkID
	splitRates map[labelledLink][]SplittingRate

	pruneThreshold float64
	tolerance      float64
	logger         logr.Logger
}

type BushOption func(*Bush)

func WithBushLogger(logger logr.Logger) BushOption {
	return func(bush *Bush) {
		bush.logger = logger
	}
}

// WithBushPruneThreshold sets flow below which labelled flow is removed from the bush
func WithBushPruneThreshold(threshold float64) BushOption {
	return func(bush *Bush) {
		bush.pruneThreshold = threshold
	}
}

// NewBush creates empty bush rooted at given origin centroid
func NewBush(net *Network, origin NodeID, options ...BushOption) (*Bush, error) {
	if net == nil {
		return nil, ErrNetworkMissing
	}
	node, err := net.node(origin)
	if err != nil {
		return nil, errors.Wrap(err, "Can't create bush")
	}
	if !node.isCentroid {
		return nil, errors.Wrapf(ErrNotCentroid, "Can't create bush rooted at %d", origin)
	}
	bush := &Bush{
		net:                net,
		origin:             origin,
		labels:             make([]bushLabelInfo, 0),
		labelByComposition: make(map[string]BushLabel),
		flows:              make(map[LinkID]map[BushLabel]destinationFlows),
		turns:              make(map[labelledLink]map[labelledLink]destinationFlows),
		demand:             make(map[NodeID]float64),
		splitRates:         make(map[labelledLink][]SplittingRate),
		pruneThreshold:     DEFAULT_BUSH_PRUNE_THRESHOLD,
		tolerance:          DEFAULT_BUSH_TOLERANCE,
		logger:             logr.Discard(),
	}
	for _, option := range options {
		option(bush)
	}
	return bush, nil
}

func (bush *Bush) String() string {
	return fmt.Sprintf("bush rooted at %d: links %d, labels %d, destinations %d", bush.origin, len(bush.flows), len(bush.labels), len(bush.demand))
}

func (bush *Bush) Origin() NodeID {
	return bush.origin
}

// AddPathFlow adds flow towards destination along the path. Path has to start at the origin of the bush,
// end at the destination and must not introduce a cycle.
func (bush *Bush) AddPathFlow(destination NodeID, path Path, flow float64) error {
	if flow < 0 || math.IsNaN(flow) {
		return errors.Wrapf(ErrNegativeFlow, "Can't add flow %f towards %d", flow, destination)
	}
	if err := validatePath(bush.net, bush.origin, destination, path); err != nil {
		return err
	}
	if bush.createsCycle(path) {
		return errors.Wrapf(ErrBushCycle, "Path %s towards %d", path, destination)
	}
	bush.demand[destination] += flow
	if flow > 0 {
		stats := bush.label(destination, path, flow)
		bush.logger.V(TRACE).Info("Path flow added to bush", "origin", bush.origin, "destination", destination, "path", path.String(), "flow", flow, "minted", stats.minted, "relabeled", stats.relabeled, "switches", stats.switches)
	}
	bush.rebuildStructure()
	return nil
}

// ShiftDestinationFlow moves lambda share of the flow towards destination onto the path:
// every labelled flow of the destination is scaled by (1-lambda) and lambda times destination demand is added along the path.
func (bush *Bush) ShiftDestinationFlow(destination NodeID, path Path, lambda float64) error {
	if lambda < 0 || lambda > 1 || math.IsNaN(lambda) {
		return errors.Wrapf(ErrInvalidStepSize, "Lambda %f", lambda)
	}
	if _, ok := bush.demand[destination]; !ok {
		return errors.Wrapf(ErrDestinationNotInBush, "Destination %d of bush rooted at %d", destination, bush.origin)
	}
	if err := validatePath(bush.net, bush.origin, destination, path); err != nil {
		return err
	}
	if bush.createsCycle(path) {
		return errors.Wrapf(ErrBushCycle, "Path %s towards %d", path, destination)
	}
	if lambda == 0 {
		return nil
	}
	for _, labelled := range bush.flows {
		for _, dests := range labelled {
			if flow, ok := dests[destination]; ok {
				dests[destination] = flow * (1 - lambda)
			}
		}
	}
	for _, exits := range bush.turns {
		for _, dests := range exits {
			if flow, ok := dests[destination]; ok {
				dests[destination] = flow * (1 - lambda)
			}
		}
	}
	stats := bush.label(destination, path, lambda*bush.demand[destination])
	bush.logger.V(TRACE).Info("Destination flow shifted", "origin", bush.origin, "destination", destination, "path", path.String(), "lambda", lambda, "minted", stats.minted, "relabeled", stats.relabeled, "switches", stats.switches)
	bush.prune()
	bush.rebuildStructure()
	return nil
}

// prune removes destination flows below threshold, then labels and links left without flow
func (bush *Bush) prune() {
	for linkID, labelled := range bush.flows {
		for label, dests := range labelled {
			for destination, flow := range dests {
				if flow < bush.pruneThreshold {
					delete(dests, destination)
				}
			}
			if len(dests) == 0 {
				delete(labelled, label)
			}
		}
		if len(labelled) == 0 {
			delete(bush.flows, linkID)
		}
	}
	for entry, exits := range bush.turns {
		for exit, dests := range exits {
			for destination, flow := range dests {
				if flow < bush.pruneThreshold {
					delete(dests, destination)
				}
			}
			if len(dests) == 0 {
				delete(exits, exit)
			}
		}
		if len(exits) == 0 {
			delete(bush.turns, entry)
		}
	}
}

// createsCycle checks if adding path's links to the bush results into directed cycle
func (bush *Bush) createsCycle(path Path) bool {
	adjacency := bush.adjacency()
	for _, linkID := range path {
		link := bush.net.links[linkID]
		if _, ok := bush.flows[linkID]; ok {
			continue
		}
		adjacency[link.sourceNodeID] = append(adjacency[link.sourceNodeID], linkID)
	}
	_, ok := bush.topologicalOrder(adjacency)
	return !ok
}

// adjacency returns bush links grouped by their source node
func (bush *Bush) adjacency() map[NodeID][]LinkID {
	adjacency := make(map[NodeID][]LinkID)
	for linkID := range bush.flows {
		source := bush.net.links[linkID].sourceNodeID
		adjacency[source] = append(adjacency[source], linkID)
	}
	return adjacency
}

const (
	white = iota
	gray
	black
)

// topologicalOrder returns nodes of the sub-graph in topological order using depth first search.
// Second value is false when sub-graph has a cycle.
func (bush *Bush) topologicalOrder(adjacency map[NodeID][]LinkID) ([]NodeID, bool) {
	nodes := make([]NodeID, 0, len(adjacency)+1)
	for node, links := range adjacency {
		nodes = append(nodes, node)
		sort.Slice(links, func(i, j int) bool { return links[i] < links[j] })
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	color := make(map[NodeID]int, len(nodes))
	postOrder := make([]NodeID, 0, len(nodes))
	var visit func(node NodeID) bool
	visit = func(node NodeID) bool {
		color[node] = gray
		for _, linkID := range adjacency[node] {
			next := bush.net.links[linkID].targetNodeID
			switch color[next] {
			case gray:
				return false
			case white:
				if !visit(next) {
					return false
				}
			}
		}
		color[node] = black
		postOrder = append(postOrder, node)
		return true
	}
	if color[bush.origin] == white && !visit(bush.origin) {
		return nil, false
	}
	for _, node := range nodes {
		if color[node] == white && !visit(node) {
			return nil, false
		}
	}
	for i, j := 0, len(postOrder)-1; i < j; i, j = i+1, j-1 {
		postOrder[i], postOrder[j] = postOrder[j], postOrder[i]
	}
	return postOrder, true
}

// rebuildStructure recomputes topological order of links and splitting rates of labelled turns
func (bush *Bush) rebuildStructure() {
	adjacency := bush.adjacency()
	nodes, ok := bush.topologicalOrder(adjacency)
	if !ok {
		// every mutation is checked against cycles beforehand
		panic("Should not happen!")
	}
	bush.order = bush.order[:0]
	for _, node := range nodes {
		bush.order = append(bush.order, adjacency[node]...)
	}
	bush.splitRates = make(map[labelledLink][]SplittingRate, len(bush.turns))
	for entry, exits := range bush.turns {
		total := bush.LabelledFlow(entry.link, entry.label)
		if total <= 0 {
			continue
		}
		rates := make([]SplittingRate, 0, len(exits))
		for exit, dests := range exits {
			rates = append(rates, SplittingRate{Link: exit.link, Label: exit.label, Rate: dests.total() / total})
		}
		sort.Slice(rates, func(i, j int) bool {
			if rates[i].Link != rates[j].Link {
				return rates[i].Link < rates[j].Link
			}
			return rates[i].Label < rates[j].Label
		})
		bush.splitRates[entry] = rates
	}
}

// TopologicalOrder returns links of the bush ordered so every link comes after all bush links entering its source node
func (bush *Bush) TopologicalOrder() []LinkID {
	return bush.order
}

// SplittingRates returns how flow of the entry link under the label is distributed over labelled exits.
// Rates of a row sum up to 1; empty row means that the flow ends at the destination.
func (bush *Bush) SplittingRates(entry LinkID, label BushLabel) []SplittingRate {
	return bush.splitRates[labelledLink{link: entry, label: label}]
}

// Links returns links of the bush in ascending order
func (bush *Bush) Links() []LinkID {
	links := make([]LinkID, 0, len(bush.flows))
	for linkID := range bush.flows {
		links = append(links, linkID)
	}
	sort.Slice(links, func(i, j int) bool { return links[i] < links[j] })
	return links
}

// Labels returns labels carrying flow on the link in ascending order
func (bush *Bush) Labels(link LinkID) []BushLabel {
	labels := make([]BushLabel, 0, len(bush.flows[link]))
	for label := range bush.flows[link] {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}

// LabelComposition returns destinations which flow may travel under the label
func (bush *Bush) LabelComposition(label BushLabel) ([]NodeID, bool) {
	if label < 0 || int(label) >= len(bush.labels) {
		return nil, false
	}
	return bush.labels[label].composition, true
}

// LabelsNum returns number of labels minted by the bush
func (bush *Bush) LabelsNum() int {
	return len(bush.labels)
}

// LabelledFlow returns flow on the link under given label
func (bush *Bush) LabelledFlow(link LinkID, label BushLabel) float64 {
	return bush.flows[link][label].total()
}

// LinkFlow returns total flow on the link over all labels
func (bush *Bush) LinkFlow(link LinkID) float64 {
	total := 0.0
	for _, dests := range bush.flows[link] {
		total += dests.total()
	}
	return total
}

// DestinationSendingFlow returns flow on the link towards given destination
func (bush *Bush) DestinationSendingFlow(link LinkID, destination NodeID) float64 {
	total := 0.0
	for _, dests := range bush.flows[link] {
		total += dests[destination]
	}
	return total
}

// Destinations returns destinations served by the bush in ascending order
func (bush *Bush) Destinations() []NodeID {
	destinations := make([]NodeID, 0, len(bush.demand))
	for destination := range bush.demand {
		destinations = append(destinations, destination)
	}
	sort.Slice(destinations, func(i, j int) bool { return destinations[i] < destinations[j] })
	return destinations
}

// DestinationDemand returns total flow registered towards destination
func (bush *Bush) DestinationDemand(destination NodeID) float64 {
	return bush.demand[destination]
}

// RootSendingFlow returns flow leaving the origin over all labels
func (bush *Bush) RootSendingFlow() float64 {
	total := 0.0
	for _, linkID := range bush.net.nodes[bush.origin].outcomingLinks {
		total += bush.LinkFlow(linkID)
	}
	return total
}

// Validate checks that bush is acyclic, labelled flow matches label compositions, every labelled turn connects
// links at the same node and flow of every destination is conserved from the origin to the destination
func (bush *Bush) Validate() error {
	if _, ok := bush.topologicalOrder(bush.adjacency()); !ok {
		return errors.Wrapf(ErrBushCycle, "Bush rooted at %d", bush.origin)
	}
	matches := func(expected, got float64) bool {
		return math.Abs(got-expected) <= bush.tolerance*math.Max(1.0, math.Abs(expected))
	}
	inflow := make(map[labelledLink]destinationFlows)
	outflow := make(map[labelledLink]destinationFlows)
	for entry, exits := range bush.turns {
		for exit, dests := range exits {
			if bush.net.links[entry.link].targetNodeID != bush.net.links[exit.link].sourceNodeID {
				return errors.Wrapf(ErrPathDisconnected, "Labelled turn %d -> %d", entry.link, exit.link)
			}
			for destination, flow := range dests {
				if _, ok := outflow[entry]; !ok {
					outflow[entry] = make(destinationFlows)
				}
				outflow[entry][destination] += flow
				if _, ok := inflow[exit]; !ok {
					inflow[exit] = make(destinationFlows)
				}
				inflow[exit][destination] += flow
			}
		}
	}
	for _, ends := range []map[labelledLink]destinationFlows{inflow, outflow} {
		for key := range ends {
			if _, ok := bush.flows[key.link][key.label]; !ok {
				return errors.Wrapf(ErrBushConservation, "Labelled turn refers to link %d label %d without flow", key.link, key.label)
			}
		}
	}
	rootFlows := make(destinationFlows)
	sinkFlows := make(destinationFlows)
	for linkID, labelled := range bush.flows {
		link := bush.net.links[linkID]
		for label, dests := range labelled {
			key := labelledLink{link: linkID, label: label}
			for destination, flow := range dests {
				if flow < 0 {
					return errors.Wrapf(ErrNegativeFlow, "Link %d label %d destination %d: %f", linkID, label, destination, flow)
				}
				if !bush.labels[label].contains(destination) {
					return errors.Wrapf(ErrBushComposition, "Link %d label %d carries flow towards %d", linkID, label, destination)
				}
				expectedIn, expectedOut := flow, flow
				if link.sourceNodeID == bush.origin {
					expectedIn = 0
					rootFlows[destination] += flow
				}
				if link.targetNodeID == destination {
					expectedOut = 0
					sinkFlows[destination] += flow
				}
				if got := inflow[key][destination]; !matches(expectedIn, got) {
					return errors.Wrapf(ErrBushConservation, "Link %d label %d destination %d: flow %f, labelled turn inflow %f", linkID, label, destination, expectedIn, got)
				}
				if got := outflow[key][destination]; !matches(expectedOut, got) {
					return errors.Wrapf(ErrBushConservation, "Link %d label %d destination %d: flow %f, labelled turn outflow %f", linkID, label, destination, expectedOut, got)
				}
			}
		}
	}
	for destination, expected := range bush.demand {
		if got := rootFlows[destination]; !matches(expected, got) {
			return errors.Wrapf(ErrBushConservation, "Origin %d destination %d: expected %f, got %f", bush.origin, destination, expected, got)
		}
		if got := sinkFlows[destination]; !matches(expected, got) {
			return errors.Wrapf(ErrBushConservation, "Destination %d: expected %f, got %f", destination, expected, got)
		}
	}
	return nil
}
