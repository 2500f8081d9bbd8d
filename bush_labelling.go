package sltm

import (
	"sort"
	"strconv"
	"strings"
)

// labellingStats describes what happened while labelling path flow
type labellingStats struct {
	// minted is number of new labels
	minted int
	// relabeled is number of links which tentatively shared span was rewritten under merged composition
	relabeled int
	// switches is number of times followed composition changed while the path still coincided with foreign flow
	switches int
}

func compositionKey(composition []NodeID) string {
	var sb strings.Builder
	for i, destination := range composition {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(destination)))
	}
	return sb.String()
}

// labelFor returns label of the composition minting it when the bush has none yet
func (bush *Bush) labelFor(composition []NodeID, stats *labellingStats) BushLabel {
	key := compositionKey(composition)
	if label, ok := bush.labelByComposition[key]; ok {
		return label
	}
	label := BushLabel(len(bush.labels))
	bush.labels = append(bush.labels, bushLabelInfo{composition: composition})
	bush.labelByComposition[key] = label
	stats.minted++
	return label
}

func (bush *Bush) addFlow(link LinkID, label BushLabel, destination NodeID, flow float64) {
	labelled, ok := bush.flows[link]
	if !ok {
		labelled = make(map[BushLabel]destinationFlows)
		bush.flows[link] = labelled
	}
	dests, ok := labelled[label]
	if !ok {
		dests = make(destinationFlows)
		labelled[label] = dests
	}
	dests[destination] += flow
}

func (bush *Bush) addTurnFlow(entry, exit labelledLink, destination NodeID, flow float64) {
	exits, ok := bush.turns[entry]
	if !ok {
		exits = make(map[labelledLink]destinationFlows)
		bush.turns[entry] = exits
	}
	dests, ok := exits[exit]
	if !ok {
		dests = make(destinationFlows)
		exits[exit] = dests
	}
	dests[destination] += flow
}

// relabel moves flow of the link from one label to another, rewriting labelled turns on both ends of the link
func (bush *Bush) relabel(link LinkID, from, to BushLabel) {
	if from == to {
		return
	}
	labelled := bush.flows[link]
	dests, ok := labelled[from]
	if !ok {
		return
	}
	delete(labelled, from)
	for destination, flow := range dests {
		bush.addFlow(link, to, destination, flow)
	}
	fromKey := labelledLink{link: link, label: from}
	toKey := labelledLink{link: link, label: to}
	if exits, ok := bush.turns[fromKey]; ok {
		delete(bush.turns, fromKey)
		for exit, turnDests := range exits {
			for destination, flow := range turnDests {
				bush.addTurnFlow(toKey, exit, destination, flow)
			}
		}
	}
	source := bush.net.links[link].sourceNodeID
	for _, entryLink := range bush.net.nodes[source].incomingLinks {
		for label := range bush.flows[entryLink] {
			entry := labelledLink{link: entryLink, label: label}
			exits := bush.turns[entry]
			turnDests, ok := exits[fromKey]
			if !ok {
				continue
			}
			delete(exits, fromKey)
			for destination, flow := range turnDests {
				bush.addTurnFlow(entry, toKey, destination, flow)
			}
		}
	}
}

// activeLabels returns labels with positive flow on the link, ascending
func (bush *Bush) activeLabels(link LinkID) []BushLabel {
	labels := make([]BushLabel, 0, len(bush.flows[link]))
	for label, dests := range bush.flows[link] {
		if dests.total() > 0 {
			labels = append(labels, label)
		}
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}

// reachable returns labels on the link which receive positive flow of given labels of the previous link, ascending
func (bush *Bush) reachable(previous LinkID, from []BushLabel, link LinkID) []BushLabel {
	set := make(map[BushLabel]struct{})
	for _, label := range from {
		for exit, dests := range bush.turns[labelledLink{link: previous, label: label}] {
			if exit.link == link && dests.total() > 0 {
				set[exit.label] = struct{}{}
			}
		}
	}
	labels := make([]BushLabel, 0, len(set))
	for label := range set {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}

// splitByDestination separates labels already carrying flow towards destination on the link from foreign ones
func (bush *Bush) splitByDestination(link LinkID, labels []BushLabel, destination NodeID) (own, foreign []BushLabel) {
	for _, label := range labels {
		if bush.flows[link][label][destination] > 0 {
			own = append(own, label)
		} else {
			foreign = append(foreign, label)
		}
	}
	return own, foreign
}

// carried returns destinations with positive flow under given labels on the link, ascending
func (bush *Bush) carried(link LinkID, labels []BushLabel) []NodeID {
	set := make(map[NodeID]struct{})
	for _, label := range labels {
		for destination, flow := range bush.flows[link][label] {
			if flow > 0 {
				set[destination] = struct{}{}
			}
		}
	}
	composition := make([]NodeID, 0, len(set))
	for destination := range set {
		composition = append(composition, destination)
	}
	sort.Slice(composition, func(i, j int) bool { return composition[i] < composition[j] })
	return composition
}

func withDestination(composition []NodeID, destination NodeID) []NodeID {
	idx := sort.Search(len(composition), func(i int) bool { return composition[i] >= destination })
	if idx < len(composition) && composition[idx] == destination {
		return append([]NodeID(nil), composition...)
	}
	extended := make([]NodeID, 0, len(composition)+1)
	extended = append(extended, composition[:idx]...)
	extended = append(extended, destination)
	return append(extended, composition[idx:]...)
}

func sameComposition(a, b []NodeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// label walks the path from the root, decides composition label of the new flow on every link and registers the flow.
//
// Where the path coincides with flow of other compositions (reachable through labelled turns from the previous link)
// the walk follows them tentatively and writes nothing. The tentative span is resolved when:
//   - followed compositions all leave the path or the path meets a composition already carrying the destination:
//     the span is relabeled under the merged composition (minted on first use) and the walk continues on own flow;
//   - followed compositions change on the next link (some of them left the path, or they turned into other labels):
//     the span behind is relabeled under its merged composition and the walk switches to the new compositions.
//
// Links where the path continues own composition keep their labels. Links without any flow to join get
// the destination's own single-destination label.
//
// Each relabeled span lies strictly behind the walk position and spans never overlap, so the walk is linear in path length.
func (bush *Bush) label(destination NodeID, path Path, flow float64) labellingStats {
	stats := labellingStats{}
	assigned := make([]BushLabel, len(path))
	spanLabels := make([][]BushLabel, len(path))
	spanStart := -1
	var followed []BushLabel
	var spanComposition []NodeID

	resolveSpan := func(end int) {
		target := bush.labelFor(withDestination(spanComposition, destination), &stats)
		for k := spanStart; k < end; k++ {
			for _, label := range spanLabels[k] {
				bush.relabel(path[k], label, target)
			}
			assigned[k] = target
		}
		stats.relabeled += end - spanStart
		spanStart = -1
		followed = nil
		spanComposition = nil
	}
	follow := func(i int, labels []BushLabel, composition []NodeID) {
		if spanStart < 0 {
			spanStart = i
		}
		followed = labels
		spanLabels[i] = labels
		spanComposition = composition
	}

	for i, linkID := range path {
		var candidates []BushLabel
		switch {
		case i == 0:
			candidates = bush.activeLabels(linkID)
		case spanStart >= 0:
			candidates = bush.reachable(path[i-1], followed, linkID)
		default:
			candidates = bush.reachable(path[i-1], []BushLabel{assigned[i-1]}, linkID)
		}
		own, foreign := bush.splitByDestination(linkID, candidates, destination)
		if spanStart >= 0 {
			if len(own) == 0 && len(foreign) > 0 {
				composition := bush.carried(linkID, foreign)
				if !sameComposition(composition, spanComposition) {
					resolveSpan(i)
					stats.switches++
				}
				follow(i, foreign, composition)
				continue
			}
			resolveSpan(i)
		}
		if len(own) > 0 {
			assigned[i] = own[0]
			continue
		}
		if len(foreign) > 0 {
			follow(i, foreign, bush.carried(linkID, foreign))
			continue
		}
		assigned[i] = bush.labelFor([]NodeID{destination}, &stats)
	}
	if spanStart >= 0 {
		resolveSpan(len(path))
	}

	for i, linkID := range path {
		bush.addFlow(linkID, assigned[i], destination, flow)
		if i > 0 {
			bush.addTurnFlow(labelledLink{link: path[i-1], label: assigned[i-1]}, labelledLink{link: linkID, label: assigned[i]}, destination, flow)
		}
	}
	return stats
}
