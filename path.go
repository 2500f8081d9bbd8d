package sltm

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
)

// Path is ordered sequence of consecutive link segments
type Path []LinkID

func (path Path) String() string {
	parts := make([]string, len(path))
	for i, linkID := range path {
		parts[i] = fmt.Sprintf("%d", linkID)
	}
	return "[" + strings.Join(parts, "->") + "]"
}

func (path Path) equal(other Path) bool {
	if len(path) != len(other) {
		return false
	}
	for i := range path {
		if path[i] != other[i] {
			return false
		}
	}
	return true
}

// Cost returns sum of link costs along the path
func (path Path) Cost(costs []float64) float64 {
	total := 0.0
	for _, linkID := range path {
		total += costs[linkID]
	}
	return total
}

// validatePath checks that path is connected sequence of links leading from origin to destination
func validatePath(net *Network, origin, destination NodeID, path Path) error {
	if len(path) == 0 {
		return errors.Wrapf(ErrPathEmpty, "Path %d -> %d", origin, destination)
	}
	for i, linkID := range path {
		link := net.Link(linkID)
		if link == nil {
			return errors.Wrapf(ErrLinkNotFound, "Link %d of path %d -> %d", linkID, origin, destination)
		}
		if i == 0 && link.sourceNodeID != origin {
			return errors.Wrapf(ErrPathWrongEnds, "Path %s starts at node %d instead of %d", path, link.sourceNodeID, origin)
		}
		if i > 0 && net.links[path[i-1]].targetNodeID != link.sourceNodeID {
			return errors.Wrapf(ErrPathDisconnected, "Links %d and %d of path %s", path[i-1], linkID, path)
		}
	}
	if last := net.links[path[len(path)-1]]; last.targetNodeID != destination {
		return errors.Wrapf(ErrPathWrongEnds, "Path %s ends at node %d instead of %d", path, last.targetNodeID, destination)
	}
	return nil
}

type odPair struct {
	origin      NodeID
	destination NodeID
}

// PathChoice is path with its choice probability
type PathChoice struct {
	Path        Path
	Probability float64
}

// OdPathSets keeps set of used paths with choice probabilities for every OD pair
type OdPathSets struct {
	net    *Network
	demand *Demand
	sets   map[odPair][]*PathChoice
}

func NewOdPathSets(net *Network, demand *Demand) *OdPathSets {
	return &OdPathSets{
		net:    net,
		demand: demand,
		sets:   make(map[odPair][]*PathChoice),
	}
}

// Add adds path to the OD path set with weight lambda: probabilities of already known paths are scaled by (1-lambda)
// and lambda is added to the probability of given path. First path of the OD pair always gets probability one.
func (sets *OdPathSets) Add(origin, destination NodeID, path Path, lambda float64) error {
	if lambda < 0 || lambda > 1 || math.IsNaN(lambda) {
		return errors.Wrapf(ErrInvalidStepSize, "Lambda %f", lambda)
	}
	if err := validatePath(sets.net, origin, destination, path); err != nil {
		return err
	}
	key := odPair{origin: origin, destination: destination}
	choices := sets.sets[key]
	if len(choices) == 0 {
		sets.sets[key] = []*PathChoice{{Path: append(Path{}, path...), Probability: 1.0}}
		return nil
	}
	var target *PathChoice
	for _, choice := range choices {
		choice.Probability *= (1 - lambda)
		if choice.Path.equal(path) {
			target = choice
		}
	}
	if target == nil {
		target = &PathChoice{Path: append(Path{}, path...)}
		choices = append(choices, target)
	}
	target.Probability += lambda
	// drop paths which are not used anymore
	used := choices[:0]
	for _, choice := range choices {
		if choice.Probability > 1e-12 {
			used = append(used, choice)
		}
	}
	sets.sets[key] = used
	return nil
}

// Paths returns path set of the OD pair
func (sets *OdPathSets) Paths(origin, destination NodeID) []*PathChoice {
	return sets.sets[odPair{origin: origin, destination: destination}]
}

// odPairs returns OD pairs having path set in deterministic order
func (sets *OdPathSets) odPairs() []odPair {
	pairs := make([]odPair, 0, len(sets.sets))
	for key := range sets.sets {
		pairs = append(pairs, key)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].origin == pairs[j].origin {
			return pairs[i].destination < pairs[j].destination
		}
		return pairs[i].origin < pairs[j].origin
	})
	return pairs
}

// PathFlow returns flow assigned to the path choice of OD pair
func (sets *OdPathSets) PathFlow(origin, destination NodeID, choice *PathChoice) float64 {
	return sets.demand.Get(origin, destination) * choice.Probability
}

func (sets *OdPathSets) LinkFlowUpdate(logger logr.Logger) FlowUpdateConsumer {
	return NewPathLinkFlowUpdate(sets, logger)
}

func (sets *OdPathSets) TurnFlowUpdate(logger logr.Logger) FlowUpdateConsumer {
	return NewPathTurnFlowUpdate(sets, logger)
}
