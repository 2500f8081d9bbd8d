package sltm

import (
	"fmt"
	"math"

	"github.com/LdDl/ch"
	"github.com/pkg/errors"
)

// Router finds shortest paths between centroids over edge expanded graph of the network prepared with contraction hierarchies.
//
// Vertices of expanded graph are link segments plus virtual origin/destination vertex of every centroid.
// Edges are movements (cost of the downstream link), origin connectors and destination sinks.
// Since centroids have no movements, paths never go through centroids.
type Router struct {
	net   *Network
	graph *ch.Graph
}

// NewRouter builds contraction hierarchies for given link costs (hours)
func NewRouter(net *Network, costs []float64) (*Router, error) {
	if net == nil {
		return nil, ErrNetworkMissing
	}
	if !net.prepared {
		return nil, ErrNetworkNotPrepared
	}
	if len(costs) != len(net.links) {
		return nil, errors.Wrapf(ErrInvalidConfigValue, "Number of costs %d does not match number of links %d", len(costs), len(net.links))
	}
	router := &Router{
		net:   net,
		graph: &ch.Graph{},
	}
	addEdge := func(source, target int64, cost float64) error {
		err := router.graph.CreateVertex(source)
		if err != nil {
			return errors.Wrap(err, "Can not create source vertex")
		}
		err = router.graph.CreateVertex(target)
		if err != nil {
			return errors.Wrap(err, "Can not create target vertex")
		}
		err = router.graph.AddEdge(source, target, cost)
		if err != nil {
			return errors.Wrap(err, "Can not wrap Source and Target vertices as Edge")
		}
		return nil
	}
	for _, mvmt := range net.movements {
		if err := addEdge(int64(mvmt.IncomingLinkID), int64(mvmt.OutcomingLinkID), costs[mvmt.OutcomingLinkID]); err != nil {
			return nil, errors.Wrapf(err, "Movement %d", mvmt.ID)
		}
	}
	for _, node := range net.nodes {
		if !node.isCentroid {
			continue
		}
		for _, linkID := range node.outcomingLinks {
			if err := addEdge(router.originVertex(node.ID), int64(linkID), costs[linkID]); err != nil {
				return nil, errors.Wrapf(err, "Origin connector %d", linkID)
			}
		}
		for _, linkID := range node.incomingLinks {
			if err := addEdge(int64(linkID), router.destinationVertex(node.ID), 0); err != nil {
				return nil, errors.Wrapf(err, "Destination connector %d", linkID)
			}
		}
	}
	router.graph.PrepareContractionHierarchies()
	return router, nil
}

func (router *Router) originVertex(centroid NodeID) int64 {
	return int64(len(router.net.links)) + 2*int64(centroid)
}

func (router *Router) destinationVertex(centroid NodeID) int64 {
	return int64(len(router.net.links)) + 2*int64(centroid) + 1
}

// ShortestPath returns the cheapest path between centroids and its cost
func (router *Router) ShortestPath(origin, destination NodeID) (Path, float64, error) {
	for _, centroid := range []NodeID{origin, destination} {
		node := router.net.Node(centroid)
		if node == nil || !node.isCentroid {
			return nil, 0, errors.Wrapf(ErrNotCentroid, "Node %d", centroid)
		}
	}
	cost, vertices := router.graph.ShortestPath(router.originVertex(origin), router.destinationVertex(destination))
	if cost < 0 || len(vertices) < 3 || math.IsInf(cost, 1) {
		return nil, 0, errors.Wrapf(ErrNoPath, "%d -> %d", origin, destination)
	}
	path := make(Path, 0, len(vertices)-2)
	for _, vertex := range vertices[1 : len(vertices)-1] {
		path = append(path, LinkID(vertex))
	}
	return path, cost, nil
}

func (router *Router) String() string {
	return fmt.Sprintf("router: vertices %d", len(router.graph.Vertices))
}
