package sltm

import (
	"context"
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
)

const (
	DEFAULT_LOADING_EPSILON        = 1e-9
	DEFAULT_LOADING_MAX_ITERATIONS = 100
)

// LoadingResult describes how network loading finished
type LoadingResult struct {
	Iterations int
	Converged  bool
	// Change is maximum change of acceptance factors and (relative) sending flows in the latest iteration
	Change float64
	// BlockingNodes is number of nodes solved with turn based node model in the latest iteration
	BlockingNodes int
}

// NetworkLoading is static link transmission model loading with point queues.
//
// Single loading iterates between propagating flows of containers with current acceptance factors
// and solving node models which produce new acceptance factors, until they are consistent.
type NetworkLoading struct {
	net           *Network
	diagrams      *FundamentalDiagramComponent
	adapter       *NodeModelAdapter
	data          *FlowUpdateData
	scheme        SolutionScheme
	epsilon       float64
	maxIterations int
	trackAllNodes bool
	logger        logr.Logger

	prevAlphas  []float64
	prevSending []float64
}

type LoadingOption func(*NetworkLoading)

func WithLoadingEpsilon(epsilon float64) LoadingOption {
	return func(loading *NetworkLoading) {
		loading.epsilon = epsilon
	}
}

func WithLoadingIterations(maxIterations int) LoadingOption {
	return func(loading *NetworkLoading) {
		loading.maxIterations = maxIterations
	}
}

func WithLoadingScheme(scheme SolutionScheme) LoadingOption {
	return func(loading *NetworkLoading) {
		loading.scheme = scheme
	}
}

// WithLoadingTrackAllNodes makes advanced scheme solve node model of every node, not only potentially blocking ones
func WithLoadingTrackAllNodes(trackAll bool) LoadingOption {
	return func(loading *NetworkLoading) {
		loading.trackAllNodes = trackAll
	}
}

func WithLoadingLogger(logger logr.Logger) LoadingOption {
	return func(loading *NetworkLoading) {
		loading.logger = logger
	}
}

// NewNetworkLoading prepares loading of the network. Pass context is allocated once here.
func NewNetworkLoading(net *Network, diagrams *FundamentalDiagramComponent, options ...LoadingOption) (*NetworkLoading, error) {
	if net == nil {
		return nil, ErrNetworkMissing
	}
	if !net.prepared {
		return nil, ErrNetworkNotPrepared
	}
	if diagrams == nil {
		return nil, errors.Wrap(ErrInvalidConfigValue, "Fundamental diagrams are missing")
	}
	loading := &NetworkLoading{
		net:           net,
		diagrams:      diagrams,
		scheme:        SCHEME_POINT_QUEUE_ADVANCED,
		epsilon:       DEFAULT_LOADING_EPSILON,
		maxIterations: DEFAULT_LOADING_MAX_ITERATIONS,
		logger:        logr.Discard(),
		prevAlphas:    make([]float64, len(net.links)),
		prevSending:   make([]float64, len(net.links)),
	}
	for _, option := range options {
		option(loading)
	}
	if !loading.scheme.IsSupported() {
		return nil, errors.Wrapf(ErrUnsupportedScheme, "Scheme '%s'", loading.scheme)
	}
	if loading.epsilon <= 0 || loading.maxIterations <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfigValue, "Loading epsilon %f, max iterations %d", loading.epsilon, loading.maxIterations)
	}
	loading.data = newFlowUpdateData(net, loading.scheme, loading.trackAllNodes)
	loading.adapter = NewNodeModelAdapter(net, diagrams, loading.logger)
	return loading, nil
}

func (loading *NetworkLoading) String() string {
	return fmt.Sprintf("sLTM loading: scheme '%s', epsilon %e, max iterations %d, track all nodes %t", loading.scheme, loading.epsilon, loading.maxIterations, loading.data.trackAllNodes)
}

// Data returns pass context of the latest loading. Arrays must be treated as read-only.
func (loading *NetworkLoading) Data() *FlowUpdateData {
	return loading.data
}

// NodeModelAdapter returns adapter holding node model results of the latest pass
func (loading *NetworkLoading) NodeModelAdapter() *NodeModelAdapter {
	return loading.adapter
}

// Load loads flow containers onto the network. Acceptance factors start from one on every call.
func (loading *NetworkLoading) Load(ctx context.Context, containers FlowContainers) (LoadingResult, error) {
	result := LoadingResult{}
	if containers == nil {
		return result, errors.Wrap(ErrInvalidConfigValue, "Flow containers are missing")
	}
	data := loading.data
	for i := range data.acceptanceFactors {
		data.acceptanceFactors[i] = 1.0
	}
	for i := range data.potentiallyBlocking {
		data.potentiallyBlocking[i] = false
	}
	linkUpdate := containers.LinkFlowUpdate(loading.logger)
	turnUpdate := containers.TurnFlowUpdate(loading.logger)

	for result.Iterations < loading.maxIterations {
		if err := ctx.Err(); err != nil {
			return result, errors.Wrap(err, "Loading cancelled")
		}
		result.Iterations++
		copy(loading.prevAlphas, data.acceptanceFactors)

		data.resetFlows()
		switch loading.scheme {
		case SCHEME_POINT_QUEUE_BASIC:
			turnUpdate.Update(data)
			// final segment hook of turn consumers is no-op, so outflows are derived from sending flows
			for i, sending := range data.sendingFlows {
				data.outFlows[i] = sending * data.acceptanceFactors[i]
			}
		case SCHEME_POINT_QUEUE_ADVANCED:
			linkUpdate.Update(data)
			if !data.trackAllNodes {
				loading.detectPotentiallyBlocking()
			}
			turnUpdate.Update(data)
		default:
			return result, errors.Wrapf(ErrUnsupportedScheme, "Scheme '%s'", loading.scheme)
		}

		result.BlockingNodes = loading.adapter.Solve(data)

		result.Change = 0
		for i := range data.acceptanceFactors {
			result.Change = math.Max(result.Change, math.Abs(data.acceptanceFactors[i]-loading.prevAlphas[i]))
			result.Change = math.Max(result.Change, relativeDifference(data.sendingFlows[i], loading.prevSending[i]))
		}
		copy(loading.prevSending, data.sendingFlows)
		loading.logger.V(DEBUG).Info("Loading iteration done", "iteration", result.Iterations, "change", result.Change, "blockingNodes", result.BlockingNodes)
		if result.Iterations > 1 && result.Change < loading.epsilon {
			result.Converged = true
			break
		}
	}
	loadingIterations.Observe(float64(result.Iterations))
	potentiallyBlockingNodes.Set(float64(result.BlockingNodes))
	if !result.Converged {
		loading.logger.V(VERBOSE).Info("Loading did not converge", "iterations", result.Iterations, "change", result.Change)
	}
	return result, nil
}

// detectPotentiallyBlocking flags nodes which may restrict flow: some entry is already restricted, some entry sends more
// than its capacity or total flow which may head towards some exit exceeds its capacity
func (loading *NetworkLoading) detectPotentiallyBlocking() {
	data := loading.data
	for _, node := range loading.net.nodes {
		data.potentiallyBlocking[node.ID] = false
		if node.isCentroid {
			continue
		}
		for _, linkID := range node.incomingLinks {
			sending := data.sendingFlows[linkID]
			if sending <= 0 {
				continue
			}
			if data.acceptanceFactors[linkID] < 1.0 || sending > loading.diagrams.LinkCapacity(loading.net.links[linkID]) {
				data.potentiallyBlocking[node.ID] = true
				break
			}
		}
		if data.potentiallyBlocking[node.ID] {
			continue
		}
		upperBound := make(map[LinkID]float64, len(node.outcomingLinks))
		for _, mvmtID := range node.movements {
			mvmt := loading.net.movements[mvmtID]
			upperBound[mvmt.OutcomingLinkID] += data.sendingFlows[mvmt.IncomingLinkID]
		}
		for exitID, flow := range upperBound {
			if flow > loading.diagrams.LinkCapacity(loading.net.links[exitID]) {
				data.potentiallyBlocking[node.ID] = true
				break
			}
		}
	}
}
