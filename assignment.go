package sltm

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
)

const (
	DEFAULT_ASSIGNMENT_EPSILON        = 1e-9
	DEFAULT_ASSIGNMENT_MAX_ITERATIONS = 100
)

// FlowContainerKind selects how route flows are kept between iterations
type FlowContainerKind uint16

const (
	CONTAINER_BUSH = FlowContainerKind(iota + 1)
	CONTAINER_PATH
)

func (iotaIdx FlowContainerKind) String() string {
	switch iotaIdx {
	case CONTAINER_BUSH:
		return "bush"
	case CONTAINER_PATH:
		return "path"
	default:
		return "undefined"
	}
}

// Assignment is static traffic assignment with sLTM network loading
type Assignment struct {
	net      *Network
	demand   *Demand
	diagrams *FundamentalDiagramComponent
	loading  *NetworkLoading
	costs    *LinkCostComputer
	stepSize StepSize
	logger   logr.Logger

	epsilon              float64
	maxIterations        int
	scheme               SolutionScheme
	container            FlowContainerKind
	trackAllNodes        bool
	loadingMaxIterations int

	bushes    *Bushes
	paths     *OdPathSets
	linkCosts []float64

	iterations int
	gap        float64
	converged  bool
}

type AssignmentOption func(*Assignment)

// WithEpsilon sets relative duality gap which stops equilibration
func WithEpsilon(epsilon float64) AssignmentOption {
	return func(assignment *Assignment) {
		assignment.epsilon = epsilon
	}
}

func WithMaxIterations(maxIterations int) AssignmentOption {
	return func(assignment *Assignment) {
		assignment.maxIterations = maxIterations
	}
}

func WithSolutionScheme(scheme SolutionScheme) AssignmentOption {
	return func(assignment *Assignment) {
		assignment.scheme = scheme
	}
}

func WithFlowContainer(container FlowContainerKind) AssignmentOption {
	return func(assignment *Assignment) {
		assignment.container = container
	}
}

func WithStepSize(stepSize StepSize) AssignmentOption {
	return func(assignment *Assignment) {
		assignment.stepSize = stepSize
	}
}

func WithLogger(logger logr.Logger) AssignmentOption {
	return func(assignment *Assignment) {
		assignment.logger = logger
	}
}

// WithFundamentalDiagrams sets already initialized fundamental diagrams. By default Newell diagrams of link types are used.
func WithFundamentalDiagrams(diagrams *FundamentalDiagramComponent) AssignmentOption {
	return func(assignment *Assignment) {
		assignment.diagrams = diagrams
	}
}

// WithTrackAllNodes makes loading solve node model of every node instead of potentially blocking ones
func WithTrackAllNodes(trackAll bool) AssignmentOption {
	return func(assignment *Assignment) {
		assignment.trackAllNodes = trackAll
	}
}

func WithLoadingMaxIterations(maxIterations int) AssignmentOption {
	return func(assignment *Assignment) {
		assignment.loadingMaxIterations = maxIterations
	}
}

// NewAssignment validates configuration and prepares assignment. Network is prepared if it was not.
func NewAssignment(net *Network, demand *Demand, options ...AssignmentOption) (*Assignment, error) {
	if net == nil {
		return nil, ErrNetworkMissing
	}
	if demand == nil {
		return nil, ErrDemandMissing
	}
	assignment := &Assignment{
		net:                  net,
		demand:               demand,
		stepSize:             MSAStepSize{},
		logger:               logr.Discard(),
		epsilon:              DEFAULT_ASSIGNMENT_EPSILON,
		maxIterations:        DEFAULT_ASSIGNMENT_MAX_ITERATIONS,
		scheme:               SCHEME_POINT_QUEUE_ADVANCED,
		container:            CONTAINER_BUSH,
		loadingMaxIterations: DEFAULT_LOADING_MAX_ITERATIONS,
	}
	for _, option := range options {
		option(assignment)
	}
	if err := net.Prepare(); err != nil {
		return nil, errors.Wrap(err, "Can't prepare network")
	}
	if err := demand.validate(net); err != nil {
		return nil, errors.Wrap(err, "Bad demand")
	}
	if !assignment.scheme.IsSupported() {
		return nil, errors.Wrapf(ErrUnsupportedScheme, "Scheme '%s'", assignment.scheme)
	}
	if assignment.container != CONTAINER_BUSH && assignment.container != CONTAINER_PATH {
		return nil, errors.Wrapf(ErrInvalidConfigValue, "Flow container %d", assignment.container)
	}
	if assignment.epsilon <= 0 || assignment.maxIterations <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfigValue, "Epsilon %f, max iterations %d", assignment.epsilon, assignment.maxIterations)
	}
	if assignment.stepSize == nil {
		return nil, errors.Wrap(ErrInvalidStepSize, "Step size is missing")
	}
	if assignment.diagrams == nil {
		assignment.diagrams = NewFundamentalDiagramComponent(WithDiagramLogger(assignment.logger))
		if err := assignment.diagrams.Initialize(net); err != nil {
			return nil, errors.Wrap(err, "Can't initialize fundamental diagrams")
		}
	}
	for _, link := range net.links {
		if _, ok := assignment.diagrams.Get(link); !ok {
			assignment.logger.Info("[WARNING] No fundamental diagram for link, it is treated as unconstrained", "link", link.ID, "linkType", link.linkType.String())
		}
	}
	loading, err := NewNetworkLoading(net, assignment.diagrams,
		WithLoadingScheme(assignment.scheme),
		WithLoadingIterations(assignment.loadingMaxIterations),
		WithLoadingTrackAllNodes(assignment.trackAllNodes),
		WithLoadingLogger(assignment.logger),
	)
	if err != nil {
		return nil, errors.Wrap(err, "Can't prepare network loading")
	}
	assignment.loading = loading
	assignment.costs = NewLinkCostComputer(net, assignment.diagrams)
	assignment.linkCosts = assignment.costs.FreeFlowCosts()
	return assignment, nil
}

func (assignment *Assignment) String() string {
	return fmt.Sprintf(`
Assignment:
	epsilon: %e
	max iterations: %d
	scheme: %s
	container: %s
	step size: %v
	track all nodes: %t
	loading max iterations: %d
	%s
	`,
		assignment.epsilon,
		assignment.maxIterations,
		assignment.scheme,
		assignment.container,
		assignment.stepSize,
		assignment.trackAllNodes,
		assignment.loadingMaxIterations,
		assignment.diagrams,
	)
}

// Execute runs equilibration until relative duality gap drops below epsilon (with converged loading) or iterations are exhausted.
// It can be cancelled between iterations.
func (assignment *Assignment) Execute(ctx context.Context) error {
	st := time.Now()
	if err := assignment.initialize(); err != nil {
		return errors.Wrap(err, "Can't build initial solution")
	}
	containers := assignment.flowContainers()
	for assignment.iterations = 1; assignment.iterations <= assignment.maxIterations; assignment.iterations++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "Assignment cancelled at iteration %d", assignment.iterations)
		}
		loadingResult, err := assignment.loading.Load(ctx, containers)
		if err != nil {
			return errors.Wrapf(err, "Can't load network at iteration %d", assignment.iterations)
		}
		data := assignment.loading.Data()
		assignment.linkCosts = assignment.costs.Costs(data.sendingFlows, data.acceptanceFactors)
		router, err := NewRouter(assignment.net, assignment.linkCosts)
		if err != nil {
			return errors.Wrapf(err, "Can't build router at iteration %d", assignment.iterations)
		}
		shortest, gap, err := assignment.evaluateGap(router)
		if err != nil {
			return errors.Wrapf(err, "Can't evaluate gap at iteration %d", assignment.iterations)
		}
		assignment.gap = gap.Relative()
		assignmentIterations.Inc()
		assignmentGap.Set(assignment.gap)
		assignment.logger.V(VERBOSE).Info("Iteration done", "iteration", assignment.iterations, "gap", assignment.gap, "loadingIterations", loadingResult.Iterations, "loadingConverged", loadingResult.Converged)
		if assignment.gap < assignment.epsilon && loadingResult.Converged {
			assignment.converged = true
			break
		}
		if assignment.iterations == assignment.maxIterations {
			break
		}
		if err := assignment.shift(shortest, assignment.stepSize.Lambda(assignment.iterations)); err != nil {
			return errors.Wrapf(err, "Can't update flows at iteration %d", assignment.iterations)
		}
	}
	assignment.logger.Info("Assignment done", "iterations", assignment.iterations, "gap", assignment.gap, "converged", assignment.converged, "elapsed", time.Since(st).String())
	return nil
}

func (assignment *Assignment) flowContainers() FlowContainers {
	if assignment.container == CONTAINER_PATH {
		return assignment.paths
	}
	return assignment.bushes
}

// initialize assigns whole demand onto free flow shortest paths
func (assignment *Assignment) initialize() error {
	assignment.converged = false
	assignment.gap = 0
	assignment.bushes = NewBushes(assignment.net)
	assignment.paths = NewOdPathSets(assignment.net, assignment.demand)
	assignment.linkCosts = assignment.costs.FreeFlowCosts()
	router, err := NewRouter(assignment.net, assignment.linkCosts)
	if err != nil {
		return err
	}
	for _, origin := range assignment.demand.Origins() {
		for _, destination := range assignment.demand.Destinations(origin) {
			path, _, err := router.ShortestPath(origin, destination)
			if err != nil {
				return err
			}
			switch assignment.container {
			case CONTAINER_BUSH:
				bush, err := assignment.bushes.GetOrCreate(origin, WithBushLogger(assignment.logger))
				if err != nil {
					return err
				}
				if err := bush.AddPathFlow(destination, path, assignment.demand.Get(origin, destination)); err != nil {
					return err
				}
			case CONTAINER_PATH:
				if err := assignment.paths.Add(origin, destination, path, 1.0); err != nil {
					return err
				}
			default:
				panic("Should not happen!")
			}
		}
	}
	return nil
}

// evaluateGap finds shortest paths for every OD pair and compares experienced travel time with the shortest one
func (assignment *Assignment) evaluateGap(router *Router) (map[odPair]Path, GapResult, error) {
	gap := GapResult{}
	shortest := make(map[odPair]Path)
	for _, origin := range assignment.demand.Origins() {
		for _, destination := range assignment.demand.Destinations(origin) {
			path, cost, err := router.ShortestPath(origin, destination)
			if err != nil {
				return nil, gap, err
			}
			shortest[odPair{origin: origin, destination: destination}] = path
			gap.Shortest += assignment.demand.Get(origin, destination) * cost
			switch assignment.container {
			case CONTAINER_BUSH:
				if bush, ok := assignment.bushes.Get(origin); ok {
					gap.Experienced += bushExperiencedCost(bush, destination, assignment.linkCosts)
				}
			case CONTAINER_PATH:
				gap.Experienced += pathsExperiencedCost(assignment.paths, origin, destination, assignment.linkCosts)
			default:
				panic("Should not happen!")
			}
		}
	}
	return shortest, gap, nil
}

// shift moves lambda share of every OD flow onto its current shortest path
func (assignment *Assignment) shift(shortest map[odPair]Path, lambda float64) error {
	for _, origin := range assignment.demand.Origins() {
		for _, destination := range assignment.demand.Destinations(origin) {
			path := shortest[odPair{origin: origin, destination: destination}]
			switch assignment.container {
			case CONTAINER_BUSH:
				bush, ok := assignment.bushes.Get(origin)
				if !ok {
					return errors.Wrapf(ErrDestinationNotInBush, "No bush for origin %d", origin)
				}
				err := bush.ShiftDestinationFlow(destination, path, lambda)
				if errors.Is(err, ErrBushCycle) {
					assignment.logger.V(DEBUG).Info("Shortest path would make bush cyclic, flow is kept", "origin", origin, "destination", destination, "path", path.String())
					continue
				}
				if err != nil {
					return err
				}
			case CONTAINER_PATH:
				if err := assignment.paths.Add(origin, destination, path, lambda); err != nil {
					return err
				}
			default:
				panic("Should not happen!")
			}
		}
	}
	return nil
}

func (assignment *Assignment) Network() *Network {
	return assignment.net
}

// SendingFlows returns sending flow (pcu/h) of every link. Must be treated as read-only.
func (assignment *Assignment) SendingFlows() []float64 {
	return assignment.loading.data.sendingFlows
}

// OutFlows returns outflow (pcu/h) of every link. Must be treated as read-only.
func (assignment *Assignment) OutFlows() []float64 {
	return assignment.loading.data.outFlows
}

// AcceptanceFactors returns flow acceptance factor of every link. Must be treated as read-only.
func (assignment *Assignment) AcceptanceFactors() []float64 {
	return assignment.loading.data.acceptanceFactors
}

// AcceptedTurnFlows returns accepted flow (pcu/h) of every movement at tracked nodes. Must be treated as read-only.
func (assignment *Assignment) AcceptedTurnFlows() []float64 {
	return assignment.loading.data.acceptedTurnFlows
}

// LinkCosts returns travel time (hours) of every link after the latest iteration
func (assignment *Assignment) LinkCosts() []float64 {
	return assignment.linkCosts
}

func (assignment *Assignment) Bushes() *Bushes {
	return assignment.bushes
}

func (assignment *Assignment) PathSets() *OdPathSets {
	return assignment.paths
}

func (assignment *Assignment) FundamentalDiagrams() *FundamentalDiagramComponent {
	return assignment.diagrams
}

// Gap returns relative duality gap of the latest iteration
func (assignment *Assignment) Gap() float64 {
	return assignment.gap
}

func (assignment *Assignment) Iterations() int {
	return assignment.iterations
}

func (assignment *Assignment) Converged() bool {
	return assignment.converged
}
