package sltm

// SolutionScheme defines how sending flows and turn flows are maintained during sLTM loading
type SolutionScheme uint16

const (
	// SCHEME_POINT_QUEUE_BASIC updates sending flows while turn flows are propagated, in a single pass tracking every node
	SCHEME_POINT_QUEUE_BASIC = SolutionScheme(iota + 1)
	// SCHEME_POINT_QUEUE_ADVANCED updates sending flows in a separate link pass and tracks turn flows of potentially blocking nodes only
	SCHEME_POINT_QUEUE_ADVANCED
	// SCHEME_PHYSICAL_QUEUE_BASIC is recognised but not supported (spillback)
	SCHEME_PHYSICAL_QUEUE_BASIC
	// SCHEME_PHYSICAL_QUEUE_ADVANCED is recognised but not supported (spillback)
	SCHEME_PHYSICAL_QUEUE_ADVANCED
)

func (iotaIdx SolutionScheme) String() string {
	if iotaIdx < SCHEME_POINT_QUEUE_BASIC || iotaIdx > SCHEME_PHYSICAL_QUEUE_ADVANCED {
		return "undefined"
	}
	return [...]string{"point_queue_basic", "point_queue_advanced", "physical_queue_basic", "physical_queue_advanced"}[iotaIdx-1]
}

// ParseSolutionScheme returns scheme by its short name: basic / advanced
func ParseSolutionScheme(name string) (SolutionScheme, bool) {
	switch name {
	case "basic", "point_queue_basic":
		return SCHEME_POINT_QUEUE_BASIC, true
	case "advanced", "point_queue_advanced":
		return SCHEME_POINT_QUEUE_ADVANCED, true
	case "physical_queue_basic":
		return SCHEME_PHYSICAL_QUEUE_BASIC, true
	case "physical_queue_advanced":
		return SCHEME_PHYSICAL_QUEUE_ADVANCED, true
	default:
		return 0, false
	}
}

// IsSupported returns true for schemes which can be loaded
func (iotaIdx SolutionScheme) IsSupported() bool {
	return iotaIdx == SCHEME_POINT_QUEUE_BASIC || iotaIdx == SCHEME_POINT_QUEUE_ADVANCED
}

// FlowUpdateData is the context of a single loading pass.
//
// Arrays are allocated once per loading and reset before every pass. They are shared by reference with every
// consumer invoked during the pass: consumers never allocate their own copies. Link indexed arrays use LinkID,
// turn indexed arrays use MovementID and node indexed arrays use NodeID.
type FlowUpdateData struct {
	// acceptanceFactors are read by consumers and written by the node model adapter between passes
	acceptanceFactors []float64
	sendingFlows      []float64
	outFlows          []float64
	turnSendingFlows  []float64
	acceptedTurnFlows []float64

	// potentiallyBlocking marks nodes which turn flows have to be tracked
	potentiallyBlocking []bool

	// updateSendingFlows is set when turn consumers are responsible for link sending flows as well
	updateSendingFlows bool
	// trackAllNodes disables potentiallyBlocking predicate
	trackAllNodes bool

	// conservationTolerance is relative tolerance used by consumers to check flow conservation
	conservationTolerance float64
}

func newFlowUpdateData(net *Network, scheme SolutionScheme, trackAllNodes bool) *FlowUpdateData {
	data := &FlowUpdateData{
		acceptanceFactors:     make([]float64, len(net.links)),
		sendingFlows:          make([]float64, len(net.links)),
		outFlows:              make([]float64, len(net.links)),
		turnSendingFlows:      make([]float64, len(net.movements)),
		acceptedTurnFlows:     make([]float64, len(net.movements)),
		potentiallyBlocking:   make([]bool, len(net.nodes)),
		trackAllNodes:         trackAllNodes,
		conservationTolerance: 1e-9,
	}
	if scheme == SCHEME_POINT_QUEUE_BASIC {
		data.updateSendingFlows = true
		data.trackAllNodes = true
	}
	for i := range data.acceptanceFactors {
		data.acceptanceFactors[i] = 1.0
	}
	return data
}

// resetFlows zeroes every flow buffer. Acceptance factors and blocking flags survive between passes.
func (data *FlowUpdateData) resetFlows() {
	for i := range data.sendingFlows {
		data.sendingFlows[i] = 0
		data.outFlows[i] = 0
	}
	data.resetTurnFlows()
}

func (data *FlowUpdateData) resetTurnFlows() {
	for i := range data.turnSendingFlows {
		data.turnSendingFlows[i] = 0
		data.acceptedTurnFlows[i] = 0
	}
}

// isTracked returns true when turn flows through given node have to be accumulated
func (data *FlowUpdateData) isTracked(node NodeID) bool {
	return data.trackAllNodes || data.potentiallyBlocking[node]
}

func (data *FlowUpdateData) AcceptanceFactors() []float64 {
	return data.acceptanceFactors
}

func (data *FlowUpdateData) SendingFlows() []float64 {
	return data.sendingFlows
}

func (data *FlowUpdateData) OutFlows() []float64 {
	return data.outFlows
}

func (data *FlowUpdateData) AcceptedTurnFlows() []float64 {
	return data.acceptedTurnFlows
}

func (data *FlowUpdateData) TurnSendingFlows() []float64 {
	return data.turnSendingFlows
}
