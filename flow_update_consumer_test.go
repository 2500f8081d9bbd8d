package sltm

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckEntryConservation(t *testing.T) {
	c := newBottleneckCorridor(t)
	logger, sink := newCapturingLogger(0)
	component := "test_consumer"
	before := testutil.ToFloat64(conservationViolations.WithLabelValues(component))

	checkEntryConservation(logger, c.net.Link(c.links[0]), 1e-9, 1000, 1000+1e-8, component)
	assert.Empty(t, sink.errors())

	checkEntryConservation(logger, c.net.Link(c.links[0]), 1e-9, 1000, 900, component)
	assert.Len(t, sink.errors(), 1)
	assert.Equal(t, before+1, testutil.ToFloat64(conservationViolations.WithLabelValues(component)))

	// Connectors are never checked
	checkEntryConservation(logger, c.net.Link(originConnector(c.net, c.origin)), 1e-9, 1000, 0, component)
	assert.Len(t, sink.errors(), 1)
}

func TestTurnFlowTracker(t *testing.T) {
	c := newBottleneckCorridor(t)
	logger, sink := newCapturingLogger(0)
	data := newFlowUpdateData(c.net, SCHEME_POINT_QUEUE_ADVANCED, false)
	tracker := turnFlowTracker{net: c.net, logger: logger}

	// Untracked node: nothing is accumulated
	tracker.turn(data, c.nodes[1], c.links[0], c.links[1], 100, 80)
	assert.Equal(t, make([]float64, c.net.MovementsNum()), data.TurnSendingFlows())

	data.potentiallyBlocking[c.nodes[1]] = true
	tracker.turn(data, c.nodes[1], c.links[0], c.links[1], 100, 80)
	mvmt, ok := c.net.MovementBetween(c.links[0], c.links[1])
	require.True(t, ok)
	assert.Equal(t, 100.0, data.TurnSendingFlows()[mvmt])
	assert.Equal(t, 80.0, data.AcceptedTurnFlows()[mvmt])
	// Advanced scheme leaves sending flows to link consumer
	assert.Equal(t, 0.0, data.SendingFlows()[c.links[1]])

	// Links which are not adjacent
	tracker.turn(data, c.nodes[1], c.links[0], c.links[2], 100, 80)
	assert.Len(t, sink.errors(), 1)

	basic := newFlowUpdateData(c.net, SCHEME_POINT_QUEUE_BASIC, false)
	assert.True(t, basic.isTracked(c.nodes[0]))
	tracker.origin(basic, c.links[0], 10)
	tracker.turn(basic, c.nodes[1], c.links[0], c.links[1], 10, 5)
	assert.Equal(t, 10.0, basic.SendingFlows()[c.links[0]])
	assert.Equal(t, 5.0, basic.SendingFlows()[c.links[1]])
	// Outflows are never written by turn consumers, loading derives them from sending flows
	tracker.final(basic, c.links[2], 5, 5)
	assert.Equal(t, make([]float64, c.net.LinksNum()), basic.OutFlows())
}

func TestLinkFlowTracker(t *testing.T) {
	c := newBottleneckCorridor(t)
	data := newFlowUpdateData(c.net, SCHEME_POINT_QUEUE_ADVANCED, false)
	tracker := linkFlowTracker{}
	tracker.origin(data, c.links[0], 100)
	tracker.turn(data, c.nodes[1], c.links[0], c.links[1], 100, 40)
	tracker.final(data, c.links[1], 40, 40)
	assert.Equal(t, 100.0, data.SendingFlows()[c.links[0]])
	assert.Equal(t, 40.0, data.OutFlows()[c.links[0]])
	assert.Equal(t, 40.0, data.SendingFlows()[c.links[1]])
	assert.Equal(t, 40.0, data.OutFlows()[c.links[1]])

	data.resetFlows()
	assert.Equal(t, 0.0, data.SendingFlows()[c.links[0]])
	assert.Equal(t, 1.0, data.AcceptanceFactors()[c.links[0]])
}
