package sltm

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestSolveTampere(t *testing.T) {
	inf := math.Inf(1)
	cases := []struct {
		name             string
		input            NodeModelInput
		expectedAlphas   []float64
		expectedAccepted [][]float64
	}{
		{
			name: "single bottleneck exit",
			input: NodeModelInput{
				TurnSendingFlows:   [][]float64{{2000}},
				EntryCapacities:    []float64{5400},
				ExitReceivingFlows: []float64{500},
			},
			expectedAlphas:   []float64{0.25},
			expectedAccepted: [][]float64{{500}},
		},
		{
			name: "two entries competing for single exit",
			input: NodeModelInput{
				TurnSendingFlows:   [][]float64{{800}, {800}},
				EntryCapacities:    []float64{1000, 1000},
				ExitReceivingFlows: []float64{1000},
			},
			expectedAlphas:   []float64{0.625, 0.625},
			expectedAccepted: [][]float64{{500}, {500}},
		},
		{
			name: "demand constrained entry leaves supply to another one",
			input: NodeModelInput{
				TurnSendingFlows:   [][]float64{{400}, {1000}},
				EntryCapacities:    []float64{2000, 1000},
				ExitReceivingFlows: []float64{1000},
			},
			expectedAlphas:   []float64{1, 0.6},
			expectedAccepted: [][]float64{{400}, {600}},
		},
		{
			name: "restricted exit holds back flow towards unrestricted one",
			input: NodeModelInput{
				TurnSendingFlows:   [][]float64{{500, 500}},
				EntryCapacities:    []float64{2000},
				ExitReceivingFlows: []float64{200, inf},
			},
			expectedAlphas:   []float64{0.4},
			expectedAccepted: [][]float64{{200, 200}},
		},
		{
			name: "uncongested node",
			input: NodeModelInput{
				TurnSendingFlows:   [][]float64{{300, 100}, {0, 0}},
				EntryCapacities:    []float64{inf, 1000},
				ExitReceivingFlows: []float64{inf, 1000},
			},
			expectedAlphas:   []float64{1, 1},
			expectedAccepted: [][]float64{{300, 100}, {0, 0}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alphas, accepted := SolveTampere(tc.input)
			assert.InDeltaSlice(t, tc.expectedAlphas, alphas, 1e-9)
			for i := range tc.expectedAccepted {
				assert.InDeltaSlice(t, tc.expectedAccepted[i], accepted[i], 1e-9)
			}
			// Exits never receive more than their supply
			for j, supply := range tc.input.ExitReceivingFlows {
				total := 0.0
				for i := range accepted {
					total += accepted[i][j]
				}
				assert.LessOrEqual(t, total, supply+1e-9)
			}
		})
	}
}

func TestNodeModelResultTotals(t *testing.T) {
	node := newNode(0, orb.Point{}, true)
	node.incomingLinks = []LinkID{1, 2}
	centroid := newCentroidNodeModelResult(node, []float64{100, 50})
	assert.Equal(t, NODE_MODEL_RESULT_CENTROID, centroid.Kind)
	assert.Equal(t, []float64{1, 1}, centroid.AcceptanceFactors)
	assert.InDelta(t, 150.0, centroid.TotalAcceptedOutflow(), 1e-12)
	assert.InDelta(t, 150.0, centroid.TotalAcceptedTurnFlow(), 1e-12)

	turnBased := &NodeModelResult{
		Kind:              NODE_MODEL_RESULT_TURN_BASED,
		SendingFlows:      []float64{1000},
		AcceptanceFactors: []float64{0.4},
		AcceptedTurnFlows: [][]float64{{200, 200}},
	}
	assert.InDelta(t, 400.0, turnBased.AcceptedOutflow(0), 1e-12)
	assert.InDelta(t, turnBased.TotalAcceptedOutflow(), turnBased.TotalAcceptedTurnFlow(), 1e-12)
	assert.Equal(t, "turn_based", turnBased.Kind.String())
}
