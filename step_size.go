package sltm

import (
	"fmt"
)

// StepSize provides smoothing weight of the new solution for given iteration (starting from one)
type StepSize interface {
	Lambda(iteration int) float64
}

// MSAStepSize is method of successive averages: 1/(k+1)
type MSAStepSize struct{}

func (MSAStepSize) Lambda(iteration int) float64 {
	return 1.0 / float64(iteration+1)
}

func (MSAStepSize) String() string {
	return "msa"
}

// FixedStepSize applies constant weight on every iteration
type FixedStepSize float64

func (step FixedStepSize) Lambda(int) float64 {
	return float64(step)
}

func (step FixedStepSize) String() string {
	return fmt.Sprintf("fixed(%f)", float64(step))
}
