package sltm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

const (
	// DEFAULT_HASH_PRECISION is number of decimals taken into account when diagrams are compared for pooling
	DEFAULT_HASH_PRECISION = 6
)

// FundamentalDiagramBranch is one side of a fundamental diagram: either free-flow or congested.
//
// FlowPcuHour and DensityPcuKm are inverse of each other within the domain of the branch.
// Densities are expressed in pcu/km/lane, flows in pcu/h/lane, speeds in km/h.
type FundamentalDiagramBranch interface {
	// FlowPcuHour returns flow at given density
	FlowPcuHour(densityPcuKm float64) float64
	// DensityPcuKm returns density at given flow
	DensityPcuKm(flowPcuHour float64) float64
	// DerivativeAtDensity returns dq/dk at given density
	DerivativeAtDensity(densityPcuKm float64) float64
	// DerivativeAtFlow returns dq/dk at the density matching given flow
	DerivativeAtFlow(flowPcuHour float64) float64
	// SpeedKmHour returns space mean speed at given density
	SpeedKmHour(densityPcuKm float64) float64
	// SpeedAtZeroFlow is used instead of flow/density when flow is zero
	SpeedAtZeroFlow() float64
	// SpeedAtZeroDensity is used instead of flow/density when density is zero
	SpeedAtZeroDensity() float64
	IsLinear() bool
	String() string

	clone() FundamentalDiagramBranch
	hashRelaxed(digest *xxhash.Digest, precision int)
}

/* Linear branch */

// LinearBranch is a straight line q = w * (k - k0).
//
// Free-flow linear branch has positive characteristic wave speed (free speed) and k0 = 0.
// Congested linear branch has negative characteristic wave speed (backward wave) and k0 = jam density.
type LinearBranch struct {
	characteristicWaveSpeed float64
	densityAtZeroFlow       float64
}

// NewLinearBranch creates linear branch with given characteristic wave speed (km/h) and density at zero flow (pcu/km/lane)
func NewLinearBranch(characteristicWaveSpeed, densityAtZeroFlow float64) *LinearBranch {
	return &LinearBranch{
		characteristicWaveSpeed: characteristicWaveSpeed,
		densityAtZeroFlow:       densityAtZeroFlow,
	}
}

func (branch *LinearBranch) CharacteristicWaveSpeed() float64 {
	return branch.characteristicWaveSpeed
}

func (branch *LinearBranch) DensityAtZeroFlow() float64 {
	return branch.densityAtZeroFlow
}

func (branch *LinearBranch) FlowPcuHour(densityPcuKm float64) float64 {
	return math.Max(0, branch.characteristicWaveSpeed*(densityPcuKm-branch.densityAtZeroFlow))
}

func (branch *LinearBranch) DensityPcuKm(flowPcuHour float64) float64 {
	if branch.characteristicWaveSpeed == 0 {
		return branch.densityAtZeroFlow
	}
	return branch.densityAtZeroFlow + flowPcuHour/branch.characteristicWaveSpeed
}

func (branch *LinearBranch) DerivativeAtDensity(float64) float64 {
	return branch.characteristicWaveSpeed
}

func (branch *LinearBranch) DerivativeAtFlow(float64) float64 {
	return branch.characteristicWaveSpeed
}

func (branch *LinearBranch) SpeedKmHour(densityPcuKm float64) float64 {
	if densityPcuKm <= 0 {
		return branch.SpeedAtZeroDensity()
	}
	flow := branch.FlowPcuHour(densityPcuKm)
	if flow <= 0 {
		return branch.SpeedAtZeroFlow()
	}
	return flow / densityPcuKm
}

// SpeedAtZeroFlow returns free speed for free-flow branch and zero (jam) for congested one
func (branch *LinearBranch) SpeedAtZeroFlow() float64 {
	if branch.densityAtZeroFlow == 0 {
		return branch.characteristicWaveSpeed
	}
	return 0
}

// SpeedAtZeroDensity returns free speed for free-flow branch. Congested branch never reaches zero density, speed is unbounded there.
func (branch *LinearBranch) SpeedAtZeroDensity() float64 {
	if branch.densityAtZeroFlow == 0 {
		return branch.characteristicWaveSpeed
	}
	return math.Inf(1)
}

func (branch *LinearBranch) IsLinear() bool {
	return true
}

func (branch *LinearBranch) String() string {
	return fmt.Sprintf("linear(w=%f, k0=%f)", branch.characteristicWaveSpeed, branch.densityAtZeroFlow)
}

func (branch *LinearBranch) clone() FundamentalDiagramBranch {
	cpy := *branch
	return &cpy
}

func (branch *LinearBranch) hashRelaxed(digest *xxhash.Digest, precision int) {
	_, _ = digest.WriteString("linear")
	writeRelaxed(digest, branch.characteristicWaveSpeed, precision)
	writeRelaxed(digest, branch.densityAtZeroFlow, precision)
}

/* Quadratic branch */

// QuadraticBranch is free-flow branch with linearly decreasing speed: v(k) = v_f - alpha*k, hence q(k) = v_f*k - alpha*k^2.
//
// alpha = (criticalSpeed / capacity) * (freeSpeed - criticalSpeed) so the branch passes through the capacity point
// (capacity/criticalSpeed, capacity) where its speed equals the critical speed.
// Valid domain is [0, capacity/criticalSpeed]. criticalSpeed has to lie in [freeSpeed/2, freeSpeed],
// otherwise the parabola would peak above capacity before the capacity point.
//
// The diagram is continuous at capacity but not smooth: the branch slope there is 2*criticalSpeed - freeSpeed,
// which is non-negative on the valid domain, while the congested branch slope is the negative backward wave speed.
type QuadraticBranch struct {
	freeSpeed     float64
	criticalSpeed float64
	capacity      float64
	alpha         float64
}

// NewQuadraticBranch creates quadratic free-flow branch
func NewQuadraticBranch(freeSpeed, criticalSpeed, capacity float64) (*QuadraticBranch, error) {
	if freeSpeed <= 0 || capacity <= 0 {
		return nil, errors.Wrapf(ErrInvalidDiagram, "free speed %f and capacity %f must be positive", freeSpeed, capacity)
	}
	if criticalSpeed > freeSpeed || criticalSpeed < freeSpeed/2.0 {
		return nil, errors.Wrapf(ErrInvalidDiagram, "critical speed %f must be within [%f, %f]", criticalSpeed, freeSpeed/2.0, freeSpeed)
	}
	return &QuadraticBranch{
		freeSpeed:     freeSpeed,
		criticalSpeed: criticalSpeed,
		capacity:      capacity,
		alpha:         (criticalSpeed / capacity) * (freeSpeed - criticalSpeed),
	}, nil
}

func (branch *QuadraticBranch) Alpha() float64 {
	return branch.alpha
}

func (branch *QuadraticBranch) CriticalSpeed() float64 {
	return branch.criticalSpeed
}

// CapacityDensity returns density at which the branch reaches capacity
func (branch *QuadraticBranch) CapacityDensity() float64 {
	return branch.capacity / branch.criticalSpeed
}

func (branch *QuadraticBranch) FlowPcuHour(densityPcuKm float64) float64 {
	return math.Max(0, branch.freeSpeed*densityPcuKm-branch.alpha*densityPcuKm*densityPcuKm)
}

// DensityPcuKm picks the smaller root of alpha*k^2 - v_f*k + q = 0. Flows above the top of the parabola are clamped to it.
func (branch *QuadraticBranch) DensityPcuKm(flowPcuHour float64) float64 {
	if flowPcuHour <= 0 {
		return 0
	}
	if branch.alpha == 0 {
		return flowPcuHour / branch.freeSpeed
	}
	discriminant := branch.freeSpeed*branch.freeSpeed - 4.0*branch.alpha*flowPcuHour
	if discriminant < 0 {
		discriminant = 0
	}
	// 2q / (v_f + sqrt(D)) is the smaller root without cancellation at low flows
	return 2.0 * flowPcuHour / (branch.freeSpeed + math.Sqrt(discriminant))
}

func (branch *QuadraticBranch) DerivativeAtDensity(densityPcuKm float64) float64 {
	return branch.freeSpeed - 2.0*branch.alpha*densityPcuKm
}

func (branch *QuadraticBranch) DerivativeAtFlow(flowPcuHour float64) float64 {
	return branch.DerivativeAtDensity(branch.DensityPcuKm(flowPcuHour))
}

func (branch *QuadraticBranch) SpeedKmHour(densityPcuKm float64) float64 {
	if densityPcuKm <= 0 {
		return branch.SpeedAtZeroDensity()
	}
	return math.Max(0, branch.freeSpeed-branch.alpha*densityPcuKm)
}

func (branch *QuadraticBranch) SpeedAtZeroFlow() float64 {
	return branch.freeSpeed
}

func (branch *QuadraticBranch) SpeedAtZeroDensity() float64 {
	return branch.freeSpeed
}

func (branch *QuadraticBranch) IsLinear() bool {
	return branch.alpha == 0
}

func (branch *QuadraticBranch) String() string {
	return fmt.Sprintf("quadratic(v_f=%f, v_c=%f, C=%f, alpha=%f)", branch.freeSpeed, branch.criticalSpeed, branch.capacity, branch.alpha)
}

func (branch *QuadraticBranch) clone() FundamentalDiagramBranch {
	cpy := *branch
	return &cpy
}

func (branch *QuadraticBranch) hashRelaxed(digest *xxhash.Digest, precision int) {
	_, _ = digest.WriteString("quadratic")
	writeRelaxed(digest, branch.freeSpeed, precision)
	writeRelaxed(digest, branch.criticalSpeed, precision)
	writeRelaxed(digest, branch.capacity, precision)
}

// writeRelaxed writes value rounded to given number of decimals
func writeRelaxed(digest *xxhash.Digest, value float64, precision int) {
	scale := math.Pow(10, float64(precision))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(int64(math.Round(value*scale))))
	_, _ = digest.Write(buf[:])
}
