package sltm

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

type FundamentalDiagramKind uint16

const (
	// FD_NEWELL is triangular diagram: linear free-flow branch and linear congested branch
	FD_NEWELL = FundamentalDiagramKind(iota + 1)
	// FD_QUADRATIC_LINEAR is quadratic free-flow branch and linear congested branch
	FD_QUADRATIC_LINEAR
)

func (iotaIdx FundamentalDiagramKind) String() string {
	return [...]string{"newell", "quadratic_linear"}[iotaIdx-1]
}

// FundamentalDiagram is an immutable pair of branches meeting at the capacity point.
// All quantities are per lane. Changing capacity, max density or max speed produces new diagram.
type FundamentalDiagram struct {
	freeFlow      FundamentalDiagramBranch
	congested     *LinearBranch
	kind          FundamentalDiagramKind
	freeSpeed     float64
	criticalSpeed float64
	capacity      float64
	maxDensity    float64
}

// NewNewellFundamentalDiagram creates triangular diagram from free speed (km/h), capacity (pcu/h/lane) and jam density (pcu/km/lane)
func NewNewellFundamentalDiagram(freeSpeed, capacity, maxDensity float64) (*FundamentalDiagram, error) {
	fd := &FundamentalDiagram{
		kind:          FD_NEWELL,
		freeSpeed:     freeSpeed,
		criticalSpeed: freeSpeed,
		capacity:      capacity,
		maxDensity:    maxDensity,
	}
	if err := fd.build(); err != nil {
		return nil, err
	}
	return fd, nil
}

// NewQuadraticLinearFundamentalDiagram creates diagram with quadratic free-flow branch reaching capacity at critical speed and linear congested branch
func NewQuadraticLinearFundamentalDiagram(freeSpeed, criticalSpeed, capacity, maxDensity float64) (*FundamentalDiagram, error) {
	fd := &FundamentalDiagram{
		kind:          FD_QUADRATIC_LINEAR,
		freeSpeed:     freeSpeed,
		criticalSpeed: criticalSpeed,
		capacity:      capacity,
		maxDensity:    maxDensity,
	}
	if err := fd.build(); err != nil {
		return nil, err
	}
	return fd, nil
}

// build (re)creates both branches from defining scalars. Congested wave speed is derived from capacity point and jam density.
func (fd *FundamentalDiagram) build() error {
	if fd.freeSpeed <= 0 || fd.capacity <= 0 || fd.maxDensity <= 0 {
		return errors.Wrapf(ErrInvalidDiagram, "free speed %f, capacity %f and max density %f must be positive", fd.freeSpeed, fd.capacity, fd.maxDensity)
	}
	switch fd.kind {
	case FD_NEWELL:
		fd.criticalSpeed = fd.freeSpeed
		fd.freeFlow = NewLinearBranch(fd.freeSpeed, 0)
	case FD_QUADRATIC_LINEAR:
		branch, err := NewQuadraticBranch(fd.freeSpeed, fd.criticalSpeed, fd.capacity)
		if err != nil {
			return err
		}
		fd.freeFlow = branch
	default:
		panic("Should not happen!")
	}
	criticalDensity := fd.capacity / fd.criticalSpeed
	if criticalDensity >= fd.maxDensity {
		return errors.Wrapf(ErrInvalidDiagram, "critical density %f must be below max density %f", criticalDensity, fd.maxDensity)
	}
	backwardWaveSpeed := fd.capacity / (fd.maxDensity - criticalDensity)
	fd.congested = NewLinearBranch(-backwardWaveSpeed, fd.maxDensity)
	return nil
}

func (fd *FundamentalDiagram) Kind() FundamentalDiagramKind {
	return fd.kind
}

func (fd *FundamentalDiagram) FreeFlowBranch() FundamentalDiagramBranch {
	return fd.freeFlow
}

func (fd *FundamentalDiagram) CongestedBranch() FundamentalDiagramBranch {
	return fd.congested
}

// Capacity returns capacity in pcu/h/lane
func (fd *FundamentalDiagram) Capacity() float64 {
	return fd.capacity
}

// MaxDensity returns jam density in pcu/km/lane
func (fd *FundamentalDiagram) MaxDensity() float64 {
	return fd.maxDensity
}

// FreeSpeed returns speed at zero density in km/h
func (fd *FundamentalDiagram) FreeSpeed() float64 {
	return fd.freeSpeed
}

// CriticalSpeed returns speed at capacity in km/h
func (fd *FundamentalDiagram) CriticalSpeed() float64 {
	return fd.criticalSpeed
}

// CriticalDensity returns density at capacity in pcu/km/lane
func (fd *FundamentalDiagram) CriticalDensity() float64 {
	return fd.capacity / fd.criticalSpeed
}

// BackwardWaveSpeed returns magnitude of congested branch wave speed in km/h
func (fd *FundamentalDiagram) BackwardWaveSpeed() float64 {
	return -fd.congested.characteristicWaveSpeed
}

// Clone returns deep copy
func (fd *FundamentalDiagram) Clone() *FundamentalDiagram {
	cpy := *fd
	cpy.freeFlow = fd.freeFlow.clone()
	cpy.congested = fd.congested.clone().(*LinearBranch)
	return &cpy
}

// WithCapacity returns copy of the diagram with another capacity. Congested wave speed is recomputed.
func (fd *FundamentalDiagram) WithCapacity(capacity float64) (*FundamentalDiagram, error) {
	cpy := fd.Clone()
	cpy.capacity = capacity
	if err := cpy.build(); err != nil {
		return nil, errors.Wrap(err, "Can't set capacity")
	}
	return cpy, nil
}

// WithMaxDensity returns copy of the diagram with another jam density. Congested wave speed is recomputed.
func (fd *FundamentalDiagram) WithMaxDensity(maxDensity float64) (*FundamentalDiagram, error) {
	cpy := fd.Clone()
	cpy.maxDensity = maxDensity
	if err := cpy.build(); err != nil {
		return nil, errors.Wrap(err, "Can't set max density")
	}
	return cpy, nil
}

// WithMaxSpeed returns copy of the diagram with another free speed.
// Critical speed of quadratic diagram is lowered to new free speed when needed.
func (fd *FundamentalDiagram) WithMaxSpeed(maxSpeed float64) (*FundamentalDiagram, error) {
	cpy := fd.Clone()
	cpy.freeSpeed = maxSpeed
	if cpy.kind == FD_QUADRATIC_LINEAR && cpy.criticalSpeed > maxSpeed {
		cpy.criticalSpeed = maxSpeed
	}
	if err := cpy.build(); err != nil {
		return nil, errors.Wrap(err, "Can't set max speed")
	}
	return cpy, nil
}

// relaxedHash returns hash of the defining scalars rounded to given number of decimals.
// It is meant for pooling only.
func (fd *FundamentalDiagram) relaxedHash(precision int) uint64 {
	digest := xxhash.New()
	fd.freeFlow.hashRelaxed(digest, precision)
	fd.congested.hashRelaxed(digest, precision)
	return digest.Sum64()
}

// relaxedEqual compares defining scalars rounded to given number of decimals
func (fd *FundamentalDiagram) relaxedEqual(other *FundamentalDiagram, precision int) bool {
	if fd.kind != other.kind {
		return false
	}
	return roundTo(fd.freeSpeed, precision) == roundTo(other.freeSpeed, precision) &&
		roundTo(fd.criticalSpeed, precision) == roundTo(other.criticalSpeed, precision) &&
		roundTo(fd.capacity, precision) == roundTo(other.capacity, precision) &&
		roundTo(fd.maxDensity, precision) == roundTo(other.maxDensity, precision)
}

func (fd *FundamentalDiagram) String() string {
	return fmt.Sprintf("%s: free-flow %s, congested %s", fd.kind, fd.freeFlow, fd.congested)
}
