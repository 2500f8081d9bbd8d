package sltm

import (
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
)

// FundamentalDiagramComponent maps link segments (by default via their link type) to fundamental diagrams.
//
// Diagrams are pooled: functionally identical diagrams (compared at fixed decimal precision) are shared,
// so the diagram returned by Register may be a different instance than the one passed in.
// Pooled diagrams are never mutated; setters clone, change and re-register.
type FundamentalDiagramComponent struct {
	byLinkType         map[LinkType]*FundamentalDiagram
	byLink             map[LinkID]*FundamentalDiagram
	pool               map[uint64][]*FundamentalDiagram
	kind               FundamentalDiagramKind
	criticalSpeedRatio float64
	precision          int
	logger             logr.Logger
}

type FundamentalDiagramOption func(*FundamentalDiagramComponent)

// WithDiagramKind selects which kind of diagram is created by Initialize
func WithDiagramKind(kind FundamentalDiagramKind) FundamentalDiagramOption {
	return func(component *FundamentalDiagramComponent) {
		component.kind = kind
	}
}

// WithCriticalSpeedRatio sets critical speed of quadratic diagrams as fraction of free speed. Should be within [0.5, 1].
func WithCriticalSpeedRatio(ratio float64) FundamentalDiagramOption {
	return func(component *FundamentalDiagramComponent) {
		component.criticalSpeedRatio = ratio
	}
}

// WithHashPrecision sets number of decimals used to detect identical diagrams
func WithHashPrecision(precision int) FundamentalDiagramOption {
	return func(component *FundamentalDiagramComponent) {
		component.precision = precision
	}
}

func WithDiagramLogger(logger logr.Logger) FundamentalDiagramOption {
	return func(component *FundamentalDiagramComponent) {
		component.logger = logger
	}
}

func NewFundamentalDiagramComponent(options ...FundamentalDiagramOption) *FundamentalDiagramComponent {
	component := &FundamentalDiagramComponent{
		byLinkType:         make(map[LinkType]*FundamentalDiagram),
		byLink:             make(map[LinkID]*FundamentalDiagram),
		pool:               make(map[uint64][]*FundamentalDiagram),
		kind:               FD_NEWELL,
		criticalSpeedRatio: 0.75,
		precision:          DEFAULT_HASH_PRECISION,
		logger:             logr.Discard(),
	}
	for _, option := range options {
		option(component)
	}
	return component
}

func (component *FundamentalDiagramComponent) String() string {
	return fmt.Sprintf("fundamental diagrams: kind '%s', link types %d, link overrides %d, pooled %d", component.kind, len(component.byLinkType), len(component.byLink), component.PoolSize())
}

// Initialize registers diagram for every link type of the network and then registers per-link diagrams
// for links which physical speed limit is stricter than free speed of their type.
func (component *FundamentalDiagramComponent) Initialize(net *Network) error {
	if net == nil {
		return ErrNetworkMissing
	}
	for _, linkType := range net.LinkTypes() {
		props, _ := net.LinkTypeProperties(linkType)
		fd, err := component.newDiagram(props.FreeSpeed, props.CapacityPerLane, props.MaxDensityPerLane)
		if err != nil {
			return errors.Wrapf(err, "Can't create fundamental diagram for link type '%s'", linkType)
		}
		component.RegisterLinkType(linkType, fd)
	}
	overrides := 0
	for _, link := range net.links {
		if link.maxSpeed <= 0 {
			continue
		}
		typeFD, ok := component.byLinkType[link.linkType]
		if !ok {
			continue
		}
		if link.maxSpeed >= typeFD.FreeSpeed() {
			continue
		}
		fd, err := typeFD.WithMaxSpeed(link.maxSpeed)
		if err != nil {
			return errors.Wrapf(err, "Can't apply speed limit of link %d", link.ID)
		}
		component.logger.Info("[WARNING] Physical speed limit is stricter than free speed of link type, link specific fundamental diagram is created", "link", link.ID, "linkType", link.linkType.String(), "maxSpeed", link.maxSpeed, "typeFreeSpeed", typeFD.FreeSpeed())
		component.Register(link.ID, fd)
		overrides++
	}
	component.logger.V(VERBOSE).Info("Fundamental diagrams initialized", "linkTypes", len(component.byLinkType), "overrides", overrides, "pooled", component.PoolSize())
	return nil
}

func (component *FundamentalDiagramComponent) newDiagram(freeSpeed, capacity, maxDensity float64) (*FundamentalDiagram, error) {
	switch component.kind {
	case FD_NEWELL:
		return NewNewellFundamentalDiagram(freeSpeed, capacity, maxDensity)
	case FD_QUADRATIC_LINEAR:
		return NewQuadraticLinearFundamentalDiagram(freeSpeed, component.criticalSpeedRatio*freeSpeed, capacity, maxDensity)
	default:
		return nil, errors.Wrapf(ErrInvalidDiagram, "Unknown fundamental diagram kind %d", component.kind)
	}
}

// Get returns diagram of the link segment: link specific one if exists, otherwise the one of its link type
func (component *FundamentalDiagramComponent) Get(link *LinkSegment) (*FundamentalDiagram, bool) {
	if link == nil {
		return nil, false
	}
	if fd, ok := component.byLink[link.ID]; ok {
		return fd, true
	}
	return component.GetByLinkType(link.linkType)
}

func (component *FundamentalDiagramComponent) GetByLinkType(linkType LinkType) (*FundamentalDiagram, bool) {
	fd, ok := component.byLinkType[linkType]
	return fd, ok
}

// HasLinkOverride returns true when link has its own diagram
func (component *FundamentalDiagramComponent) HasLinkOverride(link LinkID) bool {
	_, ok := component.byLink[link]
	return ok
}

// Register assigns diagram to the link segment and returns pooled instance actually in effect
func (component *FundamentalDiagramComponent) Register(link LinkID, fd *FundamentalDiagram) *FundamentalDiagram {
	pooled := component.pooled(fd)
	component.byLink[link] = pooled
	return pooled
}

// RegisterLinkType assigns diagram to the link type and returns pooled instance actually in effect
func (component *FundamentalDiagramComponent) RegisterLinkType(linkType LinkType, fd *FundamentalDiagram) *FundamentalDiagram {
	pooled := component.pooled(fd)
	component.byLinkType[linkType] = pooled
	return pooled
}

// pooled returns already registered diagram identical to given one, or registers given one
func (component *FundamentalDiagramComponent) pooled(fd *FundamentalDiagram) *FundamentalDiagram {
	hash := fd.relaxedHash(component.precision)
	for _, candidate := range component.pool[hash] {
		if candidate == fd || candidate.relaxedEqual(fd, component.precision) {
			return candidate
		}
	}
	component.pool[hash] = append(component.pool[hash], fd)
	return fd
}

// PoolSize returns number of distinct diagrams
func (component *FundamentalDiagramComponent) PoolSize() int {
	size := 0
	for _, bucket := range component.pool {
		size += len(bucket)
	}
	return size
}

// SetCapacity changes capacity (pcu/h/lane) of the link segment diagram only
func (component *FundamentalDiagramComponent) SetCapacity(link *LinkSegment, capacity float64) (*FundamentalDiagram, error) {
	return component.updateLink(link, func(fd *FundamentalDiagram) (*FundamentalDiagram, error) { return fd.WithCapacity(capacity) })
}

// SetMaxDensity changes jam density (pcu/km/lane) of the link segment diagram only
func (component *FundamentalDiagramComponent) SetMaxDensity(link *LinkSegment, maxDensity float64) (*FundamentalDiagram, error) {
	return component.updateLink(link, func(fd *FundamentalDiagram) (*FundamentalDiagram, error) { return fd.WithMaxDensity(maxDensity) })
}

// SetMaxSpeed changes free speed (km/h) of the link segment diagram only
func (component *FundamentalDiagramComponent) SetMaxSpeed(link *LinkSegment, maxSpeed float64) (*FundamentalDiagram, error) {
	return component.updateLink(link, func(fd *FundamentalDiagram) (*FundamentalDiagram, error) { return fd.WithMaxSpeed(maxSpeed) })
}

// SetLinkTypeCapacity changes capacity (pcu/h/lane) of the link type diagram
func (component *FundamentalDiagramComponent) SetLinkTypeCapacity(linkType LinkType, capacity float64) (*FundamentalDiagram, error) {
	return component.updateLinkType(linkType, func(fd *FundamentalDiagram) (*FundamentalDiagram, error) { return fd.WithCapacity(capacity) })
}

// SetLinkTypeMaxDensity changes jam density (pcu/km/lane) of the link type diagram
func (component *FundamentalDiagramComponent) SetLinkTypeMaxDensity(linkType LinkType, maxDensity float64) (*FundamentalDiagram, error) {
	return component.updateLinkType(linkType, func(fd *FundamentalDiagram) (*FundamentalDiagram, error) { return fd.WithMaxDensity(maxDensity) })
}

// SetLinkTypeMaxSpeed changes free speed (km/h) of the link type diagram
func (component *FundamentalDiagramComponent) SetLinkTypeMaxSpeed(linkType LinkType, maxSpeed float64) (*FundamentalDiagram, error) {
	return component.updateLinkType(linkType, func(fd *FundamentalDiagram) (*FundamentalDiagram, error) { return fd.WithMaxSpeed(maxSpeed) })
}

func (component *FundamentalDiagramComponent) updateLink(link *LinkSegment, update func(*FundamentalDiagram) (*FundamentalDiagram, error)) (*FundamentalDiagram, error) {
	if link == nil {
		return nil, ErrLinkNotFound
	}
	current, ok := component.Get(link)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidDiagram, "No fundamental diagram for link %d", link.ID)
	}
	fd, err := update(current)
	if err != nil {
		return nil, errors.Wrapf(err, "Link %d", link.ID)
	}
	return component.Register(link.ID, fd), nil
}

func (component *FundamentalDiagramComponent) updateLinkType(linkType LinkType, update func(*FundamentalDiagram) (*FundamentalDiagram, error)) (*FundamentalDiagram, error) {
	current, ok := component.GetByLinkType(linkType)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidDiagram, "No fundamental diagram for link type '%s'", linkType)
	}
	fd, err := update(current)
	if err != nil {
		return nil, errors.Wrapf(err, "Link type '%s'", linkType)
	}
	return component.RegisterLinkType(linkType, fd), nil
}

// LinkCapacity returns capacity of the whole link segment (all lanes) in pcu/h. Links without diagram are unconstrained.
func (component *FundamentalDiagramComponent) LinkCapacity(link *LinkSegment) float64 {
	fd, ok := component.Get(link)
	if !ok {
		return math.Inf(1)
	}
	return fd.Capacity() * float64(link.lanes)
}
