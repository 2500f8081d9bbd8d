package sltm

import (
	"github.com/pkg/errors"
)

// Configuration errors. These are returned while an assignment is being built and are fatal.
var (
	ErrNetworkMissing       = errors.New("network is not provided")
	ErrNetworkEmpty         = errors.New("network has no links")
	ErrNetworkNotPrepared   = errors.New("network has not been prepared")
	ErrNetworkPrepared      = errors.New("network has been prepared already, no further changes allowed")
	ErrDemandMissing        = errors.New("demand is not provided")
	ErrNotCentroid          = errors.New("node is not a centroid")
	ErrNodeNotFound         = errors.New("node not found")
	ErrLinkNotFound         = errors.New("link not found")
	ErrInvalidLanes         = errors.New("number of lanes must be positive")
	ErrUnsupportedScheme    = errors.New("solution scheme is not supported")
	ErrUnsupportedFormat    = errors.New("file format is not supported")
	ErrInvalidDiagram       = errors.New("fundamental diagram is not consistent")
	ErrUnknownLinkType      = errors.New("link type is not known")
	ErrInvalidStepSize      = errors.New("step size must be within [0, 1]")
	ErrInvalidConfigValue   = errors.New("invalid configuration value")
	ErrMovementNotFound     = errors.New("movement not found")
	ErrPathEmpty            = errors.New("path has no links")
	ErrPathDisconnected     = errors.New("path links are not connected")
	ErrPathWrongEnds        = errors.New("path does not start at origin or does not end at destination")
	ErrNoPath               = errors.New("no path between origin and destination")
	ErrBushCycle            = errors.New("adding path would create a cycle in the bush")
	ErrBushConservation     = errors.New("bush flow is not conserved")
	ErrBushComposition      = errors.New("labelled flow does not match label composition")
	ErrNegativeFlow         = errors.New("flow must not be negative")
	ErrDestinationNotInBush = errors.New("destination is not served by the bush")
)

// ErrFlowConservation marks numerical conservation violations. It is only ever logged, never returned
// from a loading pass.
var ErrFlowConservation = errors.New("flow conservation violated")
