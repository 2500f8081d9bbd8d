package sltm

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// Verbosity levels used with logger.V(...)
const (
	VERBOSE = 1
	DEBUG   = 2
	TRACE   = 3
)

// NewLogger builds zap-backed logr.Logger. Development mode logs everything up to TRACE in a console friendly format.
func NewLogger(development bool) (logr.Logger, error) {
	var zapLog *zap.Logger
	var err error
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel - TRACE)
		zapLog, err = cfg.Build(zap.AddCaller())
	} else {
		zapLog, err = zap.NewProduction()
	}
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(zapLog), nil
}
