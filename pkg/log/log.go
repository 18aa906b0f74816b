// Package log is the structured logging facade used across the module.
//
// Components never talk to zerolog directly. They ask for a named Logger and
// pass key/value pairs using the key constants below so that training records
// from the coordinator, the aggregation driver and the CLI share one schema:
//
//	logger := log.GetLoggerWithName("trainer").With(log.ModelNameKey, "DecisionTreeClassifier")
//	logger.Info("Round completed", log.RoundKey, 3, log.LeavesKey, 8)
package log

import (
	"io"
	"os"
	"strings"
	"sync"
)

// Structured field keys.
const (
	OperationKey  = "operation"
	PhaseKey      = "phase"
	SamplesKey    = "samples"
	FeaturesKey   = "features"
	DurationMsKey = "duration_ms"
	ModelNameKey  = "model_name"
	ComponentKey  = "component"
	PredsKey      = "predictions"
	ErrorKey      = "error"

	DepthKey   = "depth"
	LeavesKey  = "open_leaves"
	SplitsKey  = "splits"
	RoundKey   = "round"
	WorkersKey = "workers"
	AlphaKey   = "alpha"
	LevelKey   = "tree_level"
	StoreKey   = "store"
)

// Values for OperationKey and PhaseKey.
const (
	OperationFit        = "fit"
	OperationPredict    = "predict"
	OperationPrune      = "prune"
	OperationAccumulate = "accumulate"
	OperationSurrogate  = "surrogate"
	OperationExpand     = "expand"

	PhaseTraining   = "training"
	PhaseInference  = "inference"
	PhasePruning    = "pruning"
	PhaseValidation = "validation"
)

// Level is a log severity.
type Level int8

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	Disabled
)

// ToLogLevel parses a level name. Unknown names map to InfoLevel.
func ToLogLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "info", "":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "off", "disabled", "none":
		return Disabled
	default:
		return InfoLevel
	}
}

// Logger writes structured records. Fields are alternating keys and values.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	With(fields ...interface{}) Logger
}

// LoggerProvider hands out loggers bound to a shared sink and level.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}

var (
	globalMu       sync.RWMutex
	globalProvider LoggerProvider = NewZerologProvider(InfoLevel)
)

// SetupLogger replaces the global provider with one at the given level
// writing to stderr.
func SetupLogger(level string) {
	SetProvider(NewZerologProvider(ToLogLevel(level)))
}

// SetOutput replaces the global provider with one writing to w.
func SetOutput(w io.Writer, level Level) {
	SetProvider(NewZerologProviderWithWriter(w, level))
}

// SetProvider installs p as the global provider.
func SetProvider(p LoggerProvider) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalProvider = p
}

// GetProvider returns the global provider.
func GetProvider() LoggerProvider {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalProvider
}

// GetLogger returns the root logger of the global provider.
func GetLogger() Logger {
	return GetProvider().GetLogger()
}

// GetLoggerWithName returns a logger tagged with name as its component.
func GetLoggerWithName(name string) Logger {
	return GetProvider().GetLoggerWithName(name)
}

// LogError logs err at error level with msg and optional fields.
func LogError(err error, msg string, fields ...interface{}) {
	if err == nil {
		return
	}
	GetLogger().Error(msg, append([]interface{}{ErrorKey, err.Error()}, fields...)...)
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return NewZerologProviderWithWriter(io.Discard, Disabled).GetLogger()
}

func stderr() io.Writer { return os.Stderr }
