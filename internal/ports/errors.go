package ports

import "errors"

// Standard application-level errors.
// Adapters and core components wrap underlying causes with these so callers
// can branch with errors.Is without knowing the infrastructure.
var (
	// General errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Data faults: the affected instrument's cycle is skipped, others continue.
	ErrNoData         = errors.New("no bar data available")
	ErrOutOfOrderBars = errors.New("bars delivered out of timestamp order")
	ErrDataGap        = errors.New("gap detected in bar sequence")

	// Economic rejections: normal "no signal" outcomes, never retried.
	ErrUneconomicAfterCosts = errors.New("net reward:risk below floor after costs")
	ErrAccountTooSmall      = errors.New("equity too small to size one minimum lot")

	// Policy rejections: normal outcomes enforced by the signal ledger, never retried.
	ErrCooldownActive  = errors.New("cooldown active for instrument and side")
	ErrMaxOpenSignals  = errors.New("maximum concurrent open signals reached")
	ErrCorrelationCap  = errors.New("correlation group exposure cap reached")
	ErrDailyLossLimit  = errors.New("daily loss limit reached")
	ErrMacroBlackout   = errors.New("inside macro event no-trade window")
	ErrDuplicateSignal = errors.New("signal already committed for this id")

	// Dependency faults: surfaced only after retry/circuit-breaker exhaustion.
	ErrDependencyUnavailable = errors.New("external dependency unavailable")
	ErrCircuitOpen           = errors.New("circuit breaker is open")

	// Invariant violations: logic defects, fatal for the affected candidate/signal.
	ErrInvalidStopPlacement = errors.New("stop placed on wrong side of entry")
	ErrTerminalTransition   = errors.New("transition applied to terminal signal")

	// Database errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)
