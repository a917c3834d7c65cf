package domain

// Side represents the direction of a signal (LONG or SHORT).
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Opposite returns the mirrored side.
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

// SignalStatus represents the lifecycle state of a signal.
type SignalStatus string

const (
	StatusProposed  SignalStatus = "PROPOSED"
	StatusActive    SignalStatus = "ACTIVE"
	StatusHitTP     SignalStatus = "HIT_TP"
	StatusHitSL     SignalStatus = "HIT_SL"
	StatusExpired   SignalStatus = "EXPIRED"
	StatusCancelled SignalStatus = "CANCELLED"
)

// IsTerminal reports whether the status is final. Terminal signals are
// immutable; any further transition is an invariant violation.
func (s SignalStatus) IsTerminal() bool {
	switch s {
	case StatusHitTP, StatusHitSL, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// RejectReason classifies why a candidate did not become a committed signal.
// These are normal outcomes, not system faults.
type RejectReason string

const (
	ReasonNoTrend       RejectReason = "NO_TREND"
	ReasonNoTrigger     RejectReason = "NO_TRIGGER"
	ReasonQuality       RejectReason = "QUALITY_FILTER"
	ReasonMacroBlackout RejectReason = "MACRO_BLACKOUT"
	ReasonCooldown      RejectReason = "COOLDOWN"
	ReasonMaxOpen       RejectReason = "MAX_OPEN_SIGNALS"
	ReasonCorrelation   RejectReason = "CORRELATION_CAP"
	ReasonDailyLoss     RejectReason = "DAILY_LOSS_LIMIT"
	ReasonUneconomic    RejectReason = "UNECONOMIC_AFTER_COSTS"
	ReasonUndersized    RejectReason = "ACCOUNT_TOO_SMALL"
)
