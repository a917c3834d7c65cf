package macro

import (
	"fmt"
	"strings"
	"time"

	"cfdSignalBot/internal/domain"
)

// Config holds the blackout parameters.
type Config struct {
	Window         time.Duration // No-trade window around any qualifying event, e.g. 30m
	MinImpact      string        // Lowest impact level that blocks ("medium" blocks medium+high)
	MajorPrefilter time.Duration // Longer pre-event blackout for major recurring types, e.g. 24h
	MajorTypes     []string      // Event types subject to the prefilter, e.g. CPI, RATE_DECISION, NFP
}

// DefaultConfig returns the standard blackout policy.
func DefaultConfig() Config {
	return Config{
		Window:         30 * time.Minute,
		MinImpact:      "high",
		MajorPrefilter: 24 * time.Hour,
		MajorTypes:     []string{"CPI", "RATE_DECISION", "NFP"},
	}
}

// Filter suppresses signal emission around configured high-impact calendar
// windows. It is a pure predicate over (time, calendar) and holds no state.
type Filter struct {
	cfg Config
}

// New creates a macro filter.
func New(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// Allows reports whether signal emission is permitted at now given the
// calendar, with a human-readable reason when it is not.
func (f *Filter) Allows(now time.Time, events []domain.MacroEvent) (bool, string) {
	for _, ev := range events {
		if f.isMajorType(ev.Type) {
			lead := ev.Time.Sub(now)
			if lead >= 0 && lead <= f.cfg.MajorPrefilter {
				return false, fmt.Sprintf("%s (%s) in %s, inside %s major-event prefilter",
					ev.Name, ev.Type, lead.Round(time.Minute), f.cfg.MajorPrefilter)
			}
		}
		if !impactAtLeast(ev.Impact, f.cfg.MinImpact) {
			continue
		}
		distance := ev.Time.Sub(now)
		if distance < 0 {
			distance = -distance
		}
		if distance <= f.cfg.Window {
			return false, fmt.Sprintf("%s (%s impact) within %s window", ev.Name, ev.Impact, f.cfg.Window)
		}
	}
	return true, ""
}

func (f *Filter) isMajorType(eventType string) bool {
	for _, t := range f.cfg.MajorTypes {
		if strings.EqualFold(t, eventType) {
			return true
		}
	}
	return false
}

func impactRank(impact string) int {
	switch strings.ToLower(impact) {
	case "high":
		return 3
	case "medium":
		return 2
	case "low":
		return 1
	}
	return 0
}

func impactAtLeast(impact, minimum string) bool {
	return impactRank(impact) >= impactRank(minimum)
}
