package calendar

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"cfdSignalBot/internal/domain"
	"cfdSignalBot/internal/ports"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileCalendar implements the ports.EconomicCalendar interface from a YAML
// file of scheduled releases. The schedule is loaded once at startup; macro
// events are known days in advance, so a restart on schedule changes is
// acceptable.
type FileCalendar struct {
	events []domain.MacroEvent
	logger ports.Logger
}

// Config holds configuration for the file-backed calendar.
type Config struct {
	Path   string
	Logger ports.Logger
}

type eventEntry struct {
	Name   string    `yaml:"name" validate:"required"`
	Type   string    `yaml:"type" validate:"required"`
	Time   time.Time `yaml:"time" validate:"required"`
	Impact string    `yaml:"impact" validate:"required,oneof=low medium high"`
}

type scheduleFile struct {
	Events []eventEntry `yaml:"events" validate:"dive"`
}

// New loads and validates the schedule file.
func New(cfg Config) (*FileCalendar, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for calendar")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("calendar path is required: %w", ports.ErrConfigurationError)
	}

	raw, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar file '%s': %w", cfg.Path, err)
	}

	var file scheduleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse calendar file '%s': %w", cfg.Path, err)
	}
	if err := validator.New().Struct(&file); err != nil {
		return nil, fmt.Errorf("calendar file '%s' failed validation: %w: %w", cfg.Path, ports.ErrConfigurationError, err)
	}

	events := make([]domain.MacroEvent, 0, len(file.Events))
	for _, e := range file.Events {
		events = append(events, domain.MacroEvent{
			Name:   e.Name,
			Type:   e.Type,
			Time:   e.Time,
			Impact: e.Impact,
		})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Time.Before(events[j].Time) })

	cfg.Logger.Info(context.Background(), "Economic calendar loaded", map[string]interface{}{
		"path": cfg.Path, "events": len(events),
	})
	return &FileCalendar{events: events, logger: cfg.Logger}, nil
}

// Events returns scheduled events within [from, to], ordered by time.
func (c *FileCalendar) Events(ctx context.Context, from, to time.Time) ([]domain.MacroEvent, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid window %s..%s: %w", from, to, ports.ErrInvalidRequest)
	}
	var out []domain.MacroEvent
	for _, e := range c.events {
		if e.Time.Before(from) {
			continue
		}
		if e.Time.After(to) {
			break
		}
		out = append(out, e)
	}
	return out, nil
}
