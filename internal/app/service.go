package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"cfdSignalBot/config"
	"cfdSignalBot/internal/domain"
	"cfdSignalBot/internal/metrics"
	"cfdSignalBot/internal/pipeline"
	"cfdSignalBot/internal/ports"
	"cfdSignalBot/internal/resilience"
)

// ScanService orchestrates the live scan loop: on every tick it pulls fresh
// bars for each instrument, runs them through the decision pipeline, persists
// the outcome and fans committed signals out to the alert channels. All
// external calls go through per-dependency resilience guards.
type ScanService struct {
	cfg      *config.Config
	logger   ports.Logger
	data     ports.MarketDataProvider
	calendar ports.EconomicCalendar
	repo     ports.SignalRepository
	pipe     *pipeline.Pipeline

	dataGuard     *resilience.Guard
	calendarGuard *resilience.Guard
	alertGuards   map[string]*resilience.Guard
	alerters      []ports.AlertSender

	currentDay time.Time
}

// NewScanService creates the live scan orchestrator.
func NewScanService(
	cfg *config.Config,
	logger ports.Logger,
	data ports.MarketDataProvider,
	calendar ports.EconomicCalendar,
	repo ports.SignalRepository,
	pipe *pipeline.Pipeline,
	alerters []ports.AlertSender,
) (*ScanService, error) {
	if cfg == nil || logger == nil || data == nil || calendar == nil || repo == nil || pipe == nil {
		return nil, fmt.Errorf("missing required dependencies for ScanService")
	}
	if cfg.ScanInterval <= 0 {
		return nil, fmt.Errorf("configuration ScanInterval must be positive")
	}
	if cfg.Equity <= 0 {
		return nil, fmt.Errorf("configuration Equity must be positive")
	}
	if len(cfg.Instruments) == 0 {
		return nil, fmt.Errorf("at least one instrument must be configured")
	}

	retryCfg := cfg.Retry
	breakerCfg := cfg.Breaker

	dataGuard, err := resilience.NewGuard("marketdata", retryCfg, breakerCfg, logger)
	if err != nil {
		return nil, err
	}
	calendarGuard, err := resilience.NewGuard("calendar", retryCfg, breakerCfg, logger)
	if err != nil {
		return nil, err
	}
	alertGuards := make(map[string]*resilience.Guard, len(alerters))
	for _, a := range alerters {
		g, err := resilience.NewGuard("alert:"+a.Name(), retryCfg, breakerCfg, logger)
		if err != nil {
			return nil, err
		}
		alertGuards[a.Name()] = g
	}

	return &ScanService{
		cfg:           cfg,
		logger:        logger,
		data:          data,
		calendar:      calendar,
		repo:          repo,
		pipe:          pipe,
		dataGuard:     dataGuard,
		calendarGuard: calendarGuard,
		alertGuards:   alertGuards,
		alerters:      alerters,
	}, nil
}

// Start begins the scan loop and blocks until the context is cancelled or a
// shutdown signal arrives.
func (s *ScanService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting scan service", map[string]interface{}{
		"instruments": len(s.cfg.Instruments), "interval": s.cfg.ScanInterval.String(),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		cancel()
	}()

	if s.cfg.MetricsAddr != "" {
		srv := metrics.Serve(s.cfg.MetricsAddr)
		defer srv.Close()
		s.logger.Info(ctx, "Metrics endpoint started", map[string]interface{}{"addr": s.cfg.MetricsAddr})
	}

	now := time.Now().UTC()
	s.currentDay = startOfDay(now)
	s.pipe.Ledger().ResetDay(now)

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	// Run one cycle immediately rather than waiting out the first interval.
	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Scan service stopping")
			return nil
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *ScanService) runCycle(ctx context.Context) {
	now := time.Now().UTC()
	if day := startOfDay(now); day.After(s.currentDay) {
		s.currentDay = day
		s.pipe.Ledger().ResetDay(now)
		s.logger.Info(ctx, "Trading day rolled over", map[string]interface{}{"day": day.Format("2006-01-02")})
	}

	// Cycle id correlates all log lines of one scan pass.
	cycleID := uuid.NewString()
	cctx := ctx

	events, err := s.fetchEvents(cctx, now)
	if err != nil {
		// A dark calendar must not silently admit trades around releases, so
		// a fetch failure skips the whole cycle.
		s.logger.Warn(cctx, "skipping cycle, calendar unavailable", map[string]interface{}{
			"cycle": cycleID, "error": err.Error(),
		})
		return
	}

	for _, inst := range s.cfg.Instruments {
		if cctx.Err() != nil {
			return
		}
		s.scanInstrument(cctx, cycleID, inst, events, now)
	}

	metrics.ScanCyclesTotal.Inc()
	s.exportBreakerStates()
}

func (s *ScanService) scanInstrument(ctx context.Context, cycleID string, inst *domain.Instrument, events []domain.MacroEvent, now time.Time) {
	htf, ltf, err := s.fetchBars(ctx, inst, now)
	if err != nil {
		metrics.DataFaultsTotal.WithLabelValues(inst.Symbol).Inc()
		s.logger.Warn(ctx, "skipping instrument, market data unavailable", map[string]interface{}{
			"cycle": cycleID, "symbol": inst.Symbol, "error": err.Error(),
		})
		return
	}

	res, err := s.pipe.ProcessBar(ctx, htf, ltf, inst, events, s.cfg.Equity, now)
	if err != nil {
		s.logger.Warn(ctx, "instrument cycle failed", map[string]interface{}{
			"cycle": cycleID, "symbol": inst.Symbol, "error": err.Error(),
		})
		return
	}

	for _, tr := range res.Transitions {
		if err := s.repo.AppendTransition(ctx, tr); err != nil {
			s.logger.Error(ctx, err, "failed to persist transition", map[string]interface{}{
				"cycle": cycleID, "signalID": tr.SignalID,
			})
		}
	}
	for _, sig := range res.Signals {
		if err := s.repo.CreateSignal(ctx, sig); err != nil {
			s.logger.Error(ctx, err, "failed to persist signal", map[string]interface{}{
				"cycle": cycleID, "signalID": sig.ID,
			})
			continue
		}
		s.sendAlerts(ctx, sig, now)
	}
}

func (s *ScanService) fetchBars(ctx context.Context, inst *domain.Instrument, now time.Time) (htf, ltf []*domain.Bar, err error) {
	err = s.dataGuard.Do(ctx, func(ctx context.Context) error {
		var ierr error
		htf, ierr = s.data.GetBars(ctx, inst.Symbol, inst.HTF, s.cfg.BarHistory, now)
		if ierr != nil {
			return ierr
		}
		ltf, ierr = s.data.GetBars(ctx, inst.Symbol, inst.LTF, s.cfg.BarHistory, now)
		return ierr
	})
	return htf, ltf, err
}

func (s *ScanService) fetchEvents(ctx context.Context, now time.Time) (events []domain.MacroEvent, err error) {
	err = s.calendarGuard.Do(ctx, func(ctx context.Context) error {
		var ierr error
		events, ierr = s.calendar.Events(ctx, now.Add(-time.Hour), now.Add(24*time.Hour))
		return ierr
	})
	return events, err
}

func (s *ScanService) sendAlerts(ctx context.Context, sig *domain.Signal, now time.Time) {
	channels := make([]string, 0, len(s.alerters))
	for _, a := range s.alerters {
		channels = append(channels, a.Name())
	}
	n := domain.Notification{
		Signal:   sig,
		Why:      strings.Join(sig.Evidence, "; "),
		SentAt:   now,
		Channels: channels,
	}
	for _, a := range s.alerters {
		guard := s.alertGuards[a.Name()]
		err := guard.Do(ctx, func(ctx context.Context) error {
			return a.Send(ctx, n)
		})
		if err != nil {
			metrics.AlertFailuresTotal.WithLabelValues(a.Name()).Inc()
			s.logger.Error(ctx, err, "alert delivery failed", map[string]interface{}{
				"channel": a.Name(), "signalID": sig.ID,
			})
		}
	}
}

func (s *ScanService) exportBreakerStates() {
	metrics.BreakerState.WithLabelValues(s.dataGuard.Name()).Set(float64(s.dataGuard.State()))
	metrics.BreakerState.WithLabelValues(s.calendarGuard.Name()).Set(float64(s.calendarGuard.State()))
	for name, g := range s.alertGuards {
		metrics.BreakerState.WithLabelValues(name).Set(float64(g.State()))
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
