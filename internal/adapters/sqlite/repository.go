package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cfdSignalBot/internal/domain"
	"cfdSignalBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.SignalRepository interface using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/signals.db" // Default path
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
			cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
			return nil, err
		}
	}

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS signals (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry REAL NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		size REAL NOT NULL,
		risk_amount REAL NOT NULL,
		gross_rr REAL NOT NULL,
		net_rr REAL NOT NULL,
		created_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		evidence TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS signal_transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		signal_id TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		at TIMESTAMP NOT NULL,
		price REAL NOT NULL DEFAULT 0,
		pnl REAL NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_signals_symbol_status ON signals (symbol, status);
	CREATE INDEX IF NOT EXISTS idx_transitions_signal_id ON signal_transitions (signal_id, id);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// CreateSignal persists a newly committed signal.
func (r *Repository) CreateSignal(ctx context.Context, sig *domain.Signal) error {
	const query = `
	INSERT INTO signals (id, symbol, side, entry, stop_loss, take_profit, size,
	                     risk_amount, gross_rr, net_rr, created_at, status, evidence)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		sig.ID, sig.Symbol, string(sig.Side), sig.Entry, sig.StopLoss, sig.TakeProfit, sig.Size,
		sig.RiskAmount, sig.GrossRR, sig.NetRR, sig.CreatedAt, string(sig.Status),
		strings.Join(sig.Evidence, "\n"))
	if err != nil {
		return fmt.Errorf("failed to insert signal %s: %w", sig.ID, err)
	}
	r.logger.Debug(ctx, "Signal persisted", map[string]interface{}{"signalID": sig.ID, "symbol": sig.Symbol})
	return nil
}

// AppendTransition records one lifecycle transition and keeps the parent
// signal's status column in step with the latest entry.
func (r *Repository) AppendTransition(ctx context.Context, tr domain.Transition) error {
	const insert = `
	INSERT INTO signal_transitions (signal_id, from_status, to_status, at, price, pnl)
	VALUES (?, ?, ?, ?, ?, ?)`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for signal %s: %w", tr.SignalID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, insert,
		tr.SignalID, string(tr.From), string(tr.To), tr.At, tr.Price, tr.PnL); err != nil {
		return fmt.Errorf("failed to insert transition for signal %s: %w", tr.SignalID, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE signals SET status = ? WHERE id = ?`,
		string(tr.To), tr.SignalID); err != nil {
		return fmt.Errorf("failed to update status for signal %s: %w", tr.SignalID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition for signal %s: %w", tr.SignalID, err)
	}
	r.logger.Debug(ctx, "Transition recorded", map[string]interface{}{
		"signalID": tr.SignalID, "from": string(tr.From), "to": string(tr.To),
	})
	return nil
}

// FindSignal retrieves a signal by id. Returns nil, nil when not found.
func (r *Repository) FindSignal(ctx context.Context, id string) (*domain.Signal, error) {
	const query = `
	SELECT id, symbol, side, entry, stop_loss, take_profit, size,
	       risk_amount, gross_rr, net_rr, created_at, status, evidence
	FROM signals
	WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	sig, err := scanSignal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Signal not found by ID", map[string]interface{}{"signalID": id})
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query signal by ID %s: %w", id, err)
	}
	return sig, nil
}

// FindOpenSignals retrieves all signals not yet in a terminal state.
func (r *Repository) FindOpenSignals(ctx context.Context) ([]*domain.Signal, error) {
	const query = `
	SELECT id, symbol, side, entry, stop_loss, take_profit, size,
	       risk_amount, gross_rr, net_rr, created_at, status, evidence
	FROM signals
	WHERE status IN (?, ?)
	ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query,
		string(domain.StatusProposed), string(domain.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query open signals: %w", err)
	}
	defer rows.Close()

	signals := make([]*domain.Signal, 0)
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal during FindOpenSignals: %w", err)
		}
		signals = append(signals, sig)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signal rows: %w", err)
	}
	return signals, nil
}

// Transitions returns the ordered transition history for a signal.
func (r *Repository) Transitions(ctx context.Context, signalID string) ([]domain.Transition, error) {
	const query = `
	SELECT signal_id, from_status, to_status, at, price, pnl
	FROM signal_transitions
	WHERE signal_id = ?
	ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, signalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions for signal %s: %w", signalID, err)
	}
	defer rows.Close()

	transitions := make([]domain.Transition, 0)
	for rows.Next() {
		var tr domain.Transition
		var from, to string
		if err := rows.Scan(&tr.SignalID, &from, &to, &tr.At, &tr.Price, &tr.PnL); err != nil {
			return nil, fmt.Errorf("failed to scan transition for signal %s: %w", signalID, err)
		}
		tr.From = domain.SignalStatus(from)
		tr.To = domain.SignalStatus(to)
		transitions = append(transitions, tr)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transition rows: %w", err)
	}
	return transitions, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSignal(s scanner) (*domain.Signal, error) {
	sig := &domain.Signal{}
	var side, status, evidence string
	err := s.Scan(
		&sig.ID, &sig.Symbol, &side, &sig.Entry, &sig.StopLoss, &sig.TakeProfit, &sig.Size,
		&sig.RiskAmount, &sig.GrossRR, &sig.NetRR, &sig.CreatedAt, &status, &evidence)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	sig.Side = domain.Side(side)
	sig.Status = domain.SignalStatus(status)
	if evidence != "" {
		sig.Evidence = strings.Split(evidence, "\n")
	}
	return sig, nil
}
