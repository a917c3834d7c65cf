package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cfdSignalBot/internal/domain"
	"cfdSignalBot/internal/ports"
)

const defaultTimeout = 10 * time.Second

// Sender implements the ports.AlertSender interface against the Telegram
// Bot API. Delivery failures are returned to the caller; the resilience
// guard around the sender decides on retries.
type Sender struct {
	apiURL string
	chatID string
	client *http.Client
	logger ports.Logger
}

// Config holds configuration for the Telegram sender.
type Config struct {
	BotToken string
	ChatID   string
	BaseURL  string // Overridden in tests; defaults to api.telegram.org
	Logger   ports.Logger
}

// New creates a Telegram alert sender.
func New(cfg Config) (*Sender, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Telegram sender")
	}
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("bot token and chat id are required: %w", ports.ErrConfigurationError)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Sender{
		apiURL: fmt.Sprintf("%s/bot%s/sendMessage", baseURL, cfg.BotToken),
		chatID: cfg.ChatID,
		client: &http.Client{Timeout: defaultTimeout},
		logger: cfg.Logger,
	}, nil
}

// Name returns the channel identity used for routing and metrics labels.
func (s *Sender) Name() string { return "telegram" }

// Send delivers one formatted signal alert.
func (s *Sender) Send(ctx context.Context, n domain.Notification) error {
	op := "Send"
	payload := map[string]string{
		"chat_id":    s.chatID,
		"text":       FormatMessage(n),
		"parse_mode": "Markdown",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal payload: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrDependencyUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: telegram returned status %d: %w", op, resp.StatusCode, ports.ErrDependencyUnavailable)
	}
	s.logger.Debug(ctx, "Telegram alert delivered", map[string]interface{}{
		"signalID": n.Signal.ID, "chatID": s.chatID,
	})
	return nil
}

// FormatMessage renders the alert text for one committed signal.
func FormatMessage(n domain.Notification) string {
	sig := n.Signal
	var b strings.Builder
	fmt.Fprintf(&b, "*%s %s*\n", sig.Symbol, sig.Side)
	fmt.Fprintf(&b, "Entry: %.5g\n", sig.Entry)
	fmt.Fprintf(&b, "Stop: %.5g\n", sig.StopLoss)
	fmt.Fprintf(&b, "Target: %.5g\n", sig.TakeProfit)
	fmt.Fprintf(&b, "Size: %.5g\n", sig.Size)
	fmt.Fprintf(&b, "Net R:R %.2f (risk %.2f)\n", sig.NetRR, sig.RiskAmount)
	if n.Why != "" {
		fmt.Fprintf(&b, "Why: %s", n.Why)
	}
	return b.String()
}
