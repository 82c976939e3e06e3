// Package slack delivers calendar alerts to Slack via incoming
// webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/newswatch/internal/alerting"
	"github.com/linnemanlabs/newswatch/internal/calendar"
)

const httpTimeout = 10 * time.Second

// Notifier sends alerts to a Slack webhook. It implements
// alerting.Notifier.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is
// a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Notify posts one alert to the configured Slack webhook. If no
// webhook URL is configured, it returns nil immediately.
func (n *Notifier) Notify(ctx context.Context, ev calendar.Event, kind alerting.Kind) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(ev, kind))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(ev calendar.Event, kind alerting.Kind) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(ev, kind),
			{"type": "divider"},
			fieldsBlock(ev, kind),
			{"type": "divider"},
			contextBlock(ev),
		},
	}
}

func headerBlock(ev calendar.Event, kind alerting.Kind) map[string]any {
	text := fmt.Sprintf("%s %s Impact News %s: %s",
		impactEmoji(ev.Impact), titleCase(ev.Impact), kindTitle(kind), ev.Title)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(ev calendar.Event, kind alerting.Kind) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Currency:* %s", ev.Currency),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Time:* %s", ev.Time),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Impact:* %s", ev.Impact),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Alert:* %s", alertText(kind)),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func contextBlock(ev calendar.Event) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("newswatch • %s %s", ev.Date, ev.Time),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func kindTitle(kind alerting.Kind) string {
	if kind == alerting.KindPreEvent {
		return "Warning"
	}
	return "Release"
}

func alertText(kind alerting.Kind) string {
	if kind == alerting.KindPreEvent {
		return "Starting soon"
	}
	return "NOW!"
}

func impactEmoji(impact string) string {
	switch calendar.ImpactRank(impact) {
	case 3:
		return "\U0001f534" // red circle
	case 2:
		return "\U0001f7e0" // orange circle
	case 1:
		return "\U0001f7e1" // yellow circle
	default:
		return "⚪" // white circle
	}
}

func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
