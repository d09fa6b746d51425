// Package slack delivers performance alerts to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/Strob0t/quorumgate/internal/port/notifier"
)

const providerName = "slack"

// Notifier posts alerts as Block Kit messages.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewNotifier creates a Slack notifier for webhookURL.
func NewNotifier(webhookURL string, client *http.Client) *Notifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &Notifier{webhookURL: webhookURL, httpClient: client}
}

// Name implements notifier.Notifier.
func (n *Notifier) Name() string { return providerName }

type message struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

type block struct {
	Type   string `json:"type"`
	Text   *text  `json:"text,omitempty"`
	Fields []text `json:"fields,omitempty"`
	Elems  []text `json:"elements,omitempty"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Send implements notifier.Notifier.
func (n *Notifier) Send(ctx context.Context, a notifier.Notification) error {
	if n.webhookURL == "" {
		return notifier.ErrNotConfigured
	}

	header := levelTag(a.Level) + " " + a.Title
	msg := message{
		Text: header,
		Blocks: []block{
			{Type: "header", Text: &text{Type: "plain_text", Text: header}},
			{Type: "section", Text: &text{Type: "mrkdwn", Text: a.Message}},
		},
	}
	if fields := fieldTexts(a.Fields); len(fields) > 0 {
		msg.Blocks = append(msg.Blocks, block{Type: "section", Fields: fields})
	}
	var footer []string
	if a.Source != "" {
		footer = append(footer, "source `"+a.Source+"`")
	}
	if a.RunID != "" {
		footer = append(footer, "run `"+a.RunID+"`")
	}
	if len(footer) > 0 {
		msg.Blocks = append(msg.Blocks, block{
			Type:  "context",
			Elems: []text{{Type: "mrkdwn", Text: strings.Join(footer, " | ")}},
		})
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack API %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func fieldTexts(fields map[string]any) []text {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]text, 0, len(keys))
	for _, k := range keys {
		out = append(out, text{Type: "mrkdwn", Text: fmt.Sprintf("*%s*\n%v", k, fields[k])})
	}
	return out
}

func levelTag(level string) string {
	switch level {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARN]"
	default:
		return "[INFO]"
	}
}
