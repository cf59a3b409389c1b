// Package notifier fires best-effort Slack notifications when a scan
// completes. Notification failures never fail or block the scan itself.
package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aegis-scan/aegis/pkg/scan"
)

// SlackClient posts incident summaries to a Slack incoming webhook.
type SlackClient struct {
	WebhookURL string
	Channel    string // optional: override the webhook's default channel
}

// NewSlackClient initializes the Slack integration.
func NewSlackClient(webhookURL string, channel string) *SlackClient {
	return &SlackClient{
		WebhookURL: webhookURL,
		Channel:    channel,
	}
}

// NotifyScanComplete posts a summary of report to Slack. A zero-value
// WebhookURL is treated as "notifications disabled" and returns nil
// without making a request.
func (s *SlackClient) NotifyScanComplete(accountName string, report scan.IncidentReport) error {
	if s.WebhookURL == "" {
		return nil
	}

	payload := s.constructPayload(accountName, report)
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequest("POST", s.WebhookURL, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("received non-200 status from slack: %d", resp.StatusCode)
	}
	return nil
}

func (s *SlackClient) constructPayload(accountName string, report scan.IncidentReport) map[string]interface{} {
	critical := report.SeverityCounts["critical"]
	high := report.SeverityCounts["high"]

	statusIcon := "🟢"
	switch {
	case critical > 0:
		statusIcon = "🔴"
	case high > 0:
		statusIcon = "🟡"
	}

	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]interface{}{
				"type": "plain_text",
				"text": fmt.Sprintf("%s Security Scan Complete: %s", statusIcon, accountName),
			},
		},
		{
			"type": "context",
			"elements": []map[string]interface{}{
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Scan Date:* %s", report.GeneratedAt.Format("2006-01-02 15:04 MST")),
				},
			},
		},
		{"type": "divider"},
		{
			"type": "section",
			"fields": []map[string]interface{}{
				{"type": "mrkdwn", "text": fmt.Sprintf("*Critical:*\n%d", critical)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*High:*\n%d", high)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Medium:*\n%d", report.SeverityCounts["medium"])},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Low:*\n%d", report.SeverityCounts["low"])},
			},
		},
		{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Summary:*\n%s", report.ExecutiveSummary),
			},
		},
	}

	if critical > 0 {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": "⚠️ *Active exploitation detected.* Review the action plan immediately.",
			},
		})
	}

	payload := map[string]interface{}{"blocks": blocks}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	return payload
}
