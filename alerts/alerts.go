// Package alerts delivers operator notifications to a Slack-compatible
// webhook. Delivery is best effort; a failed alert never propagates.
package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/engyne/engyne/internal/httpclient"
	"github.com/engyne/engyne/logger"
	"github.com/engyne/engyne/slotfs"
)

const sendTimeout = 5 * time.Second

// Notifier posts alerts to one webhook URL. A Notifier with an empty URL is
// valid and drops everything.
type Notifier struct {
	webhookURL string
	client     *httpclient.SaferClient
}

// NewNotifier builds a notifier for the given webhook URL.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     httpclient.New(sendTimeout),
	}
}

// SetClient replaces the HTTP client. Used by tests to reach local servers.
func (n *Notifier) SetClient(client *httpclient.SaferClient) {
	n.client = client
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.webhookURL != ""
}

// Send posts one alert. Errors are logged and swallowed.
func (n *Notifier) Send(title, message string) {
	if !n.Enabled() {
		return
	}
	payload := map[string]string{
		"text": fmt.Sprintf("*%s*\n%s\nTime: %s", title, message, slotfs.UTCNow()),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		logger.Warnw("alert webhook request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		logger.Warnw("alert webhook delivery failed", "error", err, "title", title)
		return
	}
	resp.Body.Close()
}
