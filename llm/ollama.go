// Package llm drafts outbound contact messages with a local Ollama daemon.
// The entire path is optional: any failure degrades to "no message" and the
// dispatcher falls back to sending the raw record.
package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/engyne/engyne/config"
	"github.com/engyne/engyne/internal/httpclient"
	"github.com/engyne/engyne/logger"
)

// Generator calls the Ollama generate API for enabled channels.
type Generator struct {
	cfg      config.OllamaConfig
	channels map[string]bool // empty = all channels allowed
	client   *httpclient.SaferClient
}

// NewGenerator builds a generator from config. A disabled config yields a
// generator whose Generate always returns "".
func NewGenerator(cfg config.OllamaConfig) *Generator {
	channels := map[string]bool{}
	for _, c := range strings.Split(cfg.Channels, ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			channels[c] = true
		}
	}
	timeout := time.Duration(cfg.TimeoutSeconds * float64(time.Second))
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	// Ollama runs on the operator's own machine, so private addresses are
	// expected here.
	off := false
	return &Generator{
		cfg:      cfg,
		channels: channels,
		client:   httpclient.NewWithOptions(timeout, httpclient.Options{BlockPrivateIP: &off}),
	}
}

// SetClient replaces the HTTP client. Used by tests.
func (g *Generator) SetClient(client *httpclient.SaferClient) {
	g.client = client
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate drafts a message for one queue record on one channel. Returns ""
// when drafting is disabled, the channel is not allowlisted, or the daemon
// call fails in any way.
func (g *Generator) Generate(record map[string]interface{}, channel string) string {
	if !g.cfg.Enabled {
		return ""
	}
	if len(g.channels) > 0 && !g.channels[strings.ToLower(channel)] {
		return ""
	}

	details := FormatDetails(record)
	prompt := g.cfg.SystemPrompt + "\n\n" +
		strings.ReplaceAll(g.cfg.PromptTemplate, "{details}", details)

	body, err := json.Marshal(generateRequest{
		Model:   g.cfg.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: map[string]interface{}{"temperature": g.cfg.Temperature},
	})
	if err != nil {
		return ""
	}

	url := strings.TrimRight(g.cfg.BaseURL, "/") + "/api/generate"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ""
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		logger.Debugw("ollama generate failed", "error", err)
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ""
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ""
	}
	text := strings.TrimSpace(parsed.Response)
	if text == "" {
		return ""
	}
	if g.cfg.MaxChars > 0 && len(text) > g.cfg.MaxChars {
		text = text[:g.cfg.MaxChars]
	}
	return text
}

// FormatDetails renders the fact sheet handed to the model. Values are read
// from the record's payload first, then the record itself.
func FormatDetails(record map[string]interface{}) string {
	payload, _ := record["payload"].(map[string]interface{})
	pick := func(key string) interface{} {
		if payload != nil {
			if v, ok := payload[key]; ok && v != nil {
				return v
			}
		}
		if v, ok := record[key]; ok && v != nil {
			return v
		}
		return nil
	}

	title := pick("title")
	if title == nil || title == "" {
		title = "Lead"
	}
	lines := []string{fmt.Sprintf("Title: %v", title)}
	if v := pick("category_text"); v != nil && v != "" {
		lines = append(lines, fmt.Sprintf("Category: %v", v))
	}
	if v := pick("country"); v != nil && v != "" {
		lines = append(lines, fmt.Sprintf("Country: %v", v))
	}
	if v := pick("age_hours"); v != nil {
		lines = append(lines, fmt.Sprintf("Age hours: %v", v))
	}
	if v := pick("member_months"); v != nil {
		lines = append(lines, fmt.Sprintf("Member months: %v", v))
	}
	return strings.Join(lines, "\n")
}
