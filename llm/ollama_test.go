package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engyne/engyne/config"
	"github.com/engyne/engyne/internal/httpclient"
)

func testConfig(baseURL string) config.OllamaConfig {
	return config.OllamaConfig{
		Enabled:        true,
		BaseURL:        baseURL,
		Model:          "llama3.1",
		Temperature:    0.4,
		TimeoutSeconds: 2,
		MaxChars:       480,
		SystemPrompt:   "Be brief.",
		PromptTemplate: "Draft from:\n{details}",
	}
}

func TestGenerate(t *testing.T) {
	var gotReq map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]string{"response": "  Hello, saw your valve enquiry.  "})
	}))
	defer srv.Close()

	g := NewGenerator(testConfig(srv.URL))
	g.SetClient(httpclient.WrapClient(srv.Client()))

	record := map[string]interface{}{
		"payload": map[string]interface{}{"title": "Industrial valve", "country": "India"},
	}
	msg := g.Generate(record, "whatsapp")
	assert.Equal(t, "Hello, saw your valve enquiry.", msg)

	assert.Equal(t, "llama3.1", gotReq["model"])
	assert.Equal(t, false, gotReq["stream"])
	prompt, _ := gotReq["prompt"].(string)
	assert.Contains(t, prompt, "Be brief.")
	assert.Contains(t, prompt, "Title: Industrial valve")
	assert.Contains(t, prompt, "Country: India")
}

func TestGenerateDisabled(t *testing.T) {
	cfg := testConfig("http://localhost:1")
	cfg.Enabled = false
	g := NewGenerator(cfg)
	assert.Empty(t, g.Generate(map[string]interface{}{}, "whatsapp"))
}

func TestGenerateChannelAllowlist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"response": "hi"})
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Channels = "whatsapp, email"
	g := NewGenerator(cfg)
	g.SetClient(httpclient.WrapClient(srv.Client()))

	assert.NotEmpty(t, g.Generate(map[string]interface{}{}, "whatsapp"))
	assert.NotEmpty(t, g.Generate(map[string]interface{}{}, "EMAIL"))
	assert.Empty(t, g.Generate(map[string]interface{}{}, "telegram"))
}

func TestGenerateFailureReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGenerator(testConfig(srv.URL))
	g.SetClient(httpclient.WrapClient(srv.Client()))
	assert.Empty(t, g.Generate(map[string]interface{}{}, "whatsapp"))

	// Unreachable daemon.
	g = NewGenerator(testConfig("http://127.0.0.1:1"))
	assert.Empty(t, g.Generate(map[string]interface{}{}, "whatsapp"))
}

func TestGenerateTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"response": strings.Repeat("a", 1000)})
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxChars = 100
	g := NewGenerator(cfg)
	g.SetClient(httpclient.WrapClient(srv.Client()))
	assert.Len(t, g.Generate(map[string]interface{}{}, "whatsapp"), 100)
}

func TestFormatDetails(t *testing.T) {
	record := map[string]interface{}{
		"country": "India",
		"payload": map[string]interface{}{
			"title":         "Valve",
			"age_hours":     2.5,
			"member_months": 36,
		},
	}
	details := FormatDetails(record)
	assert.Contains(t, details, "Title: Valve")
	assert.Contains(t, details, "Country: India")
	assert.Contains(t, details, "Age hours: 2.5")
	assert.Contains(t, details, "Member months: 36")

	assert.Equal(t, "Title: Lead", FormatDetails(map[string]interface{}{}))
}
