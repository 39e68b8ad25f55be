package alerts

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engyne/engyne/internal/httpclient"
)

func TestSendPostsSlackPayload(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL)
	n.SetClient(httpclient.WrapClient(srv.Client()))
	n.Send("slot restarted", "s1: heartbeat stale")

	require.Contains(t, got, "text")
	assert.Contains(t, got["text"], "*slot restarted*")
	assert.Contains(t, got["text"], "s1: heartbeat stale")
	assert.Contains(t, got["text"], "Time: ")
}

func TestSendWithoutURLIsNoop(t *testing.T) {
	n := NewNotifier("")
	assert.False(t, n.Enabled())
	n.Send("title", "message")
}

func TestSendSwallowsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL)
	n.SetClient(httpclient.WrapClient(srv.Client()))
	n.Send("title", "message")
}
