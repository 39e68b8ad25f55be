package httpclient

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURLSchemes(t *testing.T) {
	c := New(5 * time.Second)

	_, err := c.ValidateURL("https://example.com/hook")
	assert.NoError(t, err)

	_, err = c.ValidateURL("ftp://example.com/hook")
	assert.Error(t, err)

	_, err = c.ValidateURL("file:///etc/passwd")
	assert.Error(t, err)
}

func TestValidateURLBlocksLocalTargets(t *testing.T) {
	c := New(5 * time.Second)

	for _, u := range []string{
		"http://localhost/hook",
		"http://localhost.localdomain/hook",
		"http://127.0.0.1/hook",
		"http://10.1.2.3/hook",
		"http://192.168.1.1/hook",
		"http://169.254.1.1/hook",
	} {
		_, err := c.ValidateURL(u)
		assert.Error(t, err, u)
	}
}

func TestValidateURLBlocksCredentialConfusion(t *testing.T) {
	c := New(5 * time.Second)
	_, err := c.ValidateURL("http://evil.com@example.com/hook")
	assert.Error(t, err)
}

func TestBlockPrivateIPDisabled(t *testing.T) {
	off := false
	c := NewWithOptions(5*time.Second, Options{BlockPrivateIP: &off})

	_, err := c.ValidateURL("http://127.0.0.1:9000/hook")
	assert.NoError(t, err)
}

func TestWrapClientReachesLocalServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := WrapClient(srv.Client())
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestIsPrivateIP(t *testing.T) {
	assert.True(t, isPrivateIP(net.ParseIP("10.0.0.1")))
	assert.True(t, isPrivateIP(net.ParseIP("172.16.0.1")))
	assert.True(t, isPrivateIP(net.ParseIP("::1")))
	assert.True(t, isPrivateIP(net.ParseIP("fd00::1")))
	assert.False(t, isPrivateIP(net.ParseIP("8.8.8.8")))
	assert.False(t, isPrivateIP(net.ParseIP("2600::1")))
}
