package dispatch

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureChannelPaths(t *testing.T) {
	root := t.TempDir()
	paths, err := EnsureChannelPaths(root, "email")
	require.NoError(t, err)

	for _, p := range []string{paths.Queue, paths.Offset, paths.Sent, paths.Rate, paths.ContactState, paths.Proofs} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	_, err = EnsureChannelPaths(root, "pigeon")
	assert.Error(t, err)
}

func TestValidChannel(t *testing.T) {
	for _, c := range Channels {
		assert.True(t, ValidChannel(c))
	}
	assert.False(t, ValidChannel("sms"))
	assert.False(t, ValidChannel(""))
}

func TestRequiresContact(t *testing.T) {
	assert.True(t, RequiresContact("whatsapp"))
	assert.True(t, RequiresContact("telegram"))
	assert.True(t, RequiresContact("email"))
	assert.True(t, RequiresContact("push"))
	assert.False(t, RequiresContact("sheets"))
}

func TestExtractContactPreferenceOrder(t *testing.T) {
	payload := map[string]interface{}{
		"phone":    "+91111",
		"whatsapp": "+92222",
	}
	assert.Equal(t, "+92222", ExtractContact(payload, "whatsapp"))

	delete(payload, "whatsapp")
	assert.Equal(t, "+91111", ExtractContact(payload, "whatsapp"))

	assert.Empty(t, ExtractContact(map[string]interface{}{}, "whatsapp"))
	assert.Empty(t, ExtractContact(nil, "whatsapp"))
}

func TestExtractContactNonStringValues(t *testing.T) {
	// Telegram chat ids arrive as JSON numbers.
	payload := map[string]interface{}{"chat_id": float64(123456789)}
	assert.Equal(t, "123456789", ExtractContact(payload, "telegram"))

	// Push subscriptions arrive as objects.
	payload = map[string]interface{}{
		"subscription": map[string]interface{}{"endpoint": "https://push.example.com/x"},
	}
	contact := ExtractContact(payload, "push")
	assert.Contains(t, contact, "push.example.com")
}

func TestExtractContactSkipsEmptyValues(t *testing.T) {
	payload := map[string]interface{}{
		"whatsapp": "",
		"phone":    "+91111",
	}
	assert.Equal(t, "+91111", ExtractContact(payload, "whatsapp"))
}
