package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engyne/engyne/slotfs"
)

func writeFixture(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.jsonl")
	var data []byte
	for _, line := range lines {
		data = append(data, []byte(line+"\n")...)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestStubSourceProducesNothing(t *testing.T) {
	leads, err := StubSource{}.Fetch(context.Background(), 10)
	assert.NoError(t, err)
	assert.Empty(t, leads)
}

func TestFixtureSourceBatches(t *testing.T) {
	path := writeFixture(t,
		`{"lead_id": "L1", "title": "Valve"}`,
		`{"lead_id": "L2", "title": "Pump"}`,
		`{"lead_id": "L3", "title": "Fitting"}`,
	)
	src := NewFixtureSource(path)

	batch, err := src.Fetch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "L1", batch[0].LeadID)
	assert.Equal(t, "L2", batch[1].LeadID)

	batch, err = src.Fetch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "L3", batch[0].LeadID)

	// Exhausted.
	batch, err = src.Fetch(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestFixtureSourceSkipsMalformedLines(t *testing.T) {
	path := writeFixture(t,
		`{"lead_id": "L1"}`,
		`{broken`,
		`{"lead_id": "L2"}`,
	)
	src := NewFixtureSource(path)

	batch, err := src.Fetch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "L2", batch[1].LeadID)
}

func TestFixtureSourceAbsentFile(t *testing.T) {
	src := NewFixtureSource(filepath.Join(t.TempDir(), "missing.jsonl"))
	batch, err := src.Fetch(context.Background(), 10)
	assert.NoError(t, err)
	assert.Empty(t, batch)
}

func TestFixtureSourcePicksUpAppendedLines(t *testing.T) {
	path := writeFixture(t, `{"lead_id": "L1"}`)
	src := NewFixtureSource(path)

	batch, err := src.Fetch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	require.NoError(t, slotfs.AppendJSONL(path, map[string]string{"lead_id": "L2"}))
	batch, err = src.Fetch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "L2", batch[0].LeadID)
}
