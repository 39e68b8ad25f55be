package slotfs

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotPathsForTest(t *testing.T) SlotPaths {
	t.Helper()
	paths, err := Paths(t.TempDir(), "s1")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(paths.Root, 0o755))
	return paths
}

func TestReadSnapshotEmptySlot(t *testing.T) {
	paths := slotPathsForTest(t)
	snap := ReadSnapshot(paths)

	assert.Equal(t, "s1", snap.SlotID)
	assert.Nil(t, snap.Config)
	assert.Nil(t, snap.State)
	assert.Nil(t, snap.HeartbeatTS)
	assert.False(t, snap.HasLeadsCount)
	assert.Zero(t, snap.Pid)
	assert.Empty(t, snap.Phase)
}

func TestReadSnapshotFromState(t *testing.T) {
	paths := slotPathsForTest(t)

	state := SlotState{
		SlotID:      "s1",
		Phase:       PhaseParseLeads,
		RunID:       "run-1",
		Pid:         4321,
		HeartbeatTS: time.Now().UTC().Add(-5 * time.Second).Format(time.RFC3339Nano),
	}
	require.NoError(t, WriteState(paths, state))
	for i := 0; i < 4; i++ {
		require.NoError(t, AppendJSONL(paths.Leads, map[string]int{"i": i}))
	}

	snap := ReadSnapshot(paths)
	require.NotNil(t, snap.HeartbeatTS)
	assert.InDelta(t, 5, snap.HeartbeatAgeSeconds, 2)
	assert.Equal(t, 4321, snap.Pid)
	assert.Equal(t, "PARSE_LEADS", snap.Phase)
	assert.True(t, snap.HasLeadsCount)
	assert.Equal(t, 4, snap.LeadsCount)
}

func TestHeartbeatKeyAliases(t *testing.T) {
	for _, key := range []string{"heartbeat_ts", "heartbeat", "last_heartbeat", "heartbeat_at"} {
		paths := slotPathsForTest(t)
		doc := map[string]interface{}{key: time.Now().UTC().Format(time.RFC3339)}
		require.NoError(t, WriteJSONAtomic(paths.State, doc))

		snap := ReadSnapshot(paths)
		assert.NotNil(t, snap.HeartbeatTS, "key %s", key)
	}
}

func TestHeartbeatEpochSeconds(t *testing.T) {
	paths := slotPathsForTest(t)
	doc := map[string]interface{}{"heartbeat_ts": float64(time.Now().Unix())}
	require.NoError(t, WriteJSONAtomic(paths.State, doc))

	snap := ReadSnapshot(paths)
	require.NotNil(t, snap.HeartbeatTS)
	assert.Less(t, snap.HeartbeatAgeSeconds, 5.0)
}

func TestHeartbeatAgeNeverNegative(t *testing.T) {
	paths := slotPathsForTest(t)
	future := time.Now().UTC().Add(30 * time.Second).Format(time.RFC3339)
	require.NoError(t, WriteJSONAtomic(paths.State, map[string]interface{}{"heartbeat_ts": future}))

	snap := ReadSnapshot(paths)
	assert.GreaterOrEqual(t, snap.HeartbeatAgeSeconds, 0.0)
}

func TestStatusFallback(t *testing.T) {
	paths := slotPathsForTest(t)
	// State is malformed; status still carries the signal.
	require.NoError(t, os.WriteFile(paths.State, []byte("{broken"), 0o644))
	require.NoError(t, WriteJSONAtomic(paths.Status, map[string]interface{}{
		"worker_pid": float64(777),
		"status":     "COOLDOWN",
	}))

	snap := ReadSnapshot(paths)
	assert.Equal(t, 777, snap.Pid)
	assert.Equal(t, "COOLDOWN", snap.Phase)
}

func TestPidFileRoundTrip(t *testing.T) {
	paths := slotPathsForTest(t)
	require.NoError(t, WritePidFile(paths, 1234))
	assert.Equal(t, 1234, ReadPidFile(paths))

	ClearPidFile(paths)
	assert.Zero(t, ReadPidFile(paths))
}

func TestRunMetaRoundTrip(t *testing.T) {
	paths := slotPathsForTest(t)
	require.NoError(t, WriteRunMeta(paths, "run-42"))

	meta, ok := ReadRunMeta(paths)
	require.True(t, ok)
	assert.Equal(t, "s1", meta.SlotID)
	assert.Equal(t, "run-42", meta.RunID)
	assert.NotEmpty(t, meta.StartedAt)
}

func TestWriteStateMirrorsStatus(t *testing.T) {
	paths := slotPathsForTest(t)
	require.NoError(t, WriteState(paths, SlotState{
		SlotID:      "s1",
		Phase:       PhaseBoot,
		HeartbeatTS: UTCNow(),
	}))

	state, ok := ReadJSONDoc(paths.State)
	require.True(t, ok)
	status, ok := ReadJSONDoc(paths.Status)
	require.True(t, ok)
	assert.Equal(t, state["phase"], status["phase"])
}
