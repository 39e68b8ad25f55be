package slotfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engyne/engyne/errors"
)

func TestValidateSlotID(t *testing.T) {
	valid := []string{"s1", "slot-1", "slot_1", "slot.1", "A9", "a"}
	for _, id := range valid {
		assert.NoError(t, ValidateSlotID(id), id)
	}

	invalid := []string{"", "../etc", "a/b", "a b", "slot!", ".." , "a\x00b"}
	for _, id := range invalid {
		err := ValidateSlotID(id)
		require.Error(t, err, "id %q", id)
		assert.True(t, errors.Is(err, errors.ErrInvalidSlotID), "id %q", id)
	}
}

func TestPathsFixedFilenames(t *testing.T) {
	root := t.TempDir()
	paths, err := Paths(root, "s1")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "s1"), paths.Root)
	assert.Equal(t, filepath.Join(root, "s1", "slot_config.yml"), paths.Config)
	assert.Equal(t, filepath.Join(root, "s1", "slot_state.json"), paths.State)
	assert.Equal(t, filepath.Join(root, "s1", "status.json"), paths.Status)
	assert.Equal(t, filepath.Join(root, "s1", "leads.jsonl"), paths.Leads)
	assert.Equal(t, filepath.Join(root, "s1", "slot_state.pid"), paths.Pid)
	assert.Equal(t, filepath.Join(root, "s1", "run_meta.json"), paths.RunMeta)
}

func TestPathEscapeRejectedWithoutTouchingFilesystem(t *testing.T) {
	root := filepath.Join(t.TempDir(), "never-created")
	_, err := Paths(root, "../etc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidSlotID))

	_, statErr := os.Stat(root)
	assert.True(t, os.IsNotExist(statErr), "rejection must not create the root")
}

func TestListDeterministicOrder(t *testing.T) {
	root := t.TempDir()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, id), 0o755))
	}
	// Non-directory entries and invalid names are skipped.
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bad name"), 0o755))

	paths, err := List(root)
	require.NoError(t, err)

	var ids []string
	for _, p := range paths {
		ids = append(ids, p.SlotID)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, ids)
}

func TestListCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "slots")
	_, err := List(root)
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
