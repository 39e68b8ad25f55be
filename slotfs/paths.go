// Package slotfs defines the on-disk contract between the supervisor, slot
// workers, and external readers: per-slot directories with fixed artifact
// filenames, atomic small-document writes, and append-only JSONL logs.
package slotfs

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/engyne/engyne/errors"
)

var slotIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Fixed artifact filenames inside a slot directory.
const (
	ConfigFilename  = "slot_config.yml"
	StateFilename   = "slot_state.json"
	StatusFilename  = "status.json"
	LeadsFilename   = "leads.jsonl"
	PidFilename     = "slot_state.pid"
	RunMetaFilename = "run_meta.json"
)

// SlotPaths is the resolved artifact tuple for one slot.
type SlotPaths struct {
	SlotID  string
	Root    string // slot directory
	Config  string
	State   string
	Status  string
	Leads   string
	Pid     string
	RunMeta string
}

// ValidateSlotID rejects slot ids with disallowed characters. Allowed:
// alphanumerics, dot, underscore, dash.
func ValidateSlotID(slotID string) error {
	if !slotIDPattern.MatchString(slotID) {
		return errors.Wrapf(errors.ErrInvalidSlotID, "%q (use alnum, dot, underscore, dash)", slotID)
	}
	// "." and ".." satisfy the character class but are path traversal.
	if slotID == "." || slotID == ".." {
		return errors.Wrapf(errors.ErrInvalidSlotID, "%q", slotID)
	}
	return nil
}

// EnsureSlotsRoot creates the slots root if needed and returns its absolute
// path.
func EnsureSlotsRoot(slotsRoot string) (string, error) {
	abs, err := filepath.Abs(expandHome(slotsRoot))
	if err != nil {
		return "", errors.Wrap(err, "resolve slots root")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", errors.Wrap(err, "create slots root")
	}
	return abs, nil
}

// Paths resolves the artifact paths for a slot id under the slots root.
// The resolved slot directory must stay inside the root; escape is a hard
// error and never touches the filesystem.
func Paths(slotsRoot, slotID string) (SlotPaths, error) {
	if err := ValidateSlotID(slotID); err != nil {
		return SlotPaths{}, err
	}
	rootAbs, err := filepath.Abs(expandHome(slotsRoot))
	if err != nil {
		return SlotPaths{}, errors.Wrap(err, "resolve slots root")
	}
	slotDir := filepath.Clean(filepath.Join(rootAbs, slotID))
	if slotDir != rootAbs && !strings.HasPrefix(slotDir, rootAbs+string(filepath.Separator)) {
		return SlotPaths{}, errors.Wrapf(errors.ErrInvalidSlotID, "%q escapes slots root", slotID)
	}
	return SlotPaths{
		SlotID:  slotID,
		Root:    slotDir,
		Config:  filepath.Join(slotDir, ConfigFilename),
		State:   filepath.Join(slotDir, StateFilename),
		Status:  filepath.Join(slotDir, StatusFilename),
		Leads:   filepath.Join(slotDir, LeadsFilename),
		Pid:     filepath.Join(slotDir, PidFilename),
		RunMeta: filepath.Join(slotDir, RunMetaFilename),
	}, nil
}

// List enumerates slot directories under the root in lexicographic slot-id
// order. Entries whose names fail validation are skipped.
func List(slotsRoot string) ([]SlotPaths, error) {
	root, err := EnsureSlotsRoot(slotsRoot)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrap(err, "read slots root")
	}
	var results []SlotPaths
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		paths, err := Paths(root, entry.Name())
		if err != nil {
			// Stray directories that aren't valid slot ids are expected;
			// anything else is a real resolution failure.
			if errors.IsInvalidSlotIDError(err) {
				continue
			}
			return nil, err
		}
		results = append(results, paths)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].SlotID < results[j].SlotID })
	return results, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
