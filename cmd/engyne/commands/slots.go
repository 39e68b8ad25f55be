package commands

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/engyne/engyne/config"
	"github.com/engyne/engyne/display"
	"github.com/engyne/engyne/errors"
	"github.com/engyne/engyne/slotfs"
)

// SlotsCmd groups slot directory inspection subcommands.
var SlotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Inspect slot directories",
}

var slotsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List slots with phase, pid, heartbeat age and lead counts",
	RunE:  runSlotsLs,
}

var slotsShowCmd = &cobra.Command{
	Use:   "show <slot_id>",
	Short: "Show the full on-disk snapshot for one slot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSlotsShow,
}

var slotsRoot string

func init() {
	SlotsCmd.PersistentFlags().StringVar(&slotsRoot, "slots-root", "", "Slots root directory (overrides config)")
	slotsLsCmd.Flags().Bool("json", false, "Output as JSON")
	slotsShowCmd.Flags().Bool("json", false, "Output as JSON")
	SlotsCmd.AddCommand(slotsLsCmd)
	SlotsCmd.AddCommand(slotsShowCmd)
}

func resolveSlotsRoot() (string, error) {
	if slotsRoot != "" {
		return slotsRoot, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", errors.Wrap(err, "load config")
	}
	return cfg.Slots.Root, nil
}

// slotRow is the per-slot summary emitted by ls.
type slotRow struct {
	SlotID              string   `json:"slot_id"`
	Phase               string   `json:"phase,omitempty"`
	Pid                 int      `json:"pid,omitempty"`
	HeartbeatAgeSeconds *float64 `json:"heartbeat_age_seconds,omitempty"`
	LeadsCount          *int     `json:"leads_count,omitempty"`
	QualityLevel        *int     `json:"quality_level,omitempty"`
	AutoBuy             bool     `json:"auto_buy,omitempty"`
	DryRun              bool     `json:"dry_run,omitempty"`
}

func snapshotRow(snap slotfs.SlotSnapshot) slotRow {
	row := slotRow{
		SlotID: snap.SlotID,
		Phase:  snap.Phase,
		Pid:    snap.Pid,
	}
	if snap.HeartbeatTS != nil {
		age := snap.HeartbeatAgeSeconds
		row.HeartbeatAgeSeconds = &age
	}
	if snap.HasLeadsCount {
		count := snap.LeadsCount
		row.LeadsCount = &count
	}
	if snap.Config != nil {
		quality := snap.Config.QualityLevel
		row.QualityLevel = &quality
		row.AutoBuy = snap.Config.AutoBuy
		row.DryRun = snap.Config.DryRunEnabled()
	}
	return row
}

func runSlotsLs(cmd *cobra.Command, args []string) error {
	root, err := resolveSlotsRoot()
	if err != nil {
		return err
	}
	paths, err := slotfs.List(root)
	if err != nil {
		return err
	}

	rows := make([]slotRow, 0, len(paths))
	for _, p := range paths {
		rows = append(rows, snapshotRow(slotfs.ReadSnapshot(p)))
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(rows)
	}

	if len(rows) == 0 {
		pterm.Info.Printf("No slots under %s\n", root)
		return nil
	}
	fmt.Printf("%-20s %-15s %8s %12s %8s %8s\n", "SLOT", "PHASE", "PID", "HEARTBEAT", "LEADS", "QUALITY")
	for _, row := range rows {
		fmt.Printf("%-20s %-15s %8s %12s %8s %8s\n",
			row.SlotID,
			orDash(row.Phase),
			intOrDash(row.Pid),
			heartbeatAge(row.HeartbeatAgeSeconds),
			ptrOrDash(row.LeadsCount),
			ptrOrDash(row.QualityLevel),
		)
	}
	return nil
}

func loadSnapshot(root, slotID string) (slotfs.SlotSnapshot, slotfs.SlotPaths, error) {
	paths, err := slotfs.Paths(root, slotID)
	if err != nil {
		return slotfs.SlotSnapshot{}, paths, err
	}
	if _, err := os.Stat(paths.Root); err != nil {
		return slotfs.SlotSnapshot{}, paths, errors.Wrapf(errors.ErrNotFound, "slot %q under %s", slotID, root)
	}
	return slotfs.ReadSnapshot(paths), paths, nil
}

func runSlotsShow(cmd *cobra.Command, args []string) error {
	root, err := resolveSlotsRoot()
	if err != nil {
		return err
	}
	snap, paths, err := loadSnapshot(root, args[0])
	if err != nil {
		if errors.IsNotFoundError(err) {
			pterm.Warning.Printf("No slot %q under %s (try: engyne slots ls)\n", args[0], root)
		}
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(map[string]interface{}{
			"slot_id":               snap.SlotID,
			"slot_dir":              paths.Root,
			"phase":                 snap.Phase,
			"pid":                   snap.Pid,
			"heartbeat_ts":          snap.HeartbeatTS,
			"heartbeat_age_seconds": snap.HeartbeatAgeSeconds,
			"leads_count":           snap.LeadsCount,
			"config":                snap.Config,
			"state":                 snap.State,
			"status":                snap.Status,
		})
	}

	pterm.Info.Printf("Slot %s (%s)\n", snap.SlotID, paths.Root)
	fmt.Printf("  Phase:     %s\n", orDash(snap.Phase))
	fmt.Printf("  Pid:       %s\n", intOrDash(snap.Pid))
	if snap.HeartbeatTS != nil {
		fmt.Printf("  Heartbeat: %s (%.1fs ago)\n", snap.HeartbeatTS.Format("2006-01-02 15:04:05 MST"), snap.HeartbeatAgeSeconds)
	} else {
		fmt.Printf("  Heartbeat: -\n")
	}
	if snap.HasLeadsCount {
		fmt.Printf("  Leads:     %d\n", snap.LeadsCount)
	}
	if snap.Config != nil {
		fmt.Printf("  Quality:   %d (auto_buy=%v dry_run=%v)\n",
			snap.Config.QualityLevel, snap.Config.AutoBuy, snap.Config.DryRunEnabled())
	} else {
		pterm.Warning.Println("  No slot_config.yml")
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func intOrDash(v int) string {
	if v <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", v)
}

func ptrOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func heartbeatAge(age *float64) string {
	if age == nil {
		return "-"
	}
	return fmt.Sprintf("%.0fs ago", *age)
}
