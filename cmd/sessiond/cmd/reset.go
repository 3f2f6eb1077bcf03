package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/config"
)

var (
	resetIncludeEvents bool
	resetForce         bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove persistent forensics and event data",
	Long: `Reset sessiond by removing its persistent on-disk data.

By default only the forensics archive database is removed. This clears
all archived session snapshots, activity, and event history.

Optional flags:
  --include-events  Also remove the event log directory
  --force           Skip confirmation prompt

Examples:
  # Remove the forensics archive (interactive confirmation)
  sessiond reset

  # Remove everything without prompting
  sessiond reset --include-events --force`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetIncludeEvents, "include-events", false, "Also remove event log files")
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Skip confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg := loadConfigForReset()

	// Build list of targets to remove.
	type target struct {
		path string
		desc string
	}
	var targets []target

	// Forensics archive, unless it is the in-memory database.
	if cfg.Archive.Path != "" && cfg.Archive.Path != ":memory:" {
		targets = append(targets, target{cfg.Archive.Path, "forensics archive"})
	}

	// Optional: event log directory.
	if resetIncludeEvents {
		if dir := eventLogDir(cfg.Events.Output); dir != "" {
			targets = append(targets, target{dir, "event log directory"})
		}
	}

	// Check what actually exists.
	var existing []target
	for _, t := range targets {
		if _, err := os.Stat(t.path); err == nil {
			existing = append(existing, t)
		}
	}

	if len(existing) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to reset, no persistent data found.")
		return nil
	}

	// Show what will be removed.
	fmt.Fprintln(os.Stderr, "The following will be removed:")
	for _, t := range existing {
		fmt.Fprintf(os.Stderr, "  - %s (%s)\n", t.path, t.desc)
	}

	// Confirm unless --force.
	if !resetForce {
		fmt.Fprint(os.Stderr, "\nProceed? [y/N] ")
		var answer string
		fmt.Scanln(&answer) //nolint:errcheck // interactive prompt, error irrelevant
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(os.Stderr, "Aborted.")
			return nil
		}
	}

	// Remove targets.
	var failed int
	for _, t := range existing {
		if err := os.RemoveAll(t.path); err != nil {
			fmt.Fprintf(os.Stderr, "  ERROR removing %s: %v\n", t.path, err)
			failed++
		} else {
			fmt.Fprintf(os.Stderr, "  Removed %s\n", t.path)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d file(s) could not be removed", failed)
	}

	fmt.Fprintln(os.Stderr, "\nReset complete. sessiond will start fresh on next launch.")
	return nil
}

// loadConfigForReset loads config to discover data paths. Falls back to
// defaults when no config can be read (non-fatal for reset).
func loadConfigForReset() *config.Config {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		cfg = &config.Config{}
		cfg.SetDefaults()
	}
	return cfg
}

// eventLogDir extracts the directory from a "file://<dir>" event output.
// Returns "" for stdout or malformed values.
func eventLogDir(output string) string {
	const prefix = "file://"
	if len(output) > len(prefix) && output[:len(prefix)] == prefix {
		return output[len(prefix):]
	}
	return ""
}
