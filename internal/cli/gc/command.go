// Package gc implements the "flowctl gc" subcommand: prunes old run
// directories, keeping only the most recently modified N.
package gc

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/internal/cliutil"
)

// NewCommand builds the "gc" subcommand.
func NewCommand() *cobra.Command {
	var (
		baseDir string
		keep    int
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Prune old run directories",
		Long: `gc keeps the --keep most recently modified run directories under
--base-dir and removes the rest. With --dry-run it reports what would be
removed without deleting anything.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGC(cmd, baseDir, keep, dryRun)
		},
	}

	cmd.Flags().StringVar(&baseDir, "base-dir", "./runs", "Base directory containing run directories")
	cmd.Flags().IntVar(&keep, "keep", 50, "Number of most recent run directories to retain")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List directories that would be removed without deleting them")
	return cmd
}

type dirInfo struct {
	name    string
	path    string
	modTime int64
}

func runGC(cmd *cobra.Command, baseDir string, keep int, dryRun bool) error {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &cliutil.ExitError{Code: cliutil.ExitFailed, Message: "list run directories", Cause: err}
	}

	var dirs []dirInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, dirInfo{name: e.Name(), path: filepath.Join(baseDir, e.Name()), modTime: fi.ModTime().UnixNano()})
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].modTime > dirs[j].modTime })

	if keep < 0 {
		keep = 0
	}
	var toRemove []dirInfo
	if keep < len(dirs) {
		toRemove = dirs[keep:]
	}

	if cliutil.JSON() {
		names := make([]string, len(toRemove))
		for i, d := range toRemove {
			names[i] = d.name
		}
		if err := cliutil.EmitJSON(map[string]interface{}{"removed": names, "dry_run": dryRun}); err != nil {
			return err
		}
	} else if len(toRemove) == 0 {
		cmd.Println(cliutil.RenderOK("nothing to remove"))
	} else {
		for _, d := range toRemove {
			if dryRun {
				cmd.Printf("would remove %s\n", d.name)
			} else {
				cmd.Printf("removing %s\n", d.name)
			}
		}
	}

	if dryRun {
		return nil
	}

	for _, d := range toRemove {
		if err := os.RemoveAll(d.path); err != nil {
			return &cliutil.ExitError{Code: cliutil.ExitFailed, Message: "remove " + d.name, Cause: err}
		}
	}
	return nil
}
