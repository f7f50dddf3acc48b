// Package stats implements the "flowctl stats" subcommand: aggregates
// telemetry across multiple run directories.
package stats

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/internal/audit"
	"github.com/flowctl/flowctl/internal/cliutil"
)

// NewCommand builds the "stats" subcommand.
func NewCommand() *cobra.Command {
	var (
		runsDir string
		last    int
		groupBy string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate telemetry across recent runs",
		Long: `stats scans the most recent run directories under --runs-dir and
aggregates their summary.json (--group-by step) or mcp_calls.jsonl
(--group-by model) records.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, runsDir, last, groupBy)
		},
	}

	cmd.Flags().StringVar(&runsDir, "runs-dir", "./runs", "Base directory containing run directories")
	cmd.Flags().IntVar(&last, "last", 10, "Number of most recent runs to include")
	cmd.Flags().StringVar(&groupBy, "group-by", "step", "Aggregation key: step or model")
	return cmd
}

// GroupStats aggregates one step id or model name across runs.
type GroupStats struct {
	Key       string `json:"key"`
	OK        int    `json:"ok"`
	Fail      int    `json:"fail"`
	Retries   int    `json:"retries,omitempty"`
	TotalP95Ms int64  `json:"total_p95_ms,omitempty"`
	Runs      int    `json:"runs"`
}

func runStats(cmd *cobra.Command, runsDir string, last int, groupBy string) error {
	if groupBy != "step" && groupBy != "model" {
		return &cliutil.ExitError{Code: cliutil.ExitFailed, Message: "group-by must be step or model"}
	}

	dirs, err := recentRunDirs(runsDir, last)
	if err != nil {
		return &cliutil.ExitError{Code: cliutil.ExitFailed, Message: "list runs", Cause: err}
	}

	var groups map[string]*GroupStats
	if groupBy == "step" {
		groups, err = aggregateBySteps(dirs)
	} else {
		groups, err = aggregateByModel(dirs)
	}
	if err != nil {
		return &cliutil.ExitError{Code: cliutil.ExitFailed, Message: "aggregate", Cause: err}
	}

	sorted := make([]*GroupStats, 0, len(groups))
	for _, g := range groups {
		sorted = append(sorted, g)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	if cliutil.JSON() {
		return cliutil.EmitJSON(sorted)
	}

	cmd.Printf("stats over %d run(s), grouped by %s\n", len(dirs), groupBy)
	for _, g := range sorted {
		cmd.Printf("  %-24s ok=%d fail=%d retries=%d runs=%d\n", g.Key, g.OK, g.Fail, g.Retries, g.Runs)
	}
	return nil
}

// recentRunDirs returns up to `last` run directory paths under runsDir,
// most recently modified first.
func recentRunDirs(runsDir string, last int) ([]string, error) {
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type dirInfo struct {
		path    string
		modTime int64
	}
	var infos []dirInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, dirInfo{path: filepath.Join(runsDir, e.Name()), modTime: fi.ModTime().UnixNano()})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].modTime > infos[j].modTime })

	if last > 0 && last < len(infos) {
		infos = infos[:last]
	}

	dirs := make([]string, len(infos))
	for i, d := range infos {
		dirs[i] = d.path
	}
	return dirs, nil
}

func aggregateBySteps(dirs []string) (map[string]*GroupStats, error) {
	groups := make(map[string]*GroupStats)
	for _, dir := range dirs {
		data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		var summary audit.RunSummary
		if err := json.Unmarshal(data, &summary); err != nil {
			return nil, err
		}
		for stepID, st := range summary.Steps {
			g := groupFor(groups, stepID)
			g.OK += st.OK
			g.Fail += st.Fail
			g.Retries += st.Retries
			g.TotalP95Ms += st.P95Ms
			g.Runs++
		}
	}
	return groups, nil
}

func aggregateByModel(dirs []string) (map[string]*GroupStats, error) {
	groups := make(map[string]*GroupStats)
	for _, dir := range dirs {
		f, err := os.Open(filepath.Join(dir, "mcp_calls.jsonl"))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var rec audit.McpAuditRecord
			if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
				continue
			}
			g := groupFor(groups, rec.Model)
			switch rec.Status {
			case audit.McpStatusOK:
				g.OK++
			default:
				g.Fail++
			}
			g.TotalP95Ms += rec.LatencyMs
		}
		f.Close()
	}
	for _, g := range groups {
		g.Runs = len(dirs)
	}
	return groups, nil
}

func groupFor(groups map[string]*GroupStats, key string) *GroupStats {
	g, ok := groups[key]
	if !ok {
		g = &GroupStats{Key: key}
		groups[key] = g
	}
	return g
}
