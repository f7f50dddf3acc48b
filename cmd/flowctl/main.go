package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	diffcmd "github.com/flowctl/flowctl/internal/cli/diff"
	gccmd "github.com/flowctl/flowctl/internal/cli/gc"
	logscmd "github.com/flowctl/flowctl/internal/cli/logs"
	runcmd "github.com/flowctl/flowctl/internal/cli/run"
	statscmd "github.com/flowctl/flowctl/internal/cli/stats"
	validatecmd "github.com/flowctl/flowctl/internal/cli/validate"
	"github.com/flowctl/flowctl/internal/cliutil"
	"github.com/flowctl/flowctl/internal/log"
)

var version = "dev"

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		cliutil.HandleExitError(err)
	}
}

func newRootCommand() *cobra.Command {
	var (
		logLevel    string
		logFormat   string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:           "flowctl",
		Short:         "flowctl runs declarative multi-agent flows",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(log.New(&log.Config{Level: logLevel, Format: log.Format(logFormat)}))

			if metricsAddr != "" {
				startMetricsServer(metricsAddr)
			}
		},
	}

	cmd.PersistentFlags().BoolVar(cliutil.JSONFlagPtr(), "json", false, "Render output as JSON")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format: json, text")
	cmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	cmd.AddCommand(
		runcmd.NewCommand(),
		validatecmd.NewCommand(),
		diffcmd.NewCommand(),
		logscmd.NewCommand(),
		statscmd.NewCommand(),
		gccmd.NewCommand(),
	)

	return cmd
}

// startMetricsServer exposes the process's default Prometheus registry over
// HTTP. The collectors that "run" records on its own *metrics.Registry are
// registered on a separate prometheus.Registry and are not served here.
func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintln(os.Stderr, "metrics server:", err)
		}
	}()
}
