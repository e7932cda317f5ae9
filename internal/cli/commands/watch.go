package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/apiextractor/internal/builder"
	"github.com/conduit-lang/apiextractor/internal/cli/ui"
	"github.com/conduit-lang/apiextractor/internal/report"
)

var watchVerbose bool

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the metamodel whenever an input changes",
		Long: `Build the metamodel, then watch the typesystem (including every included
ruleset) and the declaration tree. Each change triggers a rebuild and a new
summary; output.path is rewritten after every successful build.

Press Ctrl+C to stop.`,
		RunE: runWatch,
	}

	addInputFlags(cmd)
	cmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "List every diagnostic")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprint(errOut, ui.ConfigError(err.Error(), nil, noColor))
		return err
	}
	applyInputFlags(cmd, cfg)

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	built := func(result *builder.Result, elapsed time.Duration) {
		if err := writeOutput(cfg, report.FromResult(result), logger); err != nil {
			logger.Error("failed to write metamodel", zap.Error(err))
		}
		printSummary(out, result, elapsed, watchVerbose)
	}
	failed := func(err error) {
		fmt.Fprint(errOut, ui.BuildFailed(err, noColor))
	}

	start := time.Now()
	result, inputs, err := runPipelineInputs(cfg, logger)
	if len(inputs) == 0 {
		return err
	}
	if err != nil {
		failed(err)
	} else {
		built(result, time.Since(start))
	}

	r, err := startRebuilder(cfg, logger, inputs, rebuildHooks{
		onStart: func(changed []string) {
			color.New(color.FgCyan).Fprintf(out, "\nChanged: %s\n", joinBase(changed))
		},
		onBuilt: built,
		onError: failed,
	})
	if err != nil {
		return err
	}
	defer func() { _ = r.stop() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	color.New(color.FgYellow).Fprintln(out, "Watching for changes. Press Ctrl+C to stop.")
	<-ctx.Done()
	return nil
}
