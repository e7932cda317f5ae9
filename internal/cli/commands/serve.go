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
	"github.com/conduit-lang/apiextractor/internal/server"
	"github.com/conduit-lang/apiextractor/internal/watch"
)

var (
	serveAddr  string
	serveWatch bool
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the metamodel over HTTP",
		Long: `Build the metamodel and serve it as JSON for inspection tools:

  GET /healthz              readiness and current run id
  GET /metamodel            the whole metamodel
  GET /classes?q=           class list, optionally filtered
  GET /classes/{name}       one class by qualified name
  GET /rejections?reason=&kind=
  GET /events               websocket stream of build events

With --watch the inputs are watched and the served metamodel is replaced
after every successful rebuild.`,
		Example: `  # Serve on the configured address (server.addr)
  apiextractor serve

  # Serve on another port and rebuild on changes
  apiextractor serve --addr localhost:9000 --watch`,
		RunE: runServe,
	}

	addInputFlags(cmd)
	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "Rebuild when an input changes")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprint(errOut, ui.ConfigError(err.Error(), nil, noColor))
		return err
	}
	applyInputFlags(cmd, cfg)
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = serveAddr
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	store := server.NewStore()
	result, inputs, err := runPipelineInputs(cfg, logger)
	if err != nil {
		fmt.Fprint(errOut, ui.BuildFailed(err, noColor))
		// A watching server can recover once the inputs are fixed.
		if !serveWatch || len(inputs) == 0 {
			return err
		}
	} else {
		store.Set(report.FromResult(result))
	}

	hub := watch.NewHub(logger)
	defer hub.Close()

	srv, err := server.New(server.DefaultConfig(cfg.Server.Addr), store, hub, logger)
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	if serveWatch {
		r, err := startRebuilder(cfg, logger, inputs, rebuildHooks{
			onStart: hub.NotifyBuilding,
			onBuilt: func(result *builder.Result, elapsed time.Duration) {
				store.Set(report.FromResult(result))
				hub.NotifyBuilt(result.RunID, elapsed, len(result.Classes), len(result.Rejections))
				logger.Info("metamodel rebuilt", zap.String("run_id", result.RunID), zap.Duration("elapsed", elapsed))
			},
			onError: func(err error) {
				hub.NotifyFailed(err)
				logger.Warn("rebuild failed", zap.Error(err))
			},
		})
		if err != nil {
			return err
		}
		defer func() { _ = r.stop() }()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	color.New(color.FgCyan, color.Bold).Fprintf(out, "Serving metamodel at http://%s\n", srv.Addr())
	return srv.Serve(ctx)
}
