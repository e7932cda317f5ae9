package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/apiextractor/internal/builder"
	"github.com/conduit-lang/apiextractor/internal/cli/config"
	"github.com/conduit-lang/apiextractor/internal/cli/ui"
	"github.com/conduit-lang/apiextractor/internal/errors"
	"github.com/conduit-lang/apiextractor/internal/publish"
	"github.com/conduit-lang/apiextractor/internal/report"
)

var (
	buildOutput   string
	buildCompress bool
	buildJSON     bool
	buildVerbose  bool
	buildStrict   bool
	buildPublish  bool
	buildRecord   bool
)

// NewBuildCommand creates the build command
func NewBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the metamodel and print a summary",
		Long: `Load the typesystem ruleset and the declaration tree, build the metamodel
and report what was generated and what was rejected.

Flags override the matching apiextractor.yaml settings.`,
		Example: `  # Build with the settings from apiextractor.yaml
  apiextractor build

  # Build for an older API version, dropping a deprecated module
  apiextractor build --api-version 5.15 --drop Core::Legacy

  # Write the metamodel as gzipped JSON
  apiextractor build -o build/metamodel.json.gz --compress

  # Print the metamodel JSON to stdout
  apiextractor build --json

  # Publish to Redis and record the run in the build history
  apiextractor build --publish --record`,
		RunE: runBuild,
	}

	addInputFlags(cmd)
	cmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Write the metamodel JSON to this file")
	cmd.Flags().BoolVar(&buildCompress, "compress", false, "Gzip the metamodel file")
	cmd.Flags().BoolVar(&buildJSON, "json", false, "Print the metamodel JSON to stdout instead of a summary")
	cmd.Flags().BoolVarP(&buildVerbose, "verbose", "v", false, "List every diagnostic")
	cmd.Flags().BoolVar(&buildStrict, "strict", false, "Fail when the ruleset has consistency warnings")
	cmd.Flags().BoolVar(&buildPublish, "publish", false, "Publish the metamodel to Redis (publish.redis_url)")
	cmd.Flags().BoolVar(&buildRecord, "record", false, "Record the run in the build history (history.dsn)")

	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	startTime := time.Now()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), nil, noColor))
		return err
	}
	applyInputFlags(cmd, cfg)
	if cmd.Flags().Changed("output") {
		cfg.Output.Path = absPath(buildOutput)
	}
	if cmd.Flags().Changed("compress") {
		cfg.Output.Compress = buildCompress
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	result, err := runPipeline(cfg, logger)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.BuildFailed(err, noColor))
		return err
	}

	metamodel := report.FromResult(result)
	if err := writeOutput(cfg, metamodel, logger); err != nil {
		return err
	}
	if buildPublish {
		key, err := publishMetamodel(cmd.Context(), cfg, metamodel)
		if err != nil {
			return err
		}
		logger.Info("metamodel published", zap.String("key", key))
	}
	if buildRecord {
		if err := recordRun(cmd.Context(), cfg, metamodel); err != nil {
			return err
		}
		logger.Info("run recorded", zap.String("run_id", metamodel.RunID))
	}

	if buildJSON {
		data, err := report.Serialize(metamodel)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		printSummary(out, result, time.Since(startTime), buildVerbose)
	}

	if n := consistencyWarnings(result); buildStrict && n > 0 {
		return fmt.Errorf("ruleset has %d consistency warnings (--strict)", n)
	}
	return nil
}

func consistencyWarnings(result *builder.Result) int {
	n := 0
	for _, d := range result.Diagnostics {
		if d.Category == errors.CategoryConsistency {
			n++
		}
	}
	return n
}

// writeOutput writes the metamodel file when output.path is set.
func writeOutput(cfg *config.Config, metamodel *report.Metamodel, logger *zap.Logger) error {
	if cfg.Output.Path == "" {
		return nil
	}
	path := cfg.Resolve(cfg.Output.Path)
	write := report.WriteToFile
	if cfg.Output.Compress {
		write = report.WriteCompressedToFile
	}
	if err := write(metamodel, path); err != nil {
		return err
	}
	logger.Info("metamodel written", zap.String("path", path), zap.Bool("compressed", cfg.Output.Compress))
	return nil
}

func publishMetamodel(ctx context.Context, cfg *config.Config, metamodel *report.Metamodel) (string, error) {
	if cfg.Publish.RedisURL == "" {
		return "", fmt.Errorf("publish.redis_url is not set")
	}
	p, err := publish.Connect(ctx, cfg.Publish.RedisURL, cfg.Publish.Prefix, cfg.Publish.TTL)
	if err != nil {
		return "", err
	}
	defer p.Close()
	return p.Publish(ctx, metamodel, "")
}

func recordRun(ctx context.Context, cfg *config.Config, metamodel *report.Metamodel) error {
	store, err := openHistory(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.Record(ctx, metamodel)
	return err
}

func printSummary(out io.Writer, result *builder.Result, elapsed time.Duration, verbose bool) {

	enums := len(result.GlobalEnums)
	functions := len(result.GlobalFunctions)
	for _, c := range result.Classes {
		enums += len(c.Enums)
		functions += len(c.Functions)
	}
	_, warnings, _ := result.Diagnostics.Count()

	ui.Header(out, "Metamodel", noColor)
	kv := ui.NewKeyValueTable(out, noColor)
	if result.APIVersion != "" {
		kv.AddRow("API version", result.APIVersion)
	}
	kv.AddRow("Classes", len(result.Classes))
	kv.AddRow("Templates", len(result.Templates))
	kv.AddRow("Smart pointers", len(result.SmartPointers))
	kv.AddRow("Functions", functions)
	kv.AddRow("Enums", enums)
	kv.AddRow("Rejections", len(result.Rejections))
	kv.AddRow("Warnings", warnings)
	if len(result.BrokenDependencies) > 0 {
		kv.AddRow("Broken cycles", len(result.BrokenDependencies))
	}
	kv.Render()
	fmt.Fprintln(out)

	if verbose {
		for _, d := range result.Diagnostics {
			fmt.Fprintln(out, ui.DiagnosticLine(d, noColor))
		}
		if len(result.Diagnostics) > 0 {
			fmt.Fprintln(out)
		}
	} else if warnings > 0 {
		fmt.Fprint(out, ui.Warning(fmt.Sprintf("%d diagnostics; rerun with --verbose to list them", warnings), noColor))
		fmt.Fprintln(out)
	}

	ui.WriteSuccess(out, fmt.Sprintf("Metamodel built in %s", elapsed.Round(time.Millisecond)), noColor)
	if result.RunID != "" {
		color.New(color.FgHiBlack).Fprintf(out, "  run %s\n", result.RunID)
	}
}
