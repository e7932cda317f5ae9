package commands

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/apiextractor/internal/builder"
	"github.com/conduit-lang/apiextractor/internal/cli/config"
	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/logging"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

var (
	inputTypesystem   string
	inputDeclarations string
	inputAPIVersion   string
	inputDrop         []string
	inputIncludePaths []string
)

// addInputFlags registers the flags naming the build inputs.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&inputTypesystem, "typesystem", "t", "", "Typesystem XML file")
	cmd.Flags().StringVarP(&inputDeclarations, "declarations", "d", "", "Declaration tree (YAML or JSON)")
	cmd.Flags().StringVar(&inputAPIVersion, "api-version", "", "Active API version")
	cmd.Flags().StringSliceVar(&inputDrop, "drop", nil, "Type entries to drop (repeatable)")
	cmd.Flags().StringSliceVarP(&inputIncludePaths, "include-path", "I", nil, "Typesystem include search path (repeatable)")
}

// applyInputFlags copies explicitly set flags over the configuration. Paths
// given on the command line are relative to the working directory, not to
// the config file.
func applyInputFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("typesystem") {
		cfg.Typesystem = absPath(inputTypesystem)
	}
	if flags.Changed("declarations") {
		cfg.Declarations = absPath(inputDeclarations)
	}
	if flags.Changed("api-version") {
		cfg.APIVersion = inputAPIVersion
	}
	if flags.Changed("drop") {
		cfg.DropTypeEntries = append(cfg.DropTypeEntries, inputDrop...)
	}
	if flags.Changed("include-path") {
		for _, p := range inputIncludePaths {
			cfg.TypesystemPaths = append(cfg.TypesystemPaths, absPath(p))
		}
	}
}

func absPath(path string) string {
	if path == "" {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// loadConfig reads --config or the nearest apiextractor.yaml and applies
// the persistent flags.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		if _, err := logging.ParseLevel(logLevel); err != nil {
			return nil, err
		}
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// newLogger builds the logger for a command; a broken log setup never
// stops a build.
func newLogger(cfg *config.Config) *zap.Logger {
	return logging.MustNew(cfg.LoggingOptions())
}

// runPipeline loads the ruleset and the declaration tree named by cfg and
// builds the metamodel.
func runPipeline(cfg *config.Config, logger *zap.Logger) (*builder.Result, error) {
	result, _, err := runPipelineInputs(cfg, logger)
	return result, err
}

// runPipelineInputs is runPipeline that also reports every input file read,
// as absolute paths, so a watcher can follow includes. The inputs read
// before a failure are still returned.
func runPipelineInputs(cfg *config.Config, logger *zap.Logger) (*builder.Result, []string, error) {
	if cfg.Typesystem == "" {
		return nil, nil, fmt.Errorf("no typesystem file configured (set typesystem in apiextractor.yaml or pass --typesystem)")
	}
	if cfg.Declarations == "" {
		return nil, nil, fmt.Errorf("no declaration tree configured (set declarations in apiextractor.yaml or pass --declarations)")
	}
	typesystemPath := absPath(cfg.Resolve(cfg.Typesystem))
	declarationsPath := absPath(cfg.Resolve(cfg.Declarations))
	inputs := []string{typesystemPath, declarationsPath}

	registry := typesystem.NewRegistry()
	if err := cfg.Configure(registry); err != nil {
		return nil, inputs, fmt.Errorf("failed to configure type registry: %w", err)
	}
	loader := typesystem.NewLoader(registry, logger, cfg.SearchPaths()...)
	err := loader.LoadFile(typesystemPath)
	inputs = mergeInputs(inputs, loader.LoadedFiles())
	if err != nil {
		return nil, inputs, err
	}

	model, err := codemodel.Load(declarationsPath)
	if err != nil {
		return nil, inputs, err
	}

	b := builder.New(registry,
		builder.WithLogger(logger),
		builder.WithCacheSize(cfg.Resolver.CacheSize))
	result, err := b.Build(model)
	return result, inputs, err
}

func mergeInputs(inputs, more []string) []string {
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		seen[in] = true
	}
	for _, in := range more {
		if !seen[in] {
			seen[in] = true
			inputs = append(inputs, in)
		}
	}
	sort.Strings(inputs)
	return inputs
}
