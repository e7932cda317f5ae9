package commands

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

var (
	configFile string
	logLevel   string
	noColor    bool
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "apiextractor",
		Short: "Build binding metamodels from C++ declarations and typesystem rules",
		Long: color.CyanString(`apiextractor - binding metamodel builder

apiextractor reads the declarations of a C++ library together with a
typesystem ruleset and produces the resolved metamodel that binding
generators work from: classes, functions, enums and their dependencies,
filtered and renamed by the rules.

Declarations that cannot be exposed are rejected with a reason instead of
failing the build.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: apiextractor.yaml in the working directory or a parent)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides log.level)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewBuildCommand())
	rootCmd.AddCommand(NewRejectionsCommand())
	rootCmd.AddCommand(NewWatchCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewHistoryCommand())
	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the apiextractor version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			titleColor := color.New(color.FgCyan, color.Bold)
			for _, row := range [][2]string{
				{"apiextractor version: ", Version},
				{"Git commit: ", GitCommit},
				{"Build date: ", BuildDate},
				{"Go version: ", goVer},
			} {
				titleColor.Fprint(out, row[0])
				fmt.Fprintln(out, row[1])
			}
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
