package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/apiextractor/internal/cli/config"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

var (
	initTypesystem   string
	initDeclarations string
	initAPIVersion   string
	initOutput       string
	initYes          bool
	initForce        bool
)

// projectFile is the apiextractor.yaml written by init. Only the settings
// a new project usually changes are included.
type projectFile struct {
	Typesystem   string        `yaml:"typesystem"`
	Declarations string        `yaml:"declarations"`
	APIVersion   string        `yaml:"api_version,omitempty"`
	Output       projectOutput `yaml:"output,omitempty"`
	Log          projectLog    `yaml:"log"`
}

type projectOutput struct {
	Path     string `yaml:"path,omitempty"`
	Compress bool   `yaml:"compress,omitempty"`
}

type projectLog struct {
	Level string `yaml:"level"`
}

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create an apiextractor.yaml",
		Long: `Write an apiextractor.yaml naming the typesystem ruleset and the
declaration tree. Without --yes the settings are asked for interactively.`,
		Example: `  # Answer the prompts
  apiextractor init

  # Accept the defaults and flags without prompting
  apiextractor init --yes --typesystem typesystem_core.xml --api-version 6.2`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInit,
	}

	cmd.Flags().StringVarP(&initTypesystem, "typesystem", "t", "typesystem.xml", "Typesystem XML file")
	cmd.Flags().StringVarP(&initDeclarations, "declarations", "d", "declarations.yaml", "Declaration tree (YAML or JSON)")
	cmd.Flags().StringVar(&initAPIVersion, "api-version", "", "Active API version")
	cmd.Flags().StringVarP(&initOutput, "output", "o", "build/metamodel.json", "Metamodel output file")
	cmd.Flags().BoolVarP(&initYes, "yes", "y", false, "Do not prompt; use flags and defaults")
	cmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing apiextractor.yaml")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	path := filepath.Join(dir, config.FileName+".yaml")
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	project := projectFile{
		Typesystem:   initTypesystem,
		Declarations: initDeclarations,
		APIVersion:   initAPIVersion,
		Output:       projectOutput{Path: initOutput},
		Log:          projectLog{Level: "info"},
	}
	if !initYes {
		if err := promptProject(&project); err != nil {
			return err
		}
	}
	if err := validateVersion(project.APIVersion); err != nil {
		return err
	}

	data, err := yaml.Marshal(&project)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	color.New(color.FgGreen, color.Bold).Fprintf(out, "✓ Created %s\n", path)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	color.New(color.FgCyan).Fprintln(out, "  apiextractor build")
	return nil
}

func promptProject(project *projectFile) error {
	answers := struct {
		Typesystem   string
		Declarations string
		APIVersion   string
		Output       string
		Compress     bool
	}{}

	questions := []*survey.Question{
		{
			Name:     "typesystem",
			Prompt:   &survey.Input{Message: "Typesystem file:", Default: project.Typesystem},
			Validate: survey.Required,
		},
		{
			Name:     "declarations",
			Prompt:   &survey.Input{Message: "Declaration tree:", Default: project.Declarations},
			Validate: survey.Required,
		},
		{
			Name:   "apiversion",
			Prompt: &survey.Input{Message: "API version (empty for none):", Default: project.APIVersion},
			Validate: func(ans interface{}) error {
				s, _ := ans.(string)
				return validateVersion(s)
			},
		},
		{
			Name:   "output",
			Prompt: &survey.Input{Message: "Metamodel output file (empty for none):", Default: project.Output.Path},
		},
		{
			Name:   "compress",
			Prompt: &survey.Confirm{Message: "Gzip the metamodel?", Default: false},
		},
	}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	project.Typesystem = answers.Typesystem
	project.Declarations = answers.Declarations
	project.APIVersion = answers.APIVersion
	project.Output = projectOutput{Path: answers.Output, Compress: answers.Compress && answers.Output != ""}
	return nil
}

func validateVersion(v string) error {
	if v == "" {
		return nil
	}
	if _, err := typesystem.ParseVersion(v); err != nil {
		return fmt.Errorf("invalid API version %q: %w", v, err)
	}
	return nil
}
