package commands

import (
	"github.com/spf13/cobra"

	"github.com/conduit-lang/apiextractor/internal/builder"
)

// NewCompletionCommand creates the completion command for shell completions
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate a shell completion script for apiextractor.

Bash:

  $ source <(apiextractor completion bash)

Zsh:

  $ apiextractor completion zsh > "${fpath[1]}/_apiextractor"

Fish:

  $ apiextractor completion fish > ~/.config/fish/completions/apiextractor.fish

PowerShell:

  PS> apiextractor completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			root := cmd.Root()

			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}

// registerRejectionCompletions completes --reason and --kind values.
func registerRejectionCompletions(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("reason", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return builder.ReasonNames(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("kind", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"class", "enum", "function", "field"}, cobra.ShellCompDirectiveNoFileComp
	})
}
