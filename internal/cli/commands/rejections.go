package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/apiextractor/internal/builder"
	"github.com/conduit-lang/apiextractor/internal/cli/ui"
	"github.com/conduit-lang/apiextractor/internal/report"
)

var (
	rejectionsReason string
	rejectionsKind   string
	rejectionsJSON   bool
)

// NewRejectionsCommand creates the rejections command
func NewRejectionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rejections [item...]",
		Short: "List the declarations left out of the metamodel",
		Long: `Build the metamodel and list every rejected declaration with its reason.

With arguments, only the named items and their members are shown. A class
name also matches its functions and fields.`,
		Example: `  # All rejections
  apiextractor rejections

  # Why is QWidget::render missing?
  apiextractor rejections QWidget

  # Only functions whose argument types did not resolve
  apiextractor rejections --kind function --reason unmatched-argument-type`,
		RunE: runRejections,
	}

	addInputFlags(cmd)
	cmd.Flags().StringVar(&rejectionsReason, "reason", "", "Only show this reason, e.g. not-in-type-system")
	cmd.Flags().StringVar(&rejectionsKind, "kind", "", "Only show this kind: class, enum, function or field")
	cmd.Flags().BoolVar(&rejectionsJSON, "json", false, "Output rejections in JSON format")
	registerRejectionCompletions(cmd)

	return cmd
}

func runRejections(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), nil, noColor))
		return err
	}
	applyInputFlags(cmd, cfg)

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	result, err := runPipeline(cfg, logger)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.BuildFailed(err, noColor))
		return err
	}

	for _, item := range args {
		if len(matchItem(result.Rejections, item)) == 0 && result.FindClass(item) == nil {
			known := knownItems(result)
			fmt.Fprint(cmd.ErrOrStderr(), ui.ItemNotFound(item, ui.FindSimilar(item, known, nil), noColor))
			if best := ui.FindBestMatch(item, known, nil); best != "" {
				return fmt.Errorf("no declaration named %s (closest: %s)", item, best)
			}
			return fmt.Errorf("no declaration named %s", item)
		}
	}

	rejections := filterRejections(result.Rejections, args, rejectionsReason, rejectionsKind)

	if rejectionsJSON {
		reports := report.FromResult(&builder.Result{Rejections: rejections}).Rejections
		if reports == nil {
			reports = []report.RejectionReport{}
		}
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode rejections: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(rejections) == 0 {
		ui.WriteSuccess(out, "No rejections", noColor)
		return nil
	}

	ui.Header(out, fmt.Sprintf("Rejections (%d)", len(rejections)), noColor)
	table := ui.NewTable(out, []string{"Item", "Kind", "Reason", "Detail"}, &ui.TableOptions{NoColor: noColor, MaxCellWidth: 80})
	counts := make(map[string]int)
	for _, r := range rejections {
		table.AddRow(r.Item, r.Kind.String(), r.Reason.String(), r.Detail)
		counts[r.Reason.String()]++
	}
	table.Render()
	fmt.Fprintln(out)

	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	kv := ui.NewKeyValueTable(out, noColor)
	for _, reason := range reasons {
		kv.AddRow(reason, counts[reason])
	}
	kv.Render()
	return nil
}

// matchItem returns the rejections of item and of its members.
func matchItem(rejections []builder.Rejection, item string) []builder.Rejection {
	var out []builder.Rejection
	for _, r := range rejections {
		if r.Item == item || strings.HasPrefix(r.Item, item+"::") {
			out = append(out, r)
		}
	}
	return out
}

func filterRejections(rejections []builder.Rejection, items []string, reason, kind string) []builder.Rejection {
	if len(items) > 0 {
		var selected []builder.Rejection
		for _, item := range items {
			selected = append(selected, matchItem(rejections, item)...)
		}
		rejections = selected
	}

	var out []builder.Rejection
	for _, r := range rejections {
		if reason != "" && r.Reason.String() != reason {
			continue
		}
		if kind != "" && r.Kind.String() != kind {
			continue
		}
		out = append(out, r)
	}
	return out
}

// knownItems lists the names suggestions are drawn from.
func knownItems(result *builder.Result) []string {
	var names []string
	for _, r := range result.Rejections {
		names = append(names, r.Item)
	}
	for _, c := range result.Classes {
		names = append(names, c.QualifiedName)
	}
	for _, c := range result.Templates {
		names = append(names, c.QualifiedName)
	}
	return names
}
