package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/apiextractor/internal/cli/config"
	"github.com/conduit-lang/apiextractor/internal/cli/ui"
	"github.com/conduit-lang/apiextractor/internal/history"
)

var (
	historyDSN   string
	historyLimit int
	historyJSON  bool
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded builds",
		Long: `List builds recorded with 'apiextractor build --record' and compare the
rejections of two of them.

The database comes from history.dsn: a SQLite path, a sqlite:// URL or a
postgres:// URL.`,
	}

	cmd.PersistentFlags().StringVar(&historyDSN, "dsn", "", "History database (overrides history.dsn)")
	cmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "Output in JSON format")

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded builds, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistoryList,
	}
	list.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of builds (0 for all)")

	diff := &cobra.Command{
		Use:     "diff <from-run> <to-run>",
		Short:   "Compare the rejections of two builds",
		Args:    cobra.ExactArgs(2),
		Example: `  apiextractor history diff 5f0c... 9a41...`,
		RunE:    runHistoryDiff,
	}

	cmd.AddCommand(list, diff)
	return cmd
}

// openHistory opens dsn, or history.dsn when dsn is empty. Plain paths are
// relative to the configuration directory.
func openHistory(ctx context.Context, cfg *config.Config, dsn string) (*history.Store, error) {
	if dsn == "" {
		dsn = cfg.History.DSN
		if dsn != "" && !strings.Contains(dsn, "://") {
			dsn = cfg.Resolve(dsn)
		}
	}
	if dsn == "" {
		return nil, fmt.Errorf("history.dsn is not set (set it in apiextractor.yaml or pass --dsn)")
	}
	return history.Open(ctx, dsn)
}

func historyStore(cmd *cobra.Command) (*history.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), nil, noColor))
		return nil, err
	}
	dsn := historyDSN
	if dsn != "" && !strings.Contains(dsn, "://") {
		dsn = absPath(dsn)
	}
	return openHistory(cmd.Context(), cfg, dsn)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	store, err := historyStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	if historyJSON {
		if runs == nil {
			runs = []history.Run{}
		}
		return writeJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No recorded builds")
		return nil
	}

	ui.Header(out, fmt.Sprintf("Builds (%d)", len(runs)), noColor)
	table := ui.NewTable(out, []string{"Run", "Built", "API", "Classes", "Functions", "Rejections", "Warnings"}, &ui.TableOptions{NoColor: noColor})
	for _, r := range runs {
		api := r.APIVersion
		if api == "" {
			api = "-"
		}
		table.AddRow(r.ID, r.BuiltAt.Format(time.DateTime), api,
			fmt.Sprint(r.Classes), fmt.Sprint(r.Functions), fmt.Sprint(r.Rejections), fmt.Sprint(r.Warnings))
	}
	table.Render()
	return nil
}

func runHistoryDiff(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	store, err := historyStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	d, err := store.Diff(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	if historyJSON {
		return writeJSON(out, d)
	}
	if d.Empty() {
		fmt.Fprintf(out, "No rejection changes between %s and %s\n", d.From, d.To)
		return nil
	}

	ui.Header(out, fmt.Sprintf("Rejections %s -> %s", d.From, d.To), noColor)
	added := color.New(color.FgRed)
	removed := color.New(color.FgGreen)
	changed := color.New(color.FgYellow)
	for _, r := range d.Added {
		added.Fprintf(out, "+ %s (%s): %s\n", r.Item, r.Kind, r.Reason)
	}
	for _, r := range d.Removed {
		removed.Fprintf(out, "- %s (%s): %s\n", r.Item, r.Kind, r.Reason)
	}
	for _, c := range d.Changed {
		changed.Fprintf(out, "~ %s (%s): %s -> %s\n", c.Item, c.Kind, c.From, c.To)
	}
	fmt.Fprintf(out, "\n%d newly rejected, %d no longer rejected, %d with a new reason\n",
		len(d.Added), len(d.Removed), len(d.Changed))
	return nil
}

func writeJSON(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
