// Command driverag ingests a folder tree into a vector index and answers
// questions from it.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"driverag/internal/domain"
	"driverag/internal/source/localfs"
	"driverag/internal/tui"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:   "driverag",
		Short: "Retrieval over a Drive folder",
		Long: `driverag walks a Google Drive folder (or a local directory), splits every
document into token-bounded passages, stores their embeddings in a vector
index and answers questions from the closest passages.

Configuration is read from --config, ./config.yaml or
~/.config/driverag/config.yaml, and DRIVERAG_* environment variables
override it (DRIVERAG_VECTOR_INDEX__COLLECTION=docs).`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")

	// withApp builds the components for one command run.
	withApp := func(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd, args, a)
		}
	}

	root.AddCommand(
		newIngestCmd(withApp),
		newSearchCmd(withApp),
		newAskCmd(withApp),
		newCollectionCmd(withApp),
		newPointsCmd(withApp),
	)
	return root
}

type appRunner = func(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error

func newIngestCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [folder-id]",
		Short: "Index every supported document below a folder",
		Long: `Index every supported document below a folder.

For a local source the folder id is a path relative to source.local.root and
defaults to the root itself.

Examples:
  driverag ingest 1AbCdEfGhIjKlMnOp
  driverag --config local.yaml ingest`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			folderID := localfs.RootID
			if len(args) == 1 {
				folderID = args[0]
			} else if a.cfg.Source.Type != "local" {
				return fmt.Errorf("a folder id is required for source %s", a.cfg.Source.Type)
			}
			report, err := a.svc.Ingest(cmd.Context(), folderID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d documents as %d chunks into %s in %s\n",
				report.Documents, report.Chunks, report.Collection, report.Duration.Round(time.Millisecond))
			return nil
		}),
	}
}

func newSearchCmd(withApp appRunner) *cobra.Command {
	var (
		limit  int
		filter map[string]string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Print the passages closest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			res, err := a.svc.Search(cmd.Context(), strings.Join(args, " "), limit, domain.Filter(filter))
			if err != nil {
				return err
			}
			printResults(cmd.OutOrStdout(), res)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of passages (default search.limit)")
	cmd.Flags().StringToStringVar(&filter, "filter", nil, "payload equality filter, e.g. --filter source_name=report.pdf")
	return cmd
}

func newAskCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the indexed passages",
		Long: `Answer a question from the indexed passages. Without a question an
interactive console is opened.`,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if len(args) == 0 {
				m := tui.New(cmd.Context(), a.svc, a.cfg.VectorIndex.Collection)
				_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
				return err
			}
			ans, err := a.svc.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Text)
			fmt.Fprintln(out)
			printResults(out, ans.Passages)
			return nil
		}),
	}
}

func newCollectionCmd(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage the configured collection",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "ensure",
			Short: "Create the collection if it does not exist",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
				return a.svc.EnsureCollection(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Delete the collection and every point in it",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
				return a.svc.DeleteCollection(cmd.Context())
			}),
		},
	)
	return cmd
}

func newPointsCmd(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Manage individual points",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete points by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			return a.svc.DeletePoints(cmd.Context(), args)
		}),
	})
	return cmd
}

func printResults(w io.Writer, results []domain.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	for i, r := range results {
		name, _ := r.Payload[domain.PayloadSourceName].(string)
		fmt.Fprintf(w, "%d. [%.4f] %s %s\n   %s\n", i+1, r.Score, r.ID, name, r.Text)
	}
}
