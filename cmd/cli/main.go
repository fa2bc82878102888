package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/adapters/browser"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/adapters/client"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/config"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/scanner"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/services"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/logger"
)

var (
	debugFlag bool
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "atf",
	Short: "Above-the-fold link tracker tools",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.InitWithWriter(os.Stderr)
		if debugFlag {
			logger.Logger = logger.Logger.Level(zerolog.DebugLevel)
			zlog.Logger = logger.Logger
		}
		cfg = config.Load()
	},
}

var scanOpts = browser.DefaultOptions()

var scanCmd = &cobra.Command{
	Use:   "scan <page-url>",
	Short: "Load a page headless, find links visible above the fold and report them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		server, _ := cmd.Flags().GetString("server")
		if server == "" {
			server = cfg.BaseURL
		}

		snapshotter := browser.NewSnapshotter(scanOpts)
		defer snapshotter.Close()

		ctx := cmd.Context()
		snap, err := snapshotter.Snapshot(ctx, args[0])
		if err != nil {
			return err
		}
		res := scanner.Scan(snap)

		if dryRun {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		if res.Empty() {
			zlog.Info().Str("url", args[0]).Msg("no above-the-fold links, nothing sent")
			return nil
		}

		trackerCfg, err := client.FetchTrackerConfig(ctx, nil, server)
		if err != nil {
			return err
		}
		// Delivery failures are logged by the transmitter and not retried.
		client.NewTransmitter(trackerCfg, nil).Send(ctx, res)
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune orphaned links, then delete visits older than seven days",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		res, err := services.NewRetentionService(repo).Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "orphaned links pruned: %d\nexpired visits deleted: %d\n", res.OrphansPruned, res.VisitsDeleted)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print links tracked in the last seven days",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := loadReport(cmd.Context())
		if err != nil {
			return err
		}
		return writeTable(cmd.OutOrStdout(), rows)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump the seven-day report as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := loadReport(cmd.Context())
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), rows)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "Enable debug logging")

	f := scanCmd.Flags()
	f.Bool("dry-run", false, "Print the batch instead of sending it")
	f.String("server", "", "Tracker base URL (defaults to BASE_URL)")
	f.Int64Var(&scanOpts.ViewportWidth, "viewport-width", scanOpts.ViewportWidth, "Viewport width in CSS pixels")
	f.Int64Var(&scanOpts.ViewportHeight, "viewport-height", scanOpts.ViewportHeight, "Viewport height in CSS pixels")
	f.Int64Var(&scanOpts.ScreenWidth, "screen-width", scanOpts.ScreenWidth, "Reported screen width")
	f.Int64Var(&scanOpts.ScreenHeight, "screen-height", scanOpts.ScreenHeight, "Reported screen height")
	f.DurationVar(&scanOpts.Timeout, "timeout", scanOpts.Timeout, "Page load timeout")
	f.StringSliceVar(&scanOpts.ChromeSelectors, "chrome-selectors", scanOpts.ChromeSelectors, "Admin/debug toolbar containers to ignore")
	f.StringSliceVar(&scanOpts.NoticeSelectors, "notice-selectors", scanOpts.NoticeSelectors, "Notice/alert containers to ignore")

	rootCmd.AddCommand(scanCmd, cleanupCmd, reportCmd, exportCmd)
}

func openRepo() (*sqlite.SQLiteRepository, error) {
	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	return repo, nil
}

// noNonces backs a read-only ingestion service used for reporting.
type noNonces struct{}

func (noNonces) Verify(string, string) error { return fmt.Errorf("ingestion disabled in cli") }

func loadReport(ctx context.Context) ([]domain.ReportRow, error) {
	repo, err := openRepo()
	if err != nil {
		return nil, err
	}
	defer repo.Close()
	return services.NewIngestionService(repo, noNonces{}).Report(ctx)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeTable(w io.Writer, rows []domain.ReportRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No link data tracked in the last 7 days.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VISIT\tTIME (UTC)\tSCREEN\tCONTEXT\tURL\tTEXT")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%dx%d\t%s\t%s\t%s\n",
			r.VisitID, r.VisitTime.Format(time.DateTime), r.ScreenWidth, r.ScreenHeight, r.Context, r.URL, r.Text)
	}
	return tw.Flush()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
