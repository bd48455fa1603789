package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/2beens/withings2weeks/internal/auth"
	"github.com/2beens/withings2weeks/internal/measure"
	"github.com/2beens/withings2weeks/internal/pipeline"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type runFlags struct {
	output      string
	overwrite   bool
	csvPath     string
	print       bool
	timezone    string
	maxPages    int
	pageDelay   time.Duration
	metricsFile string
}

func newRootCmd() *cobra.Command {
	gf := &globalFlags{}
	rf := &runFlags{}

	cmd := &cobra.Command{
		Use:   "withings2weeks START_WEEK [END_WEEK]",
		Short: "Average Withings scale measurements per ISO week",
		Long: `Fetches weight and body composition measurements from the Withings API,
or reads them from a weights.csv export, averages them per day and then per
ISO week, and writes one row per week to an .xlsx workbook.

Weeks are given as YYYYWww (2025W05) or as a bare week number of the current
year (5). Without END_WEEK the range runs through the last completed week.`,
		Example: `  withings2weeks 2025W01 2025W10
  withings2weeks 40 --print
  withings2weeks 2024W01 2024W52 --csv weights.csv -o 2024.xlsx`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.RangeArgs(1, 2)(cmd, args); err != nil {
				return &usageError{err: err}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(cmd, gf, rf, args)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	cmd.PersistentFlags().StringVar(&gf.configPath, "config", "", "path to app_config.toml (default: in the config dir)")
	cmd.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "log level [trace | debug | info | warn | error]")

	flags := cmd.Flags()
	flags.StringVarP(&rf.output, "output", "o", "", "output workbook path, .xlsx is enforced")
	flags.BoolVar(&rf.overwrite, "overwrite", false, "replace an existing output file")
	flags.StringVar(&rf.csvPath, "csv", "", "read a Withings weights.csv export instead of calling the API")
	flags.BoolVar(&rf.print, "print", false, "print the table; no file is written unless --output is set")
	flags.StringVar(&rf.timezone, "tz", "", "IANA timezone for day and week boundaries (default: config, else local)")
	flags.IntVar(&rf.maxPages, "max-pages", 0, "stop after this many getmeas pages, 0 means no cap")
	flags.DurationVar(&rf.pageDelay, "page-delay", 0, "minimum delay between getmeas pages")
	flags.StringVar(&rf.metricsFile, "metrics-file", "", "write prometheus metrics to this textfile after the run")

	cmd.AddCommand(
		newAuthCmd(gf),
		newConfigPathCmd(),
	)

	return cmd
}

func runAggregate(cmd *cobra.Command, gf *globalFlags, rf *runFlags, args []string) error {
	if rf.maxPages < 0 {
		return &usageError{err: fmt.Errorf("--max-pages must not be negative: %d", rf.maxPages)}
	}
	if rf.pageDelay < 0 {
		return &usageError{err: fmt.Errorf("--page-delay must not be negative: %s", rf.pageDelay)}
	}
	if rf.csvPath != "" {
		if err := requireFile(rf.csvPath); err != nil {
			return err
		}
	}

	sess, err := newSession(cmd, gf, rf.csvPath == "")
	if err != nil {
		return err
	}
	defer sess.close()

	cfg := sess.cfg
	if rf.timezone != "" {
		cfg.App.Timezone = rf.timezone
	}
	if cmd.Flags().Changed("max-pages") {
		cfg.Withings.API.MaxPages = rf.maxPages
	}
	if cmd.Flags().Changed("page-delay") {
		cfg.Withings.API.PageDelay = rf.pageDelay
	}
	if rf.metricsFile != "" {
		cfg.Telemetry.MetricsFile = rf.metricsFile
	}

	loc, err := cfg.Location()
	if err != nil {
		return &usageError{err: err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := pipeline.Options{
		StartWeek: args[0],
		Now:       time.Now(),
		Location:  loc,
		CSVPath:   rf.csvPath,
		Output:    rf.output,
		Overwrite: rf.overwrite,
		Print:     rf.print,
	}
	if len(args) > 1 {
		opts.EndWeek = args[1]
	}

	var runner *pipeline.Runner
	if rf.csvPath != "" {
		log.Debugf("reading measurements from %s", rf.csvPath)
		runner = pipeline.NewRunner(nil, sess.metricsManager, cmd.OutOrStdout())
	} else {
		authService, err := sess.authService()
		if err != nil {
			return err
		}

		spinner := newPageSpinner(cmd.ErrOrStderr())
		defer func() {
			_ = spinner.Finish()
		}()

		client := measure.NewClient(cfg.Withings.API.BaseURL, sess.httpClient(), authService.TokenSource(ctx), sess.metricsManager)
		paginator := measure.NewPaginator(client, measure.PaginatorOptions{
			MaxPages:  cfg.Withings.API.MaxPages,
			PageDelay: cfg.Withings.API.PageDelay,
			Location:  loc,
			OnPage: func(pageNumber int, page *measure.Page) {
				spinner.Describe(fmt.Sprintf("fetched page %d (%d groups)", pageNumber, len(page.Groups)))
				_ = spinner.Add(1)
			},
		}, sess.metricsManager)
		runner = pipeline.NewRunner(paginator, sess.metricsManager, cmd.OutOrStdout())
	}

	report, runErr := runner.Run(ctx, opts)
	sess.writeMetrics()
	if runErr != nil {
		if errors.Is(runErr, auth.ErrNoStoredCredentials) {
			return fmt.Errorf("%w (run '%s auth' first)", runErr, cmd.Root().Name())
		}
		return runErr
	}

	log.Debugf("%s..%s from %s: %d samples, %d outside the range, %d weeks",
		report.Range.StartCode, report.Range.EndCode, report.Source, report.Samples, report.OutOfRange, len(report.Table.Rows))
	if report.OutputPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote weekly averages to %s\n", report.OutputPath)
	}

	return nil
}

func newPageSpinner(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("fetching measurements"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
