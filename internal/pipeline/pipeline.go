package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/2beens/withings2weeks/internal/measure"
	"github.com/2beens/withings2weeks/internal/spreadsheet"
	"github.com/2beens/withings2weeks/internal/telemetry/metrics"
	"github.com/2beens/withings2weeks/internal/telemetry/tracing"
	"github.com/2beens/withings2weeks/internal/weekly"
	"github.com/2beens/withings2weeks/internal/weeks"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=pipeline_test

const (
	SourceCSV = "csv"
	SourceAPI = "api"
)

var ErrNoSource = errors.New("no measurement source configured")

type measurementFetcher interface {
	FetchAll(ctx context.Context, req measure.PageRequest) (*measure.Result, error)
}

type Options struct {
	StartWeek string
	EndWeek   string
	Now       time.Time
	Location  *time.Location
	// CSVPath switches the source from the API to a local export.
	CSVPath   string
	Output    string
	Overwrite bool
	// Print writes the table to the terminal. No file is written then,
	// unless Output is set explicitly.
	Print     bool
}

func (o Options) writesFile() bool {
	return !o.Print || o.Output != ""
}

// Report sums up one run.
type Report struct {
	Range      weeks.Range
	Source     string
	Samples    int
	OutOfRange int
	Table      weekly.Table
	// OutputPath is empty when no file was written.
	OutputPath string
}

type Runner struct {
	fetcher measurementFetcher
	metrics *metrics.Manager
	out     io.Writer
}

// NewRunner creates a runner. fetcher may be nil when only CSV exports are used.
func NewRunner(fetcher measurementFetcher, metricsManager *metrics.Manager, out io.Writer) *Runner {
	if out == nil {
		out = os.Stdout
	}
	return &Runner{
		fetcher: fetcher,
		metrics: metricsManager,
		out:     out,
	}
}

// Run resolves the week range, loads samples, aggregates them per ISO week
// and writes the result.
func (r *Runner) Run(ctx context.Context, opts Options) (_ *Report, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "pipeline.run")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	rng, err := weeks.ResolveRange(opts.StartWeek, opts.EndWeek, opts.Now, loc)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("start_week", rng.StartCode),
		attribute.String("end_week", rng.EndCode),
	)
	log.Debugf("resolved range %s..%s: [%s, %s)", rng.StartCode, rng.EndCode, rng.Start.Format(time.RFC3339), rng.End.Format(time.RFC3339))

	report := &Report{Range: rng}

	// fail before any remote call when the output would be refused anyway
	if opts.writesFile() {
		report.OutputPath = spreadsheet.OutputPath(opts.Output, opts.CSVPath, rng)
		if err := spreadsheet.EnsureWritable(report.OutputPath, opts.Overwrite); err != nil {
			return nil, err
		}
	}

	samples, source, err := r.load(ctx, opts, rng, loc)
	if err != nil {
		return nil, err
	}
	report.Source = source

	inRange := measure.FilterRange(samples, rng.Start, rng.End)
	report.Samples = len(inRange)
	report.OutOfRange = len(samples) - len(inRange)
	r.metrics.CounterDropped.WithLabelValues(metrics.DropReasonOutOfRange).Add(float64(report.OutOfRange))

	report.Table = aggregate(ctx, inRange)
	r.metrics.GaugeWeeks.Set(float64(len(report.Table.Rows)))
	r.metrics.GaugeRangeEnd.Set(float64(rng.End.Unix()))

	if opts.Print {
		if err := spreadsheet.Print(r.out, report.Table); err != nil {
			return nil, fmt.Errorf("print table: %w", err)
		}
	}

	if report.OutputPath != "" {
		if err := write(ctx, report.Table, report.OutputPath); err != nil {
			return nil, err
		}
		log.Infof("wrote %d weekly averages to %s", len(report.Table.Rows), report.OutputPath)
	}

	return report, nil
}

func (r *Runner) load(ctx context.Context, opts Options, rng weeks.Range, loc *time.Location) ([]measure.Sample, string, error) {
	if opts.CSVPath != "" {
		samples, err := r.loadCSV(ctx, opts.CSVPath, loc)
		return samples, SourceCSV, err
	}

	if r.fetcher == nil {
		return nil, SourceAPI, ErrNoSource
	}
	if !rng.End.After(rng.Start) {
		log.Warnf("range %s..%s is empty, nothing to fetch", rng.StartCode, rng.EndCode)
		return nil, SourceAPI, nil
	}

	result, err := r.fetcher.FetchAll(ctx, measure.PageRequest{
		Start: rng.Start,
		End:   rng.End,
	})
	if err != nil {
		return nil, SourceAPI, err
	}
	log.Debugf("fetched %d samples in %d page(s) (%s), dropped %d non-real groups and %d unknown measures",
		len(result.Samples), result.Pages, result.StopReason, result.Dropped.NonRealGroups, result.Dropped.UnknownMeasures)

	return result.Samples, SourceAPI, nil
}

func (r *Runner) loadCSV(ctx context.Context, path string, loc *time.Location) (_ []measure.Sample, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "pipeline.loadCSV")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	samples, err := measure.ReadExport(f, loc)
	if err != nil {
		return nil, fmt.Errorf("read export %s: %w", path, err)
	}
	r.metrics.CounterSamples.WithLabelValues(SourceCSV).Add(float64(len(samples)))
	span.SetAttributes(attribute.Int("samples", len(samples)))

	return samples, nil
}

func aggregate(ctx context.Context, samples []measure.Sample) weekly.Table {
	_, span := tracing.GlobalTracer.Start(ctx, "pipeline.aggregate")
	defer span.End()

	table := weekly.Aggregate(samples)
	span.SetAttributes(attribute.Int("weeks", len(table.Rows)))
	return table
}

func write(ctx context.Context, table weekly.Table, path string) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "pipeline.write")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("path", path))

	return spreadsheet.WriteXLSX(table, path)
}
