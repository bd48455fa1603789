package measure

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/withings2weeks/internal/telemetry/metrics"
	"github.com/2beens/withings2weeks/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=measure_test

type pageFetcher interface {
	FetchPage(ctx context.Context, req PageRequest) (*Page, error)
}

type pageState int

const (
	stateFetching pageState = iota
	stateDone
	stateAborted
)

func (s pageState) String() string {
	switch s {
	case stateFetching:
		return "fetching"
	case stateDone:
		return "done"
	case stateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// StopReason tells why a successful fetch stopped asking for pages.
type StopReason int

const (
	StopNone StopReason = iota
	StopNoMore
	StopNoOffset
	StopPageCap
)

func (r StopReason) String() string {
	switch r {
	case StopNoMore:
		return "no more data"
	case StopNoOffset:
		return "no resume offset"
	case StopPageCap:
		return "page cap reached"
	default:
		return "none"
	}
}

// PaginatorOptions tune the fetch loop. Zero values mean no cap and no pacing.
type PaginatorOptions struct {
	MaxPages  int
	PageDelay time.Duration
	Location  *time.Location
	// OnPage is called after every successfully fetched page.
	OnPage func(pageNumber int, page *Page)
}

// Result is the de-duplicated union of all pages.
type Result struct {
	Samples    []Sample
	Pages      int
	Duplicates int
	Dropped    DropStats
	StopReason StopReason
}

// Paginator drives getmeas until the API reports no more data.
type Paginator struct {
	fetcher pageFetcher
	opts    PaginatorOptions
	metrics *metrics.Manager
}

func NewPaginator(fetcher pageFetcher, opts PaginatorOptions, metricsManager *metrics.Manager) *Paginator {
	return &Paginator{
		fetcher: fetcher,
		opts:    opts,
		metrics: metricsManager,
	}
}

// fetchRun holds the state machine of a single FetchAll call.
type fetchRun struct {
	state   pageState
	reason  StopReason
	limiter *rate.Limiter
	offset  *int64
	pages   int
	samples []Sample
	dropped DropStats
	err     error
}

// FetchAll fetches every page for req. Any failing page aborts the whole
// fetch and nothing fetched so far is returned.
func (p *Paginator) FetchAll(ctx context.Context, req PageRequest) (_ *Result, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "measure.paginator.fetchAll")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	run := &fetchRun{state: stateFetching}
	if p.opts.PageDelay > 0 {
		// the first Wait takes the only token, every later page waits PageDelay
		run.limiter = rate.NewLimiter(rate.Every(p.opts.PageDelay), 1)
	}
	for run.state == stateFetching {
		p.step(ctx, req, run)
	}

	if run.state == stateAborted {
		return nil, run.err
	}

	samples, duplicates := dedupeGroups(run.samples)
	p.metrics.CounterDropped.WithLabelValues(metrics.DropReasonDuplicate).Add(float64(duplicates))
	p.metrics.CounterSamples.WithLabelValues("api").Add(float64(len(samples)))

	span.SetAttributes(
		attribute.Int("pages", run.pages),
		attribute.Int("samples", len(samples)),
		attribute.String("stop_reason", run.reason.String()),
	)
	log.Debugf("getmeas done after %d page(s): %s, %d samples, %d duplicates", run.pages, run.reason, len(samples), duplicates)

	return &Result{
		Samples:    samples,
		Pages:      run.pages,
		Duplicates: duplicates,
		Dropped:    run.dropped,
		StopReason: run.reason,
	}, nil
}

// step performs one transition out of stateFetching.
func (p *Paginator) step(ctx context.Context, req PageRequest, run *fetchRun) {
	if run.limiter != nil {
		if err := run.limiter.Wait(ctx); err != nil {
			run.abort(fmt.Errorf("wait before page %d: %w", run.pages+1, err))
			return
		}
	}

	pageReq := req
	pageReq.Offset = run.offset
	log.Debugf("getting page %d at offset %d", run.pages+1, offsetOrZero(run.offset))

	page, err := p.fetcher.FetchPage(ctx, pageReq)
	if err != nil {
		run.abort(fmt.Errorf("fetch page %d: %w", run.pages+1, err))
		return
	}

	run.pages++
	p.metrics.CounterPages.Inc()

	samples, dropped := NormalizeGroups(page.Groups, p.opts.Location)
	run.samples = append(run.samples, samples...)
	run.dropped = run.dropped.Add(dropped)
	p.metrics.CounterDropped.WithLabelValues(metrics.DropReasonCategory).Add(float64(dropped.NonRealGroups))
	p.metrics.CounterDropped.WithLabelValues(metrics.DropReasonUnknownType).Add(float64(dropped.UnknownMeasures))

	if p.opts.OnPage != nil {
		p.opts.OnPage(run.pages, page)
	}

	switch {
	case p.opts.MaxPages > 0 && run.pages >= p.opts.MaxPages:
		run.finish(StopPageCap)
	case !page.More:
		run.finish(StopNoMore)
	case page.Offset == nil:
		run.finish(StopNoOffset)
	default:
		next := *page.Offset
		run.offset = &next
	}
}

func (r *fetchRun) finish(reason StopReason) {
	r.state = stateDone
	r.reason = reason
}

func (r *fetchRun) abort(err error) {
	r.state = stateAborted
	r.err = err
	r.samples = nil
}

// dedupeGroups sorts samples by timestamp and keeps only the last occurrence of
// every group id.
func dedupeGroups(samples []Sample) ([]Sample, int) {
	SortByTimestamp(samples)

	lastIndex := make(map[int64]int, len(samples))
	for i, s := range samples {
		lastIndex[s.GroupID] = i
	}

	unique := make([]Sample, 0, len(lastIndex))
	for i, s := range samples {
		if lastIndex[s.GroupID] == i {
			unique = append(unique, s)
		}
	}
	return unique, len(samples) - len(unique)
}

func offsetOrZero(offset *int64) int64 {
	if offset == nil {
		return 0
	}
	return *offset
}
