package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/class-shadow/internal/artifact"
	"github.com/mvp-joe/class-shadow/internal/discovery"
	"github.com/mvp-joe/class-shadow/internal/sink"
	"github.com/mvp-joe/class-shadow/internal/stub"
	"github.com/mvp-joe/class-shadow/internal/symtab"
)

// ErrReadTimeout marks an artifact whose read exceeded the per-artifact bound.
var ErrReadTimeout = errors.New("artifact read timed out")

// DefaultReadTimeout bounds a single artifact read when no timeout is configured.
const DefaultReadTimeout = 10 * time.Second

// Pipeline runs extraction passes: parallel reads, one build, synthesis and
// a single all-or-nothing emission.
type Pipeline struct {
	library          string
	jobs             int
	readTimeout      time.Duration
	includeSynthetic bool
	includeAnonymous bool
	logger           *zap.Logger
	progress         ProgressReporter
	cache            *ArtifactCache
	sources          *artifact.SourceReader
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLibrary names the library recorded in batches and reports.
func WithLibrary(name string) Option {
	return func(p *Pipeline) { p.library = name }
}

// WithJobs sets the number of parallel readers. Values <= 0 use GOMAXPROCS.
func WithJobs(n int) Option {
	return func(p *Pipeline) { p.jobs = n }
}

// WithReadTimeout bounds each artifact read.
func WithReadTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.readTimeout = d }
}

// WithSynthetic keeps compiler-generated classes and fields.
func WithSynthetic(include bool) Option {
	return func(p *Pipeline) { p.includeSynthetic = include }
}

// WithAnonymous keeps anonymous classes.
func WithAnonymous(include bool) Option {
	return func(p *Pipeline) { p.includeAnonymous = include }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithProgress sets the progress reporter. It is called from reader goroutines.
func WithProgress(r ProgressReporter) Option {
	return func(p *Pipeline) { p.progress = r }
}

// WithCache memoizes parsed artifacts by fingerprint across passes.
func WithCache(c *ArtifactCache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// New creates a pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		library:     "library",
		readTimeout: DefaultReadTimeout,
		logger:      zap.NewNop(),
		progress:    &NoOpProgressReporter{},
		sources:     artifact.NewSourceReader(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.jobs <= 0 {
		p.jobs = runtime.GOMAXPROCS(0)
	}
	if p.readTimeout <= 0 {
		p.readTimeout = DefaultReadTimeout
	}
	return p
}

// Run executes one pass over sources and emits the result to s.
//
// Per-artifact failures are recorded in the report and skipped. A cyclic
// nesting error, a cancellation or a sink error fails the pass; in every
// failing case the sink either was never called or kept its previous state.
// The report is returned even on failure, describing how far the pass got.
func (p *Pipeline) Run(ctx context.Context, sources []discovery.Source, s sink.Sink) (*Report, error) {
	start := time.Now()
	report := &Report{
		PassID:    uuid.NewString(),
		Library:   p.library,
		StartedAt: start.UTC(),
		Sources:   len(sources),
	}
	defer func() {
		report.Duration = time.Since(start)
		report.ElapsedSeconds = report.Duration.Seconds()
	}()

	artifacts, err := p.readAll(ctx, sources, report)
	if err != nil {
		return report, err
	}

	builder := symtab.NewBuilder(
		symtab.WithLogger(p.logger),
		symtab.WithSynthetic(p.includeSynthetic),
		symtab.WithAnonymous(p.includeAnonymous),
	)
	ns, diags, err := builder.Build(artifacts)
	report.Diagnostics = diags
	for _, d := range diags {
		if d.Kind == symtab.DiagDanglingReference {
			report.Dangling++
		}
	}
	if err != nil {
		return report, err
	}

	units := stub.SynthesizeNamespace(ns)
	report.Packages = len(units)
	report.Classes, report.Fields = stub.Count(units)
	p.progress.OnBuildComplete(report.Classes, len(diags))

	if err := ctx.Err(); err != nil {
		return report, err
	}

	batch := sink.Batch{
		PassID:   report.PassID,
		Library:  p.library,
		Packages: units,
	}
	if err := s.Emit(ctx, batch); err != nil {
		return report, fmt.Errorf("failed to emit pass %s: %w", report.PassID, err)
	}
	report.Emitted = true

	p.logger.Info("pass complete",
		zap.String("pass_id", report.PassID),
		zap.String("library", p.library),
		zap.Int("packages", report.Packages),
		zap.Int("classes", report.Classes),
		zap.Int("fields", report.Fields),
		zap.Int("skipped", report.Skipped),
	)
	p.progress.OnComplete(report)
	return report, nil
}

// readAll reads every source with at most p.jobs readers. Results land in a
// slot per source index, so the flattened output keeps discovery order.
func (p *Pipeline) readAll(ctx context.Context, sources []discovery.Source, report *Report) ([]*artifact.Artifact, error) {
	p.progress.OnReadStart(len(sources))

	results := make([][]*artifact.Artifact, len(sources))
	failures := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(p.jobs, len(sources))))

	for i, src := range sources {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			arts, err := p.read(gctx, src)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failures[i] = err
			} else {
				results[i] = arts
			}
			p.progress.OnArtifactRead(src.Origin())
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []*artifact.Artifact
	for i, src := range sources {
		if err := failures[i]; err != nil {
			report.Skipped++
			report.Failures = append(report.Failures, Failure{Origin: src.Origin(), Error: err.Error()})
			p.logger.Warn("skipping artifact",
				zap.String("origin", src.Origin()),
				zap.Error(err),
			)
			continue
		}
		report.Artifacts += len(results[i])
		all = append(all, results[i]...)
	}
	return all, nil
}

type readResult struct {
	artifacts []*artifact.Artifact
	err       error
}

// read parses one source under its own timeout.
func (p *Pipeline) read(ctx context.Context, src discovery.Source) ([]*artifact.Artifact, error) {
	if cached, ok := p.cache.Get(src.Fingerprint); ok {
		return cached, nil
	}

	readCtx, cancel := context.WithTimeout(ctx, p.readTimeout)
	defer cancel()

	done := make(chan readResult, 1)
	go func() {
		arts, err := p.parse(readCtx, src)
		done <- readResult{artifacts: arts, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		p.cache.Set(src.Fingerprint, r.artifacts)
		return r.artifacts, nil
	case <-readCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w after %s", src.Origin(), ErrReadTimeout, p.readTimeout)
	}
}

func (p *Pipeline) parse(ctx context.Context, src discovery.Source) ([]*artifact.Artifact, error) {
	data, err := src.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src.Origin(), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch src.Kind {
	case discovery.KindClass:
		a, err := artifact.Read(src.Origin(), data)
		if err != nil {
			return nil, err
		}
		return []*artifact.Artifact{a}, nil
	case discovery.KindJava:
		return p.sources.Parse(ctx, src.Origin(), data)
	default:
		return nil, fmt.Errorf("%s: unsupported source kind %s", src.Origin(), src.Kind)
	}
}
