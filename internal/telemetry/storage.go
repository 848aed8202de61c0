package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/promptvault/promptvault/internal/storage"
	"github.com/promptvault/promptvault/internal/types"
)

const storageScopeName = "github.com/promptvault/promptvault/storage"

// InstrumentedStorage wraps storage.Storage with OTel tracing and metrics.
// Every method gets a span and is counted in pv.storage.* metrics.
// Use WrapStorage to create one; it returns the original store unchanged when
// telemetry is disabled.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	ops      metric.Int64Counter
	dur      metric.Float64Histogram
	errs     metric.Int64Counter
	rowGauge metric.Int64Gauge
}

// WrapStorage returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapStorage(s storage.Storage) storage.Storage {
	if !Enabled() {
		return s
	}
	m := Meter(storageScopeName)
	ops, _ := m.Int64Counter("pv.storage.operations",
		metric.WithDescription("Total storage operations executed"),
	)
	dur, _ := m.Float64Histogram("pv.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("pv.storage.errors",
		metric.WithDescription("Total storage operation errors"),
	)
	rowGauge, _ := m.Int64Gauge("pv.vault.rows",
		metric.WithDescription("Current row counts by kind (snapshot from GetStatistics)"),
	)
	return &InstrumentedStorage{
		inner:    s,
		tracer:   Tracer(storageScopeName),
		ops:      ops,
		dur:      dur,
		errs:     errs,
		rowGauge: rowGauge,
	}
}

// op starts a span and records a metric for the named storage operation.
func (s *InstrumentedStorage) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "storage."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStorage) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

// ── Prompts ─────────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) SavePrompt(ctx context.Context, prompt *types.Prompt) (int64, error) {
	attrs := []attribute.KeyValue{attribute.Int("pv.prompt.length", len(prompt.Text))}
	ctx, span, t := s.op(ctx, "SavePrompt", attrs...)
	id, err := s.inner.SavePrompt(ctx, prompt)
	s.done(ctx, span, t, err, attrs...)
	return id, err
}

func (s *InstrumentedStorage) GetPrompt(ctx context.Context, id int64) (*types.Prompt, error) {
	attrs := []attribute.KeyValue{attribute.Int64("pv.prompt.id", id)}
	ctx, span, t := s.op(ctx, "GetPrompt", attrs...)
	v, err := s.inner.GetPrompt(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) GetPromptByHash(ctx context.Context, hash string) (*types.Prompt, error) {
	ctx, span, t := s.op(ctx, "GetPromptByHash")
	v, err := s.inner.GetPromptByHash(ctx, hash)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) SearchPrompts(ctx context.Context, filter types.PromptFilter) ([]*types.Prompt, error) {
	attrs := []attribute.KeyValue{attribute.Int("pv.filter.tags", len(filter.Tags))}
	ctx, span, t := s.op(ctx, "SearchPrompts", attrs...)
	prompts, err := s.inner.SearchPrompts(ctx, filter)
	if err == nil {
		span.SetAttributes(attribute.Int("pv.result.count", len(prompts)))
	}
	s.done(ctx, span, t, err, attrs...)
	return prompts, err
}

func (s *InstrumentedStorage) RecentPrompts(ctx context.Context, limit int) ([]*types.Prompt, error) {
	ctx, span, t := s.op(ctx, "RecentPrompts")
	v, err := s.inner.RecentPrompts(ctx, limit)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) PromptsByCategory(ctx context.Context, category string, limit int) ([]*types.Prompt, error) {
	attrs := []attribute.KeyValue{attribute.String("pv.category", category)}
	ctx, span, t := s.op(ctx, "PromptsByCategory", attrs...)
	v, err := s.inner.PromptsByCategory(ctx, category, limit)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) TopRatedPrompts(ctx context.Context, limit int) ([]*types.Prompt, error) {
	ctx, span, t := s.op(ctx, "TopRatedPrompts")
	v, err := s.inner.TopRatedPrompts(ctx, limit)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) UpdatePrompt(ctx context.Context, id int64, params types.UpdatePromptParams) (bool, error) {
	attrs := []attribute.KeyValue{attribute.Int64("pv.prompt.id", id)}
	ctx, span, t := s.op(ctx, "UpdatePrompt", attrs...)
	ok, err := s.inner.UpdatePrompt(ctx, id, params)
	s.done(ctx, span, t, err, attrs...)
	return ok, err
}

func (s *InstrumentedStorage) DeletePrompt(ctx context.Context, id int64) (bool, error) {
	attrs := []attribute.KeyValue{attribute.Int64("pv.prompt.id", id)}
	ctx, span, t := s.op(ctx, "DeletePrompt", attrs...)
	ok, err := s.inner.DeletePrompt(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return ok, err
}

func (s *InstrumentedStorage) CleanupDuplicatePrompts(ctx context.Context) (int, error) {
	ctx, span, t := s.op(ctx, "CleanupDuplicatePrompts")
	n, err := s.inner.CleanupDuplicatePrompts(ctx)
	if err == nil {
		span.SetAttributes(attribute.Int("pv.removed.count", n))
	}
	s.done(ctx, span, t, err)
	return n, err
}

// ── Tags ────────────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) ListTags(ctx context.Context) ([]types.Tag, error) {
	ctx, span, t := s.op(ctx, "ListTags")
	v, err := s.inner.ListTags(ctx)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) ListTagCounts(ctx context.Context, opts storage.TagListOptions) ([]types.TagCount, error) {
	ctx, span, t := s.op(ctx, "ListTagCounts")
	v, err := s.inner.ListTagCounts(ctx, opts)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) SetPromptTags(ctx context.Context, promptID int64, tags []string) error {
	attrs := []attribute.KeyValue{
		attribute.Int64("pv.prompt.id", promptID),
		attribute.Int("pv.tag.count", len(tags)),
	}
	ctx, span, t := s.op(ctx, "SetPromptTags", attrs...)
	err := s.inner.SetPromptTags(ctx, promptID, tags)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) RenameTag(ctx context.Context, oldName, newName string) (types.TagMutationResult, error) {
	attrs := []attribute.KeyValue{attribute.String("pv.tag", oldName)}
	ctx, span, t := s.op(ctx, "RenameTag", attrs...)
	res, err := s.inner.RenameTag(ctx, oldName, newName)
	s.done(ctx, span, t, err, attrs...)
	return res, err
}

func (s *InstrumentedStorage) DeleteTag(ctx context.Context, name string) (types.TagMutationResult, error) {
	attrs := []attribute.KeyValue{attribute.String("pv.tag", name)}
	ctx, span, t := s.op(ctx, "DeleteTag", attrs...)
	res, err := s.inner.DeleteTag(ctx, name)
	s.done(ctx, span, t, err, attrs...)
	return res, err
}

func (s *InstrumentedStorage) MergeTags(ctx context.Context, sources []string, target string) (types.TagMutationResult, error) {
	attrs := []attribute.KeyValue{
		attribute.Int("pv.tag.count", len(sources)),
		attribute.String("pv.tag", target),
	}
	ctx, span, t := s.op(ctx, "MergeTags", attrs...)
	res, err := s.inner.MergeTags(ctx, sources, target)
	s.done(ctx, span, t, err, attrs...)
	return res, err
}

func (s *InstrumentedStorage) UntaggedPrompts(ctx context.Context, limit, offset int) ([]*types.Prompt, error) {
	ctx, span, t := s.op(ctx, "UntaggedPrompts")
	v, err := s.inner.UntaggedPrompts(ctx, limit, offset)
	s.done(ctx, span, t, err)
	return v, err
}

// ── Images ──────────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) LinkImage(ctx context.Context, img *types.GeneratedImage) (int64, error) {
	attrs := []attribute.KeyValue{attribute.Int64("pv.prompt.id", img.PromptID)}
	ctx, span, t := s.op(ctx, "LinkImage", attrs...)
	id, err := s.inner.LinkImage(ctx, img)
	s.done(ctx, span, t, err, attrs...)
	return id, err
}

func (s *InstrumentedStorage) ImagesForPrompt(ctx context.Context, promptID int64) ([]*types.GeneratedImage, error) {
	attrs := []attribute.KeyValue{attribute.Int64("pv.prompt.id", promptID)}
	ctx, span, t := s.op(ctx, "ImagesForPrompt", attrs...)
	v, err := s.inner.ImagesForPrompt(ctx, promptID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) RecentImages(ctx context.Context, limit int, withPromptText bool) ([]*types.GeneratedImage, error) {
	ctx, span, t := s.op(ctx, "RecentImages")
	v, err := s.inner.RecentImages(ctx, limit, withPromptText)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) SearchImages(ctx context.Context, promptText string, limit int) ([]*types.GeneratedImage, error) {
	ctx, span, t := s.op(ctx, "SearchImages")
	images, err := s.inner.SearchImages(ctx, promptText, limit)
	if err == nil {
		span.SetAttributes(attribute.Int("pv.result.count", len(images)))
	}
	s.done(ctx, span, t, err)
	return images, err
}

func (s *InstrumentedStorage) GetImage(ctx context.Context, id int64) (*types.GeneratedImage, error) {
	attrs := []attribute.KeyValue{attribute.Int64("pv.image.id", id)}
	ctx, span, t := s.op(ctx, "GetImage", attrs...)
	v, err := s.inner.GetImage(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) DeleteImage(ctx context.Context, id int64) (bool, error) {
	attrs := []attribute.KeyValue{attribute.Int64("pv.image.id", id)}
	ctx, span, t := s.op(ctx, "DeleteImage", attrs...)
	ok, err := s.inner.DeleteImage(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return ok, err
}

func (s *InstrumentedStorage) CleanupMissingFiles(ctx context.Context) (int, error) {
	ctx, span, t := s.op(ctx, "CleanupMissingFiles")
	n, err := s.inner.CleanupMissingFiles(ctx)
	if err == nil {
		span.SetAttributes(attribute.Int("pv.removed.count", n))
	}
	s.done(ctx, span, t, err)
	return n, err
}

// ── Maintenance ─────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) GetStatistics(ctx context.Context) (*storage.Statistics, error) {
	ctx, span, t := s.op(ctx, "GetStatistics")
	v, err := s.inner.GetStatistics(ctx)
	s.done(ctx, span, t, err)
	if err == nil && v != nil {
		// Record current row counts as gauge snapshots, broken down by kind.
		kindAttr := func(kind string) metric.MeasurementOption {
			return metric.WithAttributes(attribute.String("kind", kind))
		}
		s.rowGauge.Record(ctx, int64(v.TotalPrompts), kindAttr("prompts"))
		s.rowGauge.Record(ctx, int64(v.TotalImages), kindAttr("images"))
		s.rowGauge.Record(ctx, int64(v.DistinctTags), kindAttr("tags"))
	}
	return v, err
}

func (s *InstrumentedStorage) CheckConsistency(ctx context.Context) (*storage.ConsistencyReport, error) {
	ctx, span, t := s.op(ctx, "CheckConsistency")
	report, err := s.inner.CheckConsistency(ctx)
	if err == nil && report != nil {
		span.SetAttributes(attribute.Int("pv.issue.count", report.TotalIssues))
	}
	s.done(ctx, span, t, err)
	return report, err
}

func (s *InstrumentedStorage) Backup(ctx context.Context, destPath string) error {
	ctx, span, t := s.op(ctx, "Backup")
	err := s.inner.Backup(ctx, destPath)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) Restore(ctx context.Context, uploadedPath string) error {
	ctx, span, t := s.op(ctx, "Restore")
	err := s.inner.Restore(ctx, uploadedPath)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) Vacuum(ctx context.Context) error {
	ctx, span, t := s.op(ctx, "Vacuum")
	err := s.inner.Vacuum(ctx)
	s.done(ctx, span, t, err)
	return err
}

// ── Lifecycle ───────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) Path() string {
	return s.inner.Path()
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
