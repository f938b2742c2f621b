package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emrgen/mediakit/internal/access"
	"github.com/emrgen/mediakit/internal/artifact"
	"github.com/emrgen/mediakit/internal/document"
	"github.com/emrgen/mediakit/internal/events"
	"github.com/emrgen/mediakit/internal/identity"
	"github.com/emrgen/mediakit/internal/metrics"
	"github.com/emrgen/mediakit/internal/model"
	"github.com/emrgen/mediakit/internal/render"
	"github.com/emrgen/mediakit/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	DefaultArtifactRetention = 7 * 24 * time.Hour
	DefaultJobRetention      = 30 * 24 * time.Hour
	DefaultRenderTimeout     = 2 * time.Minute

	// claimAttempts bounds how often ProcessNext retries after losing a
	// claim to another worker.
	claimAttempts = 5
)

// FormatInfo describes an export format.
type FormatInfo struct {
	Format    string
	Extension string
	Priority  int
	Estimate  time.Duration
}

// Formats is the export format table; higher priority runs first.
var Formats = map[string]FormatInfo{
	render.FormatPDF:  {Format: render.FormatPDF, Extension: "pdf", Priority: 10, Estimate: 30 * time.Second},
	render.FormatHTML: {Format: render.FormatHTML, Extension: "html", Priority: 5, Estimate: 5 * time.Second},
	render.FormatPNG:  {Format: render.FormatPNG, Extension: "png", Priority: 3, Estimate: 15 * time.Second},
	render.FormatSVG:  {Format: render.FormatSVG, Extension: "svg", Priority: 1, Estimate: 10 * time.Second},
}

// ExportRequest are the caller's choices for an export.
type ExportRequest struct {
	Format   string
	Tier     access.Tier
	Title    string
	PageSize string
	Width    int
	Height   int
}

// ExportHandle is returned by Enqueue.
type ExportHandle struct {
	QueueID   string
	Status    model.ExportJobStatus
	Filename  string
	Watermark bool
	Estimate  time.Duration
}

// ExportStatus is a job together with its artifact once completed.
type ExportStatus struct {
	Job    *model.ExportJob
	Export *model.Export
}

// ProcessResult describes the job handled by one ProcessNext step.
type ProcessResult struct {
	QueueID  string
	Format   string
	Status   model.ExportJobStatus
	ExportID string
	Error    string
}

// CleanupResult counts what Cleanup removed.
type CleanupResult struct {
	Artifacts int
	Jobs      int64
}

// Retention configures Cleanup.
type Retention struct {
	Artifacts time.Duration
	Jobs      time.Duration
}

// ExportDeps are the collaborators of an ExportService.
type ExportDeps struct {
	Builder       *BuilderService
	Store         store.Store
	Renderer      render.Renderer
	Artifacts     artifact.Store
	Policy        *access.Policy
	Notifier      events.Notifier
	Metrics       *metrics.Metrics
	Retention     Retention
	RenderTimeout time.Duration
}

// ExportService is the export queue. Enqueue persists jobs; ProcessNext
// handles exactly one job per call and is driven by an external scheduler.
type ExportService struct {
	builder       *BuilderService
	store         store.Store
	renderer      render.Renderer
	artifacts     artifact.Store
	policy        *access.Policy
	notifier      events.Notifier
	metrics       *metrics.Metrics
	retention     Retention
	renderTimeout time.Duration
	now           func() time.Time
}

// NewExportService creates an export service.
func NewExportService(deps ExportDeps) *ExportService {
	e := &ExportService{
		builder:       deps.Builder,
		store:         deps.Store,
		renderer:      deps.Renderer,
		artifacts:     deps.Artifacts,
		policy:        deps.Policy,
		notifier:      deps.Notifier,
		metrics:       deps.Metrics,
		retention:     deps.Retention,
		renderTimeout: deps.RenderTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}

	if e.policy == nil {
		e.policy = access.DefaultPolicy()
	}
	if e.notifier == nil {
		e.notifier = events.Nop{}
	}
	if e.retention.Artifacts <= 0 {
		e.retention.Artifacts = DefaultArtifactRetention
	}
	if e.retention.Jobs <= 0 {
		e.retention.Jobs = DefaultJobRetention
	}
	if e.renderTimeout <= 0 {
		e.renderTimeout = DefaultRenderTimeout
	}

	return e
}

// Enqueue snapshots the current document of a context and queues an export
// job for it. Whether the artifact is watermarked is decided here.
func (e *ExportService) Enqueue(ctx context.Context, ref identity.ContextRef, req ExportRequest) (*ExportHandle, error) {
	info, ok := Formats[req.Format]
	if !ok || !e.supports(req.Format) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}
	if !e.policy.CanExportFormat(req.Tier, req.Format) {
		return nil, denied("format %s is not available to tier %s", req.Format, req.Tier)
	}

	doc, err := e.builder.Load(ctx, ref)
	if err != nil {
		return nil, err
	}

	snapshot, err := document.Encode(doc)
	if err != nil {
		return nil, err
	}

	opts := render.Options{
		Watermark: e.policy.Watermark(req.Tier),
		Title:     req.Title,
		PageSize:  req.PageSize,
		Width:     req.Width,
		Height:    req.Height,
	}
	optsData, err := json.Marshal(opts)
	if err != nil {
		return nil, err
	}

	now := e.now()
	job := &model.ExportJob{
		QueueID:       uuid.New().String(),
		ContextID:     ref.String(),
		Format:        req.Format,
		Filename:      exportFilename(ref, now, info.Extension),
		StateSnapshot: datatypes.JSON(snapshot),
		Options:       datatypes.JSON(optsData),
		Watermark:     opts.Watermark,
		Status:        model.ExportJobQueued,
		Priority:      info.Priority,
		CreatedAt:     now,
	}
	if err := e.store.CreateExportJob(ctx, job); err != nil {
		return nil, storageErr("create export job", err)
	}

	logrus.Infof("queued %s export %s for %s", job.Format, job.QueueID, job.ContextID)
	e.metrics.ExportQueued(job.Format)
	e.notifier.Notify(ctx, events.New(events.ExportQueued, job.ContextID, map[string]string{
		"queue_id": job.QueueID,
		"format":   job.Format,
	}))

	return &ExportHandle{
		QueueID:   job.QueueID,
		Status:    job.Status,
		Filename:  job.Filename,
		Watermark: job.Watermark,
		Estimate:  info.Estimate,
	}, nil
}

func (e *ExportService) supports(format string) bool {
	if s, ok := e.renderer.(interface{ Supports(string) bool }); ok {
		return s.Supports(format)
	}

	return true
}

// exportFilename builds media-kit-{context}-{unix}.{ext}; the ':' of the
// context reference is not filename safe.
func exportFilename(ref identity.ContextRef, at time.Time, ext string) string {
	id := strings.ReplaceAll(ref.String(), ":", "-")
	return fmt.Sprintf("media-kit-%s-%d.%s", id, at.Unix(), ext)
}

// ProcessNext claims the highest priority queued job, renders it and
// records the outcome. It returns nil when there was nothing to do. It
// never fails: render and storage errors end up on the job.
func (e *ExportService) ProcessNext(ctx context.Context) *ProcessResult {
	job, err := e.claim(ctx)
	if err != nil {
		logrus.Errorf("claim export job: %v", err)
		return nil
	}
	if job == nil {
		return nil
	}

	return e.process(ctx, job)
}

func (e *ExportService) claim(ctx context.Context) (*model.ExportJob, error) {
	for i := 0; i < claimAttempts; i++ {
		job, err := e.store.NextQueuedExportJob(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		now := e.now()
		claimed, err := e.store.ClaimExportJob(ctx, job.QueueID, now)
		if err != nil {
			return nil, err
		}
		if claimed {
			job.Status = model.ExportJobProcessing
			job.StartedAt = &now
			return job, nil
		}
	}

	return nil, nil
}

func (e *ExportService) process(ctx context.Context, job *model.ExportJob) (res *ProcessResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = e.fail(ctx, job, start, fmt.Errorf("%w: panic: %v", ErrRender, r))
		}
	}()

	doc, err := document.Decode(job.StateSnapshot)
	if err != nil {
		return e.fail(ctx, job, start, fmt.Errorf("decode snapshot: %w", err))
	}

	var opts render.Options
	if len(job.Options) > 0 {
		if err := json.Unmarshal(job.Options, &opts); err != nil {
			return e.fail(ctx, job, start, fmt.Errorf("decode options: %w", err))
		}
	}
	opts.Watermark = job.Watermark

	rctx, cancel := context.WithTimeout(ctx, e.renderTimeout)
	out, err := e.renderer.Render(rctx, doc, job.Format, opts)
	cancel()
	if err != nil {
		return e.fail(ctx, job, start, fmt.Errorf("%w: %w", ErrRender, err))
	}

	// two jobs of a context may share a filename within the same second
	stored, err := e.artifacts.Put(ctx, job.QueueID+"-"+job.Filename, out.Bytes)
	if err != nil {
		return e.fail(ctx, job, start, storageErr("store artifact", err))
	}

	export := &model.Export{
		ID:          uuid.New().String(),
		QueueID:     job.QueueID,
		ContextID:   job.ContextID,
		Format:      job.Format,
		Filename:    job.Filename,
		Path:        stored.Path,
		URL:         stored.URL,
		MimeType:    out.MimeType,
		Size:        stored.Size,
		Watermarked: job.Watermark,
		CreatedAt:   e.now(),
	}
	err = e.store.Transaction(ctx, func(tx store.Store) error {
		return tx.CompleteExportJob(ctx, job.QueueID, export)
	})
	if err != nil {
		if derr := e.artifacts.Delete(context.WithoutCancel(ctx), stored.Path); derr != nil {
			logrus.Warnf("remove artifact of export %s: %v", job.QueueID, derr)
		}
		return e.fail(ctx, job, start, storageErr("complete export job", err))
	}

	logrus.Infof("completed %s export %s (%d bytes)", job.Format, job.QueueID, stored.Size)
	e.metrics.ExportProcessed(job.Format, string(model.ExportJobCompleted), time.Since(start))
	e.notifier.Notify(ctx, events.New(events.ExportCompleted, job.ContextID, map[string]string{
		"queue_id":  job.QueueID,
		"export_id": export.ID,
		"format":    job.Format,
	}))

	return &ProcessResult{
		QueueID:  job.QueueID,
		Format:   job.Format,
		Status:   model.ExportJobCompleted,
		ExportID: export.ID,
	}
}

func (e *ExportService) fail(ctx context.Context, job *model.ExportJob, start time.Time, cause error) *ProcessResult {
	msg := cause.Error()
	logrus.Errorf("export %s failed: %s", job.QueueID, msg)

	// the job must leave processing even when ctx is already cancelled
	if err := e.store.FailExportJob(context.WithoutCancel(ctx), job.QueueID, msg, e.now()); err != nil {
		logrus.Errorf("mark export %s failed: %v", job.QueueID, err)
	}

	e.metrics.ExportProcessed(job.Format, string(model.ExportJobFailed), time.Since(start))
	e.notifier.Notify(ctx, events.New(events.ExportFailed, job.ContextID, map[string]string{
		"queue_id": job.QueueID,
		"format":   job.Format,
	}))

	return &ProcessResult{
		QueueID: job.QueueID,
		Format:  job.Format,
		Status:  model.ExportJobFailed,
		Error:   msg,
	}
}

// Status returns a job and, once completed, its artifact.
func (e *ExportService) Status(ctx context.Context, queueID string) (*ExportStatus, error) {
	job, err := e.store.GetExportJob(ctx, queueID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, queueID)
	}
	if err != nil {
		return nil, storageErr("get export job", err)
	}

	status := &ExportStatus{Job: job}
	if job.ExportID != nil {
		export, err := e.store.GetExport(ctx, *job.ExportID)
		switch {
		case err == nil:
			status.Export = export
		case !errors.Is(err, store.ErrNotFound):
			return nil, storageErr("get export", err)
		}
	}

	return status, nil
}

// List returns the jobs of a context, newest first.
func (e *ExportService) List(ctx context.Context, ref identity.ContextRef) ([]*model.ExportJob, error) {
	jobs, err := e.store.ListExportJobs(ctx, ref.String())
	if err != nil {
		return nil, storageErr("list export jobs", err)
	}

	return jobs, nil
}

// Stats counts jobs by status.
func (e *ExportService) Stats(ctx context.Context) (map[model.ExportJobStatus]int64, error) {
	counts, err := e.store.CountExportJobs(ctx)
	if err != nil {
		return nil, storageErr("count export jobs", err)
	}

	return counts, nil
}

// Cleanup removes artifacts older than the artifact retention and finished
// jobs older than the job retention.
func (e *ExportService) Cleanup(ctx context.Context) (*CleanupResult, error) {
	now := e.now()
	res := &CleanupResult{}

	exports, err := e.store.ListExportsBefore(ctx, now.Add(-e.retention.Artifacts))
	if err != nil {
		return nil, storageErr("list expired exports", err)
	}

	for _, export := range exports {
		if err := e.artifacts.Delete(ctx, export.Path); err != nil {
			logrus.Warnf("remove artifact %s: %v", export.ID, err)
			continue
		}
		if err := e.store.DeleteExport(ctx, export.ID); err != nil {
			return res, storageErr("delete export", err)
		}
		res.Artifacts++
	}

	res.Jobs, err = e.store.DeleteExportJobsBefore(ctx, now.Add(-e.retention.Jobs))
	if err != nil {
		return res, storageErr("delete export jobs", err)
	}

	e.metrics.ExportsRemoved(res.Artifacts)
	logrus.Infof("export cleanup removed %d artifacts and %d jobs", res.Artifacts, res.Jobs)

	return res, nil
}
