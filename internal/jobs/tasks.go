package jobs

import (
	"context"
	"time"

	"github.com/emrgen/mediakit/internal/model"
	"github.com/emrgen/mediakit/internal/service"
	"github.com/sirupsen/logrus"
)

// DefaultBatch bounds the exports a worker handles per tick.
const DefaultBatch = 10

type ExportProcessor interface {
	ProcessNext(ctx context.Context) *service.ProcessResult
}

type ExportCleaner interface {
	Cleanup(ctx context.Context) (*service.CleanupResult, error)
}

type ShareSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type QueueCounter interface {
	Stats(ctx context.Context) (map[model.ExportJobStatus]int64, error)
}

// ExportWorker drains the export queue, up to batch jobs per run.
type ExportWorker struct {
	exports ExportProcessor
	batch   int
}

func NewExportWorker(exports ExportProcessor, batch int) *ExportWorker {
	if batch <= 0 {
		batch = DefaultBatch
	}

	return &ExportWorker{exports: exports, batch: batch}
}

func (w *ExportWorker) Name() string {
	return "export_worker"
}

func (w *ExportWorker) Run() {
	ctx := context.Background()
	for i := 0; i < w.batch; i++ {
		res := w.exports.ProcessNext(ctx)
		if res == nil {
			return
		}
		logrus.Debugf("export %s finished as %s", res.QueueID, res.Status)
	}
}

// ExportCleanup purges expired artifacts and finished jobs.
type ExportCleanup struct {
	exports  ExportCleaner
	schedule string
	timeout  time.Duration
}

func NewExportCleanup(schedule string, exports ExportCleaner) *ExportCleanup {
	return &ExportCleanup{exports: exports, schedule: schedule, timeout: 5 * time.Minute}
}

func (c *ExportCleanup) Name() string {
	return "export_cleanup"
}

func (c *ExportCleanup) Schedule() string {
	return c.schedule
}

func (c *ExportCleanup) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if _, err := c.exports.Cleanup(ctx); err != nil {
		logrus.Errorf("export cleanup: %v", err)
	}
}

// ShareSweep deletes expired share links.
type ShareSweep struct {
	shares   ShareSweeper
	schedule string
}

func NewShareSweep(schedule string, shares ShareSweeper) *ShareSweep {
	return &ShareSweep{shares: shares, schedule: schedule}
}

func (s *ShareSweep) Name() string {
	return "share_sweep"
}

func (s *ShareSweep) Schedule() string {
	return s.schedule
}

func (s *ShareSweep) Run() {
	if _, err := s.shares.SweepExpired(context.Background()); err != nil {
		logrus.Errorf("share sweep: %v", err)
	}
}

// QueueMonitor logs the export queue depth.
type QueueMonitor struct {
	queue    QueueCounter
	schedule string
}

func NewQueueMonitor(schedule string, queue QueueCounter) *QueueMonitor {
	return &QueueMonitor{queue: queue, schedule: schedule}
}

func (q *QueueMonitor) Name() string {
	return "queue_monitor"
}

func (q *QueueMonitor) Schedule() string {
	return q.schedule
}

func (q *QueueMonitor) Run() {
	counts, err := q.queue.Stats(context.Background())
	if err != nil {
		logrus.Errorf("queue monitor: %v", err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"queued":     counts[model.ExportJobQueued],
		"processing": counts[model.ExportJobProcessing],
		"completed":  counts[model.ExportJobCompleted],
		"failed":     counts[model.ExportJobFailed],
	}).Info("export queue")
}
