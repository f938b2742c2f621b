package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/mediakit/internal/model"
	"github.com/emrgen/mediakit/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingJob struct {
	started chan struct{}
	release chan struct{}
	runs    atomic.Int32
}

func (b *blockingJob) Name() string { return "blocking" }

func (b *blockingJob) Run() {
	b.runs.Add(1)
	b.started <- struct{}{}
	<-b.release
}

type fakeQueue struct {
	remaining int
	calls     int
	cleaned   int
	swept     int
	err       error
}

func (f *fakeQueue) ProcessNext(context.Context) *service.ProcessResult {
	f.calls++
	if f.remaining == 0 {
		return nil
	}
	f.remaining--
	return &service.ProcessResult{QueueID: "job", Status: model.ExportJobCompleted}
}

func (f *fakeQueue) Cleanup(context.Context) (*service.CleanupResult, error) {
	f.cleaned++
	return &service.CleanupResult{}, f.err
}

func (f *fakeQueue) SweepExpired(context.Context) (int64, error) {
	f.swept++
	return 0, f.err
}

func (f *fakeQueue) Stats(context.Context) (map[model.ExportJobStatus]int64, error) {
	return map[model.ExportJobStatus]int64{model.ExportJobQueued: int64(f.remaining)}, f.err
}

func TestExclusive(t *testing.T) {
	var mu sync.Mutex
	running := mapset.NewSet[string]()
	job := &blockingJob{started: make(chan struct{}), release: make(chan struct{})}

	done := make(chan bool)
	go func() {
		done <- exclusive(&mu, running, job)
	}()
	<-job.started

	assert.False(t, exclusive(&mu, running, job))

	close(job.release)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), job.runs.Load())
	assert.False(t, running.Contains(job.Name()))

	go func() {
		<-job.started
	}()
	assert.True(t, exclusive(&mu, running, job))
	assert.Equal(t, int32(2), job.runs.Load())
}

func TestExportWorker(t *testing.T) {
	tests := []struct {
		name      string
		remaining int
		batch     int
		calls     int
		left      int
	}{
		{name: "empty queue", remaining: 0, batch: 5, calls: 1, left: 0},
		{name: "drains", remaining: 3, batch: 5, calls: 4, left: 0},
		{name: "bounded", remaining: 8, batch: 5, calls: 5, left: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQueue{remaining: tt.remaining}
			NewExportWorker(q, tt.batch).Run()
			assert.Equal(t, tt.calls, q.calls)
			assert.Equal(t, tt.left, q.remaining)
		})
	}
}

func TestCronTasks(t *testing.T) {
	q := &fakeQueue{err: errors.New("db down")}

	cleanup := NewExportCleanup("@every 1h", q)
	sweep := NewShareSweep("@every 10m", q)
	monitor := NewQueueMonitor("@every 1m", q)

	for _, job := range []CronJob{cleanup, sweep, monitor} {
		require.NotEmpty(t, job.Schedule())
		job.Run()
	}

	assert.Equal(t, 1, q.cleaned)
	assert.Equal(t, 1, q.swept)
}

func TestTaskExecutor_RejectsBadSchedule(t *testing.T) {
	q := &fakeQueue{}
	executor := NewTaskExecutor("", nil, []CronJob{NewShareSweep("every now and then", q)})
	assert.Error(t, executor.Run())
}
