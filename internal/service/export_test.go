package service

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/emrgen/mediakit/internal/access"
	"github.com/emrgen/mediakit/internal/events"
	"github.com/emrgen/mediakit/internal/identity"
	"github.com/emrgen/mediakit/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportService_PriorityOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := identity.User("42")

	_, err := f.builder.Save(ctx, ref, kit("Ada"), SaveOptions{})
	require.NoError(t, err)

	assert.Nil(t, f.exports.ProcessNext(ctx))

	queued := make(map[string]string)
	for _, format := range []string{"svg", "pdf", "html"} {
		handle, err := f.exports.Enqueue(ctx, ref, ExportRequest{Format: format, Tier: access.TierEnterprise})
		require.NoError(t, err)
		assert.Equal(t, model.ExportJobQueued, handle.Status)
		assert.Equal(t, Formats[format].Estimate, handle.Estimate)
		queued[handle.QueueID] = format
	}

	var order []string
	for res := f.exports.ProcessNext(ctx); res != nil; res = f.exports.ProcessNext(ctx) {
		assert.Equal(t, model.ExportJobCompleted, res.Status)
		order = append(order, queued[res.QueueID])
	}
	assert.Equal(t, []string{"pdf", "html", "svg"}, order)
}

func TestExportService_Watermark(t *testing.T) {
	tests := []struct {
		name      string
		tier      access.Tier
		watermark bool
	}{
		{name: "guest", tier: access.TierGuest, watermark: true},
		{name: "free", tier: access.TierFree, watermark: true},
		{name: "pro", tier: access.TierPro, watermark: false},
		{name: "agency", tier: access.TierAgency, watermark: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			ref := identity.Guest("sess")

			_, err := f.builder.Save(ctx, ref, kit("Ada"), SaveOptions{})
			require.NoError(t, err)

			handle, err := f.exports.Enqueue(ctx, ref, ExportRequest{Format: "pdf", Tier: tt.tier})
			require.NoError(t, err)
			assert.Equal(t, tt.watermark, handle.Watermark)

			res := f.exports.ProcessNext(ctx)
			require.NotNil(t, res)
			require.Equal(t, model.ExportJobCompleted, res.Status)

			calls := f.renderer.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.watermark, calls[0].Watermark)

			status, err := f.exports.Status(ctx, handle.QueueID)
			require.NoError(t, err)
			require.NotNil(t, status.Export)
			assert.Equal(t, tt.watermark, status.Export.Watermarked)
		})
	}
}

func TestExportService_EnqueueRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := identity.User("1")

	_, err := f.exports.Enqueue(ctx, ref, ExportRequest{Format: "pdf", Tier: access.TierFree})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.builder.Save(ctx, ref, kit("Ada"), SaveOptions{})
	require.NoError(t, err)

	_, err = f.exports.Enqueue(ctx, ref, ExportRequest{Format: "docx", Tier: access.TierEnterprise})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = f.exports.Enqueue(ctx, ref, ExportRequest{Format: "png", Tier: access.TierFree})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.exports.Enqueue(ctx, ref, ExportRequest{Format: "svg", Tier: access.TierPro})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	counts, err := f.exports.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts[model.ExportJobQueued])
}

func TestExportService_Filename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := identity.User("42")

	_, err := f.builder.Save(ctx, ref, kit("Ada"), SaveOptions{})
	require.NoError(t, err)

	handle, err := f.exports.Enqueue(ctx, ref, ExportRequest{Format: "pdf", Tier: access.TierFree})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^media-kit-user-42-\d+\.pdf$`), handle.Filename)

	res := f.exports.ProcessNext(ctx)
	require.NotNil(t, res)

	status, err := f.exports.Status(ctx, handle.QueueID)
	require.NoError(t, err)
	assert.Equal(t, handle.Filename, status.Export.Filename)
	assert.Contains(t, status.Export.URL, handle.Filename)
	assert.Equal(t, "application/pdf", status.Export.MimeType)

	data, err := os.ReadFile(status.Export.Path)
	require.NoError(t, err)
	assert.Equal(t, "pdf artifact", string(data))
}

func TestExportService_SnapshotIsTakenAtEnqueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := identity.User("42")

	_, err := f.builder.Save(ctx, ref, kit("before"), SaveOptions{})
	require.NoError(t, err)
	handle, err := f.exports.Enqueue(ctx, ref, ExportRequest{Format: "html", Tier: access.TierPro})
	require.NoError(t, err)

	_, err = f.builder.Save(ctx, ref, kit("after"), SaveOptions{})
	require.NoError(t, err)

	status, err := f.exports.Status(ctx, handle.QueueID)
	require.NoError(t, err)
	assert.Contains(t, string(status.Job.StateSnapshot), "before")
	assert.NotContains(t, string(status.Job.StateSnapshot), "after")
}

func TestExportService_Failures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(r *fakeRenderer)
		message string
	}{
		{name: "render error", setup: func(r *fakeRenderer) { r.err = errors.New("converter unavailable") }, message: "converter unavailable"},
		{name: "render panic", setup: func(r *fakeRenderer) { r.crash = true }, message: "converter crashed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			ref := identity.User("1")

			_, err := f.builder.Save(ctx, ref, kit("Ada"), SaveOptions{})
			require.NoError(t, err)
			handle, err := f.exports.Enqueue(ctx, ref, ExportRequest{Format: "pdf", Tier: access.TierFree})
			require.NoError(t, err)

			tt.setup(f.renderer)
			res := f.exports.ProcessNext(ctx)
			require.NotNil(t, res)
			assert.Equal(t, model.ExportJobFailed, res.Status)
			assert.Contains(t, res.Error, tt.message)

			status, err := f.exports.Status(ctx, handle.QueueID)
			require.NoError(t, err)
			assert.Equal(t, model.ExportJobFailed, status.Job.Status)
			require.NotNil(t, status.Job.ErrorMessage)
			assert.Contains(t, *status.Job.ErrorMessage, tt.message)
			assert.NotNil(t, status.Job.CompletedAt)
			assert.Nil(t, status.Export)

			// failed jobs are never retried
			assert.Nil(t, f.exports.ProcessNext(ctx))
			assert.Contains(t, f.events.Types(), events.ExportFailed)
		})
	}
}

func TestExportService_StatusAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := identity.User("1")

	_, err := f.exports.Status(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.builder.Save(ctx, ref, kit("Ada"), SaveOptions{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.exports.Enqueue(ctx, ref, ExportRequest{Format: "pdf", Tier: access.TierFree})
		require.NoError(t, err)
	}
	require.NotNil(t, f.exports.ProcessNext(ctx))

	jobs, err := f.exports.List(ctx, ref)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)

	others, err := f.exports.List(ctx, identity.User("2"))
	require.NoError(t, err)
	assert.Empty(t, others)

	counts, err := f.exports.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[model.ExportJobQueued])
	assert.Equal(t, int64(1), counts[model.ExportJobCompleted])
}

func TestExportService_Cleanup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := identity.User("1")

	_, err := f.builder.Save(ctx, ref, kit("Ada"), SaveOptions{})
	require.NoError(t, err)
	handle, err := f.exports.Enqueue(ctx, ref, ExportRequest{Format: "pdf", Tier: access.TierFree})
	require.NoError(t, err)
	require.NotNil(t, f.exports.ProcessNext(ctx))

	status, err := f.exports.Status(ctx, handle.QueueID)
	require.NoError(t, err)
	path := status.Export.Path

	res, err := f.exports.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, &CleanupResult{}, res)

	base := time.Now().UTC()
	f.exports.now = func() time.Time { return base.Add(8 * 24 * time.Hour) }
	res, err = f.exports.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Artifacts)
	assert.Zero(t, res.Jobs)

	_, err = os.Stat(path)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	status, err = f.exports.Status(ctx, handle.QueueID)
	require.NoError(t, err)
	assert.Nil(t, status.Export)

	f.exports.now = func() time.Time { return base.Add(31 * 24 * time.Hour) }
	res, err = f.exports.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Jobs)

	_, err = f.exports.Status(ctx, handle.QueueID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportService_ConcurrentWorkers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := identity.User("1")

	_, err := f.builder.Save(ctx, ref, kit("Ada"), SaveOptions{})
	require.NoError(t, err)

	const jobs = 6
	for i := 0; i < jobs; i++ {
		_, err := f.exports.Enqueue(ctx, ref, ExportRequest{Format: "html", Tier: access.TierPro})
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 3; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for res := f.exports.ProcessNext(ctx); res != nil; res = f.exports.ProcessNext(ctx) {
				mu.Lock()
				seen[res.QueueID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, jobs)
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s processed more than once", id)
	}
	assert.Len(t, f.renderer.Calls(), jobs)
}
