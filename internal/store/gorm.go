package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emrgen/mediakit/internal/model"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (g *GormStore) CreateExportJob(ctx context.Context, job *model.ExportJob) error {
	return g.db.WithContext(ctx).Create(job).Error
}

func (g *GormStore) GetExportJob(ctx context.Context, queueID string) (*model.ExportJob, error) {
	var job model.ExportJob
	err := g.db.WithContext(ctx).Where("queue_id = ?", queueID).First(&job).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

func (g *GormStore) NextQueuedExportJob(ctx context.Context) (*model.ExportJob, error) {
	var job model.ExportJob
	err := g.db.WithContext(ctx).
		Where("status = ?", model.ExportJobQueued).
		Order("priority desc").
		Order("created_at asc").
		Order("queue_id asc").
		First(&job).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

// ClaimExportJob is a compare-and-set on the status column; exactly one
// caller sees the row change.
func (g *GormStore) ClaimExportJob(ctx context.Context, queueID string, at time.Time) (bool, error) {
	res := g.db.WithContext(ctx).Model(&model.ExportJob{}).
		Where("queue_id = ? AND status = ?", queueID, model.ExportJobQueued).
		Updates(map[string]interface{}{
			"status":     model.ExportJobProcessing,
			"started_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

// CompleteExportJob stores the artifact record and marks the job completed.
// NOTE: should run in a transaction
func (g *GormStore) CompleteExportJob(ctx context.Context, queueID string, export *model.Export) error {
	if err := g.db.WithContext(ctx).Create(export).Error; err != nil {
		return err
	}

	res := g.db.WithContext(ctx).Model(&model.ExportJob{}).
		Where("queue_id = ? AND status = ?", queueID, model.ExportJobProcessing).
		Updates(map[string]interface{}{
			"status":       model.ExportJobCompleted,
			"completed_at": export.CreatedAt,
			"export_id":    export.ID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("complete export job %s: %w", queueID, ErrNotFound)
	}

	return nil
}

func (g *GormStore) FailExportJob(ctx context.Context, queueID string, message string, at time.Time) error {
	res := g.db.WithContext(ctx).Model(&model.ExportJob{}).
		Where("queue_id = ? AND status = ?", queueID, model.ExportJobProcessing).
		Updates(map[string]interface{}{
			"status":        model.ExportJobFailed,
			"completed_at":  at,
			"error_message": message,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("fail export job %s: %w", queueID, ErrNotFound)
	}

	return nil
}

func (g *GormStore) ListExportJobs(ctx context.Context, contextID string) ([]*model.ExportJob, error) {
	var jobs []*model.ExportJob
	err := g.db.WithContext(ctx).
		Where("context_id = ?", contextID).
		Order("created_at desc").
		Find(&jobs).Error
	return jobs, err
}

func (g *GormStore) CountExportJobs(ctx context.Context) (map[model.ExportJobStatus]int64, error) {
	var rows []struct {
		Status model.ExportJobStatus
		Count  int64
	}
	err := g.db.WithContext(ctx).Model(&model.ExportJob{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.ExportJobStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}

func (g *GormStore) DeleteExportJobsBefore(ctx context.Context, before time.Time) (int64, error) {
	res := g.db.WithContext(ctx).
		Where("created_at < ? AND status IN ?", before, []model.ExportJobStatus{model.ExportJobCompleted, model.ExportJobFailed}).
		Delete(&model.ExportJob{})
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected > 0 {
		logrus.Infof("removed %d export jobs created before %s", res.RowsAffected, before.Format(time.RFC3339))
	}

	return res.RowsAffected, nil
}

func (g *GormStore) GetExport(ctx context.Context, id string) (*model.Export, error) {
	var export model.Export
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&export).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &export, nil
}

func (g *GormStore) ListExportsBefore(ctx context.Context, before time.Time) ([]*model.Export, error) {
	var exports []*model.Export
	err := g.db.WithContext(ctx).Where("created_at < ?", before).Order("created_at asc").Find(&exports).Error
	return exports, err
}

func (g *GormStore) DeleteExport(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Export{}).Error
}

func (g *GormStore) CreateShareLink(ctx context.Context, link *model.ShareLink) error {
	return g.db.WithContext(ctx).Create(link).Error
}

func (g *GormStore) GetShareLink(ctx context.Context, shareID string) (*model.ShareLink, error) {
	var link model.ShareLink
	err := g.db.WithContext(ctx).Where("share_id = ?", shareID).First(&link).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &link, nil
}

func (g *GormStore) GetShareLinkByContext(ctx context.Context, contextID string) (*model.ShareLink, error) {
	var link model.ShareLink
	err := g.db.WithContext(ctx).Where("context_id = ?", contextID).First(&link).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &link, nil
}

func (g *GormStore) DeleteShareLinkByContext(ctx context.Context, contextID string) error {
	return g.db.WithContext(ctx).Where("context_id = ?", contextID).Delete(&model.ShareLink{}).Error
}

func (g *GormStore) MoveShareLink(ctx context.Context, from, to string) error {
	return g.db.WithContext(ctx).Model(&model.ShareLink{}).
		Where("context_id = ?", from).
		Update("context_id", to).Error
}

func (g *GormStore) IncrementShareViews(ctx context.Context, shareID string) error {
	res := g.db.WithContext(ctx).Model(&model.ShareLink{}).
		Where("share_id = ?", shareID).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (g *GormStore) DeleteExpiredShareLinks(ctx context.Context, now time.Time) (int64, error) {
	res := g.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&model.ShareLink{})
	return res.RowsAffected, res.Error
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}
