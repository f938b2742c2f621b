// Package mediakit wires the media kit builder engine from configuration.
package mediakit

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/emrgen/mediakit/internal/access"
	"github.com/emrgen/mediakit/internal/artifact"
	"github.com/emrgen/mediakit/internal/compress"
	"github.com/emrgen/mediakit/internal/config"
	"github.com/emrgen/mediakit/internal/events"
	"github.com/emrgen/mediakit/internal/identity"
	"github.com/emrgen/mediakit/internal/jobs"
	"github.com/emrgen/mediakit/internal/kv"
	"github.com/emrgen/mediakit/internal/metrics"
	"github.com/emrgen/mediakit/internal/model"
	"github.com/emrgen/mediakit/internal/registry"
	"github.com/emrgen/mediakit/internal/render"
	"github.com/emrgen/mediakit/internal/service"
	"github.com/emrgen/mediakit/internal/state"
	"github.com/emrgen/mediakit/internal/store"
	"github.com/emrgen/mediakit/internal/validator"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const guestKeyPrefix = "mediakit:guest:"

var _ io.Closer = (*Engine)(nil)

// Engine holds the builder, export and share services and the resources
// they share.
type Engine struct {
	Builder  *service.BuilderService
	Exports  *service.ExportService
	Shares   *service.ShareService
	Store    store.Store
	Policy   *access.Policy
	Metrics  *metrics.Metrics
	Registry prometheus.Gatherer

	cfg     *config.Config
	db      *gorm.DB
	ownedDB bool
	redis   *redis.Client
	kafka   *events.KafkaNotifier
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	db       *gorm.DB
	registry *prometheus.Registry
	notifier events.Notifier
	renderer render.Renderer
}

// WithDB uses an already opened database instead of the configured one.
func WithDB(db *gorm.DB) Option {
	return func(o *options) {
		o.db = db
	}
}

// WithRegistry registers the metrics with reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithNotifier adds a notifier next to the configured ones.
func WithNotifier(n events.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithRenderer replaces the built-in render engine.
func WithRenderer(r render.Renderer) Option {
	return func(o *options) {
		o.renderer = r
	}
}

// New builds an engine from cfg. The database is migrated before use.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	e := &Engine{cfg: cfg, db: o.db}
	ok := false
	defer func() {
		if !ok {
			_ = e.Close()
		}
	}()

	if e.db == nil {
		db, err := config.GetDb(cfg)
		if err != nil {
			return nil, err
		}
		e.db = db
		e.ownedDB = true
	}
	if err := model.Migrate(e.db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	codec, err := compress.New(cfg.State.Compression)
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Addr != "" {
		e.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Protocol: 2,
		})
		if err := e.redis.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	users := kv.NewCompressed(kv.NewGormStore(e.db), codec)
	var guests kv.Store
	if e.redis != nil {
		guests = kv.NewRedisStore(e.redis, guestKeyPrefix, cfg.State.GuestTTL)
	} else {
		logrus.Warnf("redis is not configured, guest sessions are kept in memory")
		guests = kv.NewMemoryStore(cfg.State.GuestTTL)
	}
	guests = kv.NewCompressed(guests, codec)

	states, err := state.NewStore(users, guests,
		state.WithCacheSize(cfg.State.CacheSize),
		state.WithTimeout(cfg.State.Timeout),
	)
	if err != nil {
		return nil, err
	}

	notifier, err := e.notifiers(o.notifier)
	if err != nil {
		return nil, err
	}

	reg := o.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	e.Registry = reg
	e.Metrics = metrics.New(reg)

	renderer := o.renderer
	if renderer == nil {
		var converter render.Converter
		if cfg.Export.ConverterURL != "" {
			converter = render.NewHTTPConverter(cfg.Export.ConverterURL, cfg.Export.RenderTimeout)
		} else {
			logrus.Warnf("no converter configured, pdf and png exports are disabled")
		}
		engine, err := render.NewEngine(converter)
		if err != nil {
			return nil, err
		}
		renderer = engine
	}

	artifacts, err := artifact.NewFileStore(cfg.Export.ArtifactDir, cfg.Export.BaseURL)
	if err != nil {
		return nil, err
	}

	sections := registry.DefaultSectionRegistry()
	components := registry.DefaultComponentRegistry()
	e.Policy = access.DefaultPolicy()
	e.Store = store.NewGormStore(e.db)

	e.Builder = service.NewBuilderService(service.BuilderDeps{
		Store:      states,
		History:    state.NewHistory(states, cfg.State.HistoryDepth),
		Locker:     state.NewLocker(),
		Validator:  validator.New(sections, components),
		Policy:     e.Policy,
		Sections:   sections,
		Components: components,
		Templates:  registry.DefaultTemplateRegistry(),
		Notifier:   notifier,
		Metrics:    e.Metrics,
	})

	e.Exports = service.NewExportService(service.ExportDeps{
		Builder:   e.Builder,
		Store:     e.Store,
		Renderer:  renderer,
		Artifacts: artifacts,
		Policy:    e.Policy,
		Notifier:  notifier,
		Metrics:   e.Metrics,
		Retention: service.Retention{
			Artifacts: cfg.Export.ArtifactRetention,
			Jobs:      cfg.Export.JobRetention,
		},
		RenderTimeout: cfg.Export.RenderTimeout,
	})

	e.Shares = service.NewShareService(service.ShareDeps{
		Builder:  e.Builder,
		Store:    e.Store,
		Notifier: notifier,
		Metrics:  e.Metrics,
	})

	ok = true
	return e, nil
}

func (e *Engine) notifiers(extra events.Notifier) (events.Notifier, error) {
	multi := events.Multi{events.Log{}}

	if ch := e.cfg.Events.RedisChannel; ch != "" {
		if e.redis == nil {
			return nil, errors.New("redis event channel requires a redis address")
		}
		multi = append(multi, events.NewRedisNotifier(e.redis, ch))
	}

	if brokers := e.cfg.Events.KafkaBrokers; brokers != "" {
		k, err := events.NewKafkaNotifier(brokers, e.cfg.Events.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("connect kafka: %w", err)
		}
		e.kafka = k
		multi = append(multi, k)
	}

	if extra != nil {
		multi = append(multi, extra)
	}

	return multi, nil
}

// Promote moves the document, history and share link of a guest session to
// a registered user.
func (e *Engine) Promote(ctx context.Context, guest, user identity.ContextRef, overwrite bool) error {
	if err := e.Builder.Promote(ctx, guest, user, overwrite); err != nil {
		return err
	}

	return e.Shares.Move(ctx, guest, user)
}

// Jobs returns the background tasks of a worker process: the export
// worker on the configured interval plus cleanup, share sweep and queue
// monitoring on their schedules.
func (e *Engine) Jobs() *jobs.TaskExecutor {
	w := e.cfg.Worker

	return jobs.NewTaskExecutor(w.Interval,
		[]jobs.Job{
			jobs.NewExportWorker(e.Exports, w.Batch),
		},
		[]jobs.CronJob{
			jobs.NewExportCleanup(w.CleanupSchedule, e.Exports),
			jobs.NewShareSweep(w.SweepSchedule, e.Shares),
			jobs.NewQueueMonitor(w.MonitorSchedule, e.Exports),
		},
	)
}

// Ping checks the database and, when configured, redis.
func (e *Engine) Ping(ctx context.Context) error {
	sqlDB, err := e.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if e.redis != nil {
		if err := e.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	return nil
}

// Close releases the redis and kafka connections and the database, unless
// it was passed in with WithDB.
func (e *Engine) Close() error {
	var errs []error

	if e.kafka != nil {
		e.kafka.Close()
	}
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	if e.db != nil && e.ownedDB {
		if sqlDB, err := e.db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}

	return errors.Join(errs...)
}
