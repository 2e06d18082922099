package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/gradebook/internal/models"
	"github.com/noah-isme/gradebook/internal/repository"
	appErrors "github.com/noah-isme/gradebook/pkg/errors"
	"github.com/noah-isme/gradebook/pkg/jobs"
)

// SnapshotRepository persists the whole gradebook document.
type SnapshotRepository interface {
	Load(ctx context.Context) (*models.Database, error)
	Save(ctx context.Context, db models.Database) error
}

// SyncGatewayConfig tunes background saving.
type SyncGatewayConfig struct {
	Backend     string
	SaveTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

type pendingSnapshot struct {
	revision uint64
	db       models.Database
}

// SyncGateway loads the gradebook at startup and saves snapshots in the
// background. Scheduled snapshots coalesce: while a save is running only the
// newest waiting snapshot is kept, so saves never overlap and the last
// scheduled state is the one that lands.
type SyncGateway struct {
	repo    SnapshotRepository
	worker  *jobs.Coalescer[pendingSnapshot]
	cfg     SyncGatewayConfig
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.Mutex
	status models.SyncStatus
}

// NewSyncGateway constructs a gateway over repo. Call Start before scheduling.
func NewSyncGateway(repo SnapshotRepository, cfg SyncGatewayConfig, metrics *MetricsService, logger *zap.Logger) *SyncGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 10 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	g := &SyncGateway{
		repo:    repo,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		status:  models.SyncStatus{Backend: cfg.Backend},
	}
	g.worker = jobs.NewCoalescer("gradebook-save", g.save, jobs.CoalescerConfig{
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return g
}

// Load reads the persisted gradebook. A missing snapshot is a first run and
// yields the defaults without error. Any other failure also yields the
// defaults, together with a PERSISTENCE_ERROR for the caller to report.
// Totals are recomputed and absences normalized on every load.
func (g *SyncGateway) Load(ctx context.Context) (models.Database, error) {
	start := g.now()
	db, err := g.repo.Load(ctx)
	switch {
	case errors.Is(err, repository.ErrSnapshotNotFound):
		g.logger.Info("no gradebook snapshot found, starting empty", zap.String("backend", g.cfg.Backend))
		g.metrics.ObserveLoad(true, g.now().Sub(start))
		return models.DefaultDatabase(), nil
	case err != nil:
		g.metrics.ObserveLoad(false, g.now().Sub(start))
		g.mu.Lock()
		g.status.LoadWarning = err.Error()
		g.mu.Unlock()
		return models.DefaultDatabase(), appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "load gradebook snapshot")
	}

	g.metrics.ObserveLoad(true, g.now().Sub(start))
	if _, reset := NormalizeSettings(db.Settings); len(reset) > 0 {
		g.logger.Warn("stored settings out of range, using defaults", zap.Strings("fields", reset))
	}
	normalized := NormalizeDatabase(*db)
	g.logger.Info("gradebook loaded",
		zap.String("backend", g.cfg.Backend),
		zap.Int("subjects", len(normalized.Subjects)),
		zap.Int("students", len(normalized.Students)),
		zap.Int("grades", len(normalized.Grades)),
	)
	return normalized, nil
}

// NormalizeDatabase fills missing collections, resets out of range settings,
// sorts and dedupes absences, and recomputes every total.
func NormalizeDatabase(db models.Database) models.Database {
	normalized := db.Clone()
	normalized.EnsureCollections()
	normalized.Settings, _ = NormalizeSettings(normalized.Settings)
	for i := range normalized.Grades {
		normalized.Grades[i].NormalizeAbsences()
		normalized.Grades[i] = WithTotal(normalized.Grades[i])
	}
	return normalized
}

// NormalizeSettings replaces each invalid threshold or language with its
// default and returns the names of the fields it reset.
func NormalizeSettings(settings models.Settings) (models.Settings, []string) {
	var reset []string
	if !settings.DefaultLanguage.Valid() {
		settings.DefaultLanguage = models.DefaultLanguage
		reset = append(reset, "default_language")
	}
	if pct := settings.PassThresholdPct; math.IsNaN(pct) || pct < 0 || pct > 100 {
		settings.PassThresholdPct = models.DefaultPassThresholdPct
		reset = append(reset, "pass_threshold_pct")
	}
	if settings.AbsenceThreshold < 0 {
		settings.AbsenceThreshold = models.DefaultAbsenceThreshold
		reset = append(reset, "absence_threshold")
	}
	return settings, reset
}

// Start launches the save worker.
func (g *SyncGateway) Start(ctx context.Context) {
	g.worker.Start(ctx)
}

// Schedule queues db for saving and returns immediately.
func (g *SyncGateway) Schedule(db models.Database) {
	g.mu.Lock()
	g.status.Revision++
	g.status.Dirty = true
	revision := g.status.Revision
	g.mu.Unlock()

	g.metrics.SetSavePending(true)
	if !g.worker.Submit(pendingSnapshot{revision: revision, db: db}) {
		g.logger.Warn("gradebook save scheduled after shutdown, change not persisted", zap.Uint64("revision", revision))
	}
}

// Close stops the worker and writes any snapshot still waiting.
func (g *SyncGateway) Close(ctx context.Context) error {
	err := g.worker.Stop(ctx)
	if err != nil {
		g.logger.Error("final gradebook save failed", zap.Error(err))
	}
	return err
}

// Status reports whether the latest scheduled state has been persisted.
func (g *SyncGateway) Status() models.SyncStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *SyncGateway) save(ctx context.Context, snapshot pendingSnapshot) error {
	g.mu.Lock()
	g.status.Saving = true
	g.mu.Unlock()

	saveCtx, cancel := context.WithTimeout(ctx, g.cfg.SaveTimeout)
	defer cancel()

	start := g.now()
	err := g.repo.Save(saveCtx, snapshot.db)
	finished := g.now()
	g.metrics.ObserveSave(err == nil, finished.Sub(start))

	g.mu.Lock()
	defer g.mu.Unlock()
	g.status.Saving = false
	if err != nil {
		g.status.LastError = err.Error()
		g.status.LastErrorAt = &finished
		g.logger.Warn("gradebook save failed", zap.Uint64("revision", snapshot.revision), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "save gradebook snapshot")
	}
	if snapshot.revision > g.status.SavedRevision {
		g.status.SavedRevision = snapshot.revision
	}
	g.status.LastSavedAt = &finished
	g.status.LastError = ""
	g.status.LastErrorAt = nil
	g.status.Dirty = g.status.SavedRevision < g.status.Revision
	g.metrics.SetSavePending(g.status.Dirty)
	g.logger.Debug("gradebook saved", zap.Uint64("revision", snapshot.revision), zap.Duration("duration", finished.Sub(start)))
	return nil
}
