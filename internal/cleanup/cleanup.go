// Package cleanup removes expired uploads: the stored object first, then its
// database row. A row whose object could not be removed is kept and retried
// on the next sweep.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"sxbin-backend/internal/config"
	"sxbin-backend/internal/models"
	"sxbin-backend/internal/repository"
	"sxbin-backend/internal/storage"
)

const batchSize = 100

var (
	sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sxbin_cleanup_runs_total",
		Help: "Number of expired-file sweeps.",
	})

	deletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sxbin_cleanup_deleted_total",
		Help: "Objects and rows removed by the sweep.",
	}, []string{"target"})

	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sxbin_cleanup_failures_total",
		Help: "Deletions that failed during the sweep.",
	}, []string{"target"})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sxbin_cleanup_duration_seconds",
		Help:    "Duration of expired-file sweeps.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// ExpiredFiles is the part of the files repository the sweep needs.
type ExpiredFiles interface {
	ListExpired(ctx context.Context, now time.Time, after repository.ExpiredCursor, limit int) ([]models.FileRecord, error)
	Delete(ctx context.Context, id string) error
}

type Result struct {
	Expired  int
	Deleted  int
	Failed   int
	Skipped  bool
	Duration time.Duration
}

type Job struct {
	files  ExpiredFiles
	store  storage.ObjectStore
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	initial sync.WaitGroup
}

func NewJob(files ExpiredFiles, store storage.ObjectStore, logger *zap.Logger) *Job {
	return &Job{
		files:  files,
		store:  store,
		logger: logger.Named("cleanup"),
		now:    time.Now,
	}
}

// RunOnce sweeps every expired row. It returns at once with Skipped set when
// another sweep is still running.
func (j *Job) RunOnce(ctx context.Context) (*Result, error) {
	if !j.mu.TryLock() {
		j.logger.Info("previous sweep still running, skipping")
		return &Result{Skipped: true}, nil
	}
	defer j.mu.Unlock()

	start := time.Now()
	result := &Result{}
	now := j.now().UTC()

	var (
		err    error
		cursor repository.ExpiredCursor
	)
	for {
		var batch []models.FileRecord
		batch, err = j.files.ListExpired(ctx, now, cursor, batchSize)
		if err != nil {
			err = fmt.Errorf("failed to list expired files: %w", err)
			break
		}
		if len(batch) == 0 {
			break
		}

		failed := 0
		for i := range batch {
			if j.remove(ctx, &batch[i]) {
				result.Deleted++
			} else {
				failed++
			}
		}
		result.Expired += len(batch)
		result.Failed += failed

		// Failed rows stay in the table, so paging continues after the last
		// row listed rather than from the start.
		if len(batch) < batchSize {
			break
		}
		cursor = repository.CursorAfter(&batch[len(batch)-1])
	}

	result.Duration = time.Since(start)
	sweepsTotal.Inc()
	sweepDuration.Observe(result.Duration.Seconds())

	if err != nil {
		j.logger.Error("sweep aborted", zap.Int("deleted", result.Deleted), zap.Error(err))
		return result, err
	}

	j.logger.Info("sweep finished",
		zap.Int("expired", result.Expired),
		zap.Int("deleted", result.Deleted),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (j *Job) remove(ctx context.Context, f *models.FileRecord) bool {
	err := j.store.Delete(ctx, f.S3Key)
	switch {
	case err == nil:
		deletedTotal.WithLabelValues("object").Inc()
	case errors.Is(err, storage.ErrObjectNotFound):
		j.logger.Debug("expired object already gone", zap.String("short_id", f.ShortID), zap.String("key", f.S3Key))
	default:
		failuresTotal.WithLabelValues("object").Inc()
		j.logger.Error("failed to delete expired object",
			zap.String("short_id", f.ShortID), zap.String("key", f.S3Key), zap.Error(err))
		return false
	}

	if err := j.files.Delete(ctx, f.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		failuresTotal.WithLabelValues("row").Inc()
		j.logger.Error("failed to delete expired row", zap.String("short_id", f.ShortID), zap.Error(err))
		return false
	}
	deletedTotal.WithLabelValues("row").Inc()

	j.logger.Debug("expired file removed", zap.String("short_id", f.ShortID))
	return true
}

// Start schedules the sweep. Unless SkipInitialRun is set, a first sweep runs
// right away in the background.
func (j *Job) Start(ctx context.Context, cfg config.CleanupConfig) error {
	logger := cronLogger{j.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(cfg.Schedule, func() { j.RunOnce(context.WithoutCancel(ctx)) }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", cfg.Schedule, err)
	}

	j.cron = c
	c.Start()
	j.logger.Info("cleanup scheduled", zap.String("schedule", cfg.Schedule))

	if !cfg.SkipInitialRun {
		j.initial.Add(1)
		go func() {
			defer j.initial.Done()
			j.RunOnce(context.WithoutCancel(ctx))
		}()
	}
	return nil
}

// Stop stops the schedule and waits for running sweeps, including the
// start-up sweep, to finish or ctx to expire.
func (j *Job) Stop(ctx context.Context) {
	if j.cron == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		<-j.cron.Stop().Done()
		j.initial.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		j.logger.Warn("cleanup sweep still running at shutdown")
	}
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
