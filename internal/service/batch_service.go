package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-center-api/internal/dto"
	"github.com/noah-isme/tutor-center-api/internal/models"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
	"github.com/noah-isme/tutor-center-api/pkg/jobs"
)

type batchEnrollmentSource interface {
	ListNeedingGeneration(ctx context.Context, gracePeriodDays int) ([]models.Enrollment, error)
}

// BatchServiceConfig governs the batch driver.
type BatchServiceConfig struct {
	Workers         int
	GracePeriodDays int
	Interval        time.Duration
}

// BatchService is the stateless batch driver: each sweep queries the
// enrollments still owing sessions and invokes per-enrollment generation
// with per-item error isolation. It carries no state between sweeps; all
// correctness lives in the generator's own transaction and the storage
// guards.
type BatchService struct {
	enrollments batchEnrollmentSource
	generator   sessionGenerator
	pool        *jobs.Pool
	logger      *zap.Logger
	metrics     *MetricsService
	grace       int
	interval    time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewBatchService wires the batch driver.
func NewBatchService(
	enrollments batchEnrollmentSource,
	generator sessionGenerator,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg BatchServiceConfig,
) *BatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.GracePeriodDays < 0 {
		cfg.GracePeriodDays = 0
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &BatchService{
		enrollments: enrollments,
		generator:   generator,
		pool:        jobs.NewPool(cfg.Workers, logger),
		logger:      logger,
		metrics:     metrics,
		grace:       cfg.GracePeriodDays,
		interval:    cfg.Interval,
	}
}

// Run performs one sweep. Eligible enrollments are generated concurrently;
// a failing enrollment is reported in its batch item and does not abort the
// others.
func (s *BatchService) Run(ctx context.Context) (*dto.BatchGenerationResult, error) {
	eligible, err := s.enrollments.ListNeedingGeneration(ctx, s.grace)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments needing generation")
	}

	result := &dto.BatchGenerationResult{Processed: len(eligible)}
	if len(eligible) == 0 {
		return result, nil
	}

	ids := make([]string, len(eligible))
	indexByID := make(map[string]int, len(eligible))
	for i, enrollment := range eligible {
		ids[i] = enrollment.ID
		indexByID[enrollment.ID] = i
	}

	created := make([]int, len(ids))
	outcomes := s.pool.Run(ctx, ids, func(taskCtx context.Context, enrollmentID string) error {
		generated, err := s.generator.GenerateSessions(taskCtx, enrollmentID)
		if err != nil {
			return err
		}
		created[indexByID[enrollmentID]] = generated.Created
		return nil
	})

	for i, outcome := range outcomes {
		item := dto.BatchGenerationItem{EnrollmentID: outcome.Key, Created: created[i]}
		if outcome.Err != nil {
			item.Error = appErrors.FromError(outcome.Err).Message
			result.Failed++
			s.metrics.ObserveGenerationFailure()
		} else {
			result.Generated += created[i]
		}
		result.Items = append(result.Items, item)
	}

	s.logger.Info("batch generation sweep finished",
		zap.Int("processed", result.Processed),
		zap.Int("generated", result.Generated),
		zap.Int("failed", result.Failed))
	return result, nil
}

// Start launches the periodic sweep loop. Safe to call once.
func (s *BatchService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopped = make(chan struct{})

	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if _, err := s.Run(loopCtx); err != nil {
					s.logger.Error("batch generation sweep failed", zap.Error(err))
				}
			}
		}
	}()
	s.logger.Info("batch generation driver started",
		zap.Duration("interval", s.interval),
		zap.Int("gracePeriodDays", s.grace))
}

// Stop cancels the sweep loop and waits for it to exit.
func (s *BatchService) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	stopped := s.stopped
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-stopped
	s.logger.Info("batch generation driver stopped")
}
