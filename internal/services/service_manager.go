package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	LogLevel slog.Level

	// Timeout sweep. The sweep is the server-side authority that closes
	// attempts whose deadline passed without a submit call.
	TimeoutSweepInterval time.Duration
	TimeoutSweepBatch    int

	DefaultTimeout time.Duration
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	config    ServiceManagerConfig

	// Service instances
	quizService     QuizService
	questionService QuestionService
	attemptService  AttemptService
	gradingService  GradingService
	reportService   ReportService

	// Lifecycle management
	initialized bool
	shutdown    bool
	stopSweep   chan struct{}
	sweepDone   chan struct{}
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: v,
		publisher: publisher,
		config:    config,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration
func NewDefaultServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) ServiceManager {
	config := ServiceManagerConfig{
		LogLevel:             slog.LevelInfo,
		TimeoutSweepInterval: 30 * time.Second,
		TimeoutSweepBatch:    100,
		DefaultTimeout:       30 * time.Second,
	}
	return NewServiceManager(db, repo, logger, v, publisher, config)
}

// Initialize sets up all services and starts the timeout sweeper.
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	sm.quizService = NewQuizService(sm.repo, sm.db, sm.logger, sm.validator)
	sm.questionService = NewQuestionService(sm.repo, sm.db, sm.logger, sm.validator)
	sm.attemptService = NewAttemptService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher)
	sm.gradingService = NewGradingService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher)
	sm.reportService = NewReportService(sm.repo, sm.db, sm.logger)

	if sm.config.TimeoutSweepInterval > 0 {
		sm.stopSweep = make(chan struct{})
		sm.sweepDone = make(chan struct{})
		go sm.runTimeoutSweep()
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized")

	return nil
}

// runTimeoutSweep periodically closes attempts whose deadline has passed.
func (sm *serviceManager) runTimeoutSweep() {
	defer close(sm.sweepDone)

	ticker := time.NewTicker(sm.config.TimeoutSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sm.stopSweep:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), sm.config.DefaultTimeout)
			if _, err := sm.attemptService.HandleTimeouts(ctx, sm.config.TimeoutSweepBatch); err != nil {
				sm.logger.Error("Timeout sweep failed", "error", err)
			}
			cancel()
		}
	}
}

// Service getters

func (sm *serviceManager) Quiz() QuizService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.quizService
}

func (sm *serviceManager) Question() QuestionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.questionService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.attemptService
}

func (sm *serviceManager) Grading() GradingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.gradingService
}

func (sm *serviceManager) Report() ReportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.reportService
}

// Health and lifecycle

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.stopSweep != nil {
		close(sm.stopSweep)
		select {
		case <-sm.sweepDone:
		case <-ctx.Done():
		}
	}

	if sm.publisher != nil {
		if err := sm.publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}
