package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/test-attempt-service/internal/events"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
	"github.com/SAP-F-2025/test-attempt-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	Attempt AttemptConfig

	// SweepInterval of zero disables the expiry sweeper
	SweepInterval time.Duration

	Clock     utils.Clock
	Publisher events.EventPublisher
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	config    ServiceManagerConfig

	// Service instances
	definitionService  DefinitionService
	attemptService     AttemptService
	resultService      ResultService
	cutoffService      CutoffService
	participantService ParticipantService
	sweeper            *ExpirySweeper

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, config ServiceManagerConfig) ServiceManager {
	if config.Clock == nil {
		config.Clock = utils.SystemClock{}
	}
	if config.Attempt.Retry.Attempts < 1 {
		config.Attempt.Retry = DefaultRetryPolicy
	}

	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
		config:    config,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.repo == nil {
		return fmt.Errorf("repository is required")
	}

	sm.logger.Info("Initializing service manager")

	sm.initializeServices()

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

func (sm *serviceManager) initializeServices() {
	retry := sm.config.Attempt.Retry

	sm.definitionService = NewDefinitionService(sm.repo, sm.logger, retry)
	sm.logger.Info("Definition service initialized")

	sm.attemptService = NewAttemptService(sm.repo, sm.db, sm.logger, sm.validator, sm.definitionService, sm.config.Publisher, sm.config.Clock, sm.config.Attempt)
	sm.logger.Info("Attempt service initialized")

	sm.resultService = NewResultService(sm.repo, sm.db, sm.logger, sm.attemptService, sm.definitionService, sm.config.Clock, retry)
	sm.logger.Info("Result service initialized")

	sm.cutoffService = NewCutoffService(sm.repo, sm.db, sm.logger, sm.validator, sm.definitionService, sm.config.Publisher, sm.config.Clock)
	sm.logger.Info("Cutoff service initialized")

	sm.participantService = NewParticipantService(sm.repo, sm.db, sm.logger, sm.definitionService, retry)
	sm.logger.Info("Participant service initialized")

	sm.sweeper = NewExpirySweeper(sm.repo, sm.attemptService, sm.config.Clock, sm.logger, sm.config.SweepInterval, sm.config.Attempt.ExpiryGrace)
	sm.logger.Info("Expiry sweeper initialized", "interval", sm.config.SweepInterval)
}

func (sm *serviceManager) Definition() DefinitionService {
	sm.mustBeInitialized()
	return sm.definitionService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mustBeInitialized()
	return sm.attemptService
}

func (sm *serviceManager) Result() ResultService {
	sm.mustBeInitialized()
	return sm.resultService
}

func (sm *serviceManager) Cutoff() CutoffService {
	sm.mustBeInitialized()
	return sm.cutoffService
}

func (sm *serviceManager) Participant() ParticipantService {
	sm.mustBeInitialized()
	return sm.participantService
}

func (sm *serviceManager) Sweeper() *ExpirySweeper {
	sm.mustBeInitialized()
	return sm.sweeper
}

func (sm *serviceManager) mustBeInitialized() {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
}

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	return nil
}

// Shutdown stops background work and closes the event publisher. Storage connections
// belong to the repository manager.
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.sweeper != nil {
		sm.sweeper.Stop()
	}

	if sm.config.Publisher != nil {
		if err := sm.config.Publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}
