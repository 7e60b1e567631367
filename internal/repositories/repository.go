package repositories

import "context"

// Repository aggregates every repository the service uses
type Repository interface {
	// Content side (read-only)
	TestDefinition() TestDefinitionRepository
	Access() AccessRepository

	// Attempt domain
	Attempt() AttemptRepository
	Answer() AnswerRepository
	Score() ScoreRepository

	// Admin-managed
	Cutoff() CutoffRepository

	// Identity (external)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
