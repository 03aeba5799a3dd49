// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/supportline/supportline/internal/domain"
)

// ErrNotFound is returned by update operations that target a record which
// does not exist. Lookups signal a miss with a nil record instead.
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for persisting knowledge base entries,
// help requests, and user accounts.
type Repository interface {
	// FindKnowledge retrieves a knowledge base entry by normalized question.
	// Returns (nil, nil) when no entry matches.
	FindKnowledge(ctx context.Context, question string) (*domain.KnowledgeEntry, error)

	// UpsertKnowledge creates an entry for the normalized question or
	// replaces its answer in place. Idempotent under repeated identical calls.
	UpsertKnowledge(ctx context.Context, question, answer string) (*domain.KnowledgeEntry, error)

	// CreateHelpRequest persists a new help request record.
	CreateHelpRequest(ctx context.Context, req *domain.HelpRequest) error

	// GetHelpRequest retrieves a help request by ID. Returns (nil, nil) when
	// no record matches.
	GetHelpRequest(ctx context.Context, id string) (*domain.HelpRequest, error)

	// ListHelpRequests returns help requests newest-first, optionally
	// filtered by status. An empty status returns all requests.
	ListHelpRequests(ctx context.Context, status domain.HelpStatus) ([]*domain.HelpRequest, error)

	// UpdateHelpRequest persists changed fields (status, answer, resolved_at)
	// of an existing record. Returns ErrNotFound if the ID does not exist.
	UpdateHelpRequest(ctx context.Context, req *domain.HelpRequest) error

	// ListExpiredPending returns pending help requests created earlier than
	// now minus ttl, for the unresolved sweeper.
	ListExpiredPending(ctx context.Context, ttl time.Duration) ([]*domain.HelpRequest, error)

	// GetUserByEmail retrieves a user account by email. Returns (nil, nil)
	// when no account matches.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// CreateUser persists a new user account.
	CreateUser(ctx context.Context, user *domain.User) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
