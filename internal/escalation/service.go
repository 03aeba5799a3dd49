// Package escalation implements the knowledge-base lookup and supervisor
// escalation workflow: missed questions become pending help requests,
// supervisor resolutions feed answers back into the knowledge base, and both
// transitions are announced to connected live clients.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supportline/supportline/internal/domain"
	"github.com/supportline/supportline/internal/store"
)

// PlaceholderReply is returned to the user while their question waits for a
// supervisor.
const PlaceholderReply = "Let me check with my supervisor and get back to you."

var (
	// ErrEmptyMessage rejects blank chat submissions.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMissingAnswer rejects resolutions without answer text.
	ErrMissingAnswer = errors.New("answer is required")

	// ErrNotFound signals an unknown help request ID.
	ErrNotFound = errors.New("help request not found")

	// ErrAlreadyClosed rejects transitions out of a terminal state.
	ErrAlreadyClosed = errors.New("help request already closed")
)

// Normalize maps a question to its knowledge base key: trimmed and
// case-folded. Escalations keep the raw text so supervisors see the original
// phrasing; only KB matching uses the normalized form.
func Normalize(question string) string {
	return strings.ToLower(strings.TrimSpace(question))
}

// Service orchestrates knowledge base lookups, help request lifecycle, and
// event fan-out.
type Service struct {
	repo   store.Repository
	events Broadcaster
}

// NewService creates an escalation service. events may be nil, in which case
// no notifications are emitted.
func NewService(repo store.Repository, events Broadcaster) *Service {
	return &Service{
		repo:   repo,
		events: events,
	}
}

// HandleMessage answers a chat message from the knowledge base, or escalates
// it. On a KB hit the stored answer is returned with no side effects. On a
// miss a pending help request is created with the raw message text, a
// new_help_request event is broadcast, and the placeholder reply is returned.
func (s *Service) HandleMessage(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	entry, err := s.repo.FindKnowledge(ctx, Normalize(message))
	if err != nil {
		return "", fmt.Errorf("knowledge lookup: %w", err)
	}
	if entry != nil {
		return entry.Answer, nil
	}

	req := &domain.HelpRequest{
		ID:        uuid.NewString(),
		Question:  message,
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateHelpRequest(ctx, req); err != nil {
		return "", fmt.Errorf("create help request: %w", err)
	}

	s.broadcast(NewHelpRequestEvent{
		Type:      EventNewHelpRequest,
		ID:        req.ID,
		Question:  req.Question,
		CreatedAt: req.CreatedAt,
	})

	return PlaceholderReply, nil
}

// Resolve records a supervisor's answer for a pending help request, feeds
// the answer into the knowledge base under the request's normalized question,
// and broadcasts a help_resolved event. Resolution is the only path by which
// the knowledge base grows.
//
// The request update and the KB upsert are two separate writes; a crash
// between them leaves the request resolved with the KB one answer behind.
func (s *Service) Resolve(ctx context.Context, id, answer string) (*domain.HelpRequest, error) {
	if strings.TrimSpace(answer) == "" {
		return nil, ErrMissingAnswer
	}

	req, err := s.fetchOpen(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	req.Answer = answer
	req.Status = domain.StatusResolved
	req.ResolvedAt = &now

	if err := s.repo.UpdateHelpRequest(ctx, req); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update help request: %w", err)
	}

	if _, err := s.repo.UpsertKnowledge(ctx, Normalize(req.Question), answer); err != nil {
		return nil, fmt.Errorf("upsert knowledge: %w", err)
	}

	s.broadcast(HelpResolvedEvent{
		Type:       EventHelpResolved,
		ID:         req.ID,
		Question:   req.Question,
		Answer:     req.Answer,
		ResolvedAt: now,
	})

	return req, nil
}

// MarkUnresolved closes a pending help request without an answer. It never
// touches the knowledge base and emits no event.
func (s *Service) MarkUnresolved(ctx context.Context, id string) (*domain.HelpRequest, error) {
	req, err := s.fetchOpen(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Status = domain.StatusUnresolved

	if err := s.repo.UpdateHelpRequest(ctx, req); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update help request: %w", err)
	}

	return req, nil
}

// List returns help requests newest-first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status domain.HelpStatus) ([]*domain.HelpRequest, error) {
	reqs, err := s.repo.ListHelpRequests(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list help requests: %w", err)
	}
	return reqs, nil
}

// fetchOpen loads a help request that is still pending. Resolved and
// unresolved requests are terminal; there is no re-opening.
func (s *Service) fetchOpen(ctx context.Context, id string) (*domain.HelpRequest, error) {
	req, err := s.repo.GetHelpRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get help request: %w", err)
	}
	if req == nil {
		return nil, ErrNotFound
	}
	if req.IsClosed() {
		return nil, ErrAlreadyClosed
	}
	return req, nil
}

func (s *Service) broadcast(event interface{}) {
	if s.events != nil {
		s.events.Broadcast(event)
	}
}
