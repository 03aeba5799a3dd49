package escalation

import (
	"context"
	"testing"
	"time"

	"github.com/supportline/supportline/internal/domain"
)

func TestSweepMarksExpiredPendingUnresolved(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeBroadcaster{})

	old := &domain.HelpRequest{
		ID:        "old",
		Question:  "old question",
		Status:    domain.StatusPending,
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	fresh := &domain.HelpRequest{
		ID:        "fresh",
		Question:  "fresh question",
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	}
	if err := repo.CreateHelpRequest(context.Background(), old); err != nil {
		t.Fatalf("CreateHelpRequest failed: %v", err)
	}
	if err := repo.CreateHelpRequest(context.Background(), fresh); err != nil {
		t.Fatalf("CreateHelpRequest failed: %v", err)
	}

	sweepExpiredPending(context.Background(), repo, svc, time.Hour)

	got, err := repo.GetHelpRequest(context.Background(), "old")
	if err != nil {
		t.Fatalf("GetHelpRequest failed: %v", err)
	}
	if got.Status != domain.StatusUnresolved {
		t.Errorf("Expected expired request marked unresolved, got %q", got.Status)
	}

	got, err = repo.GetHelpRequest(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("GetHelpRequest failed: %v", err)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("Expected fresh request untouched, got %q", got.Status)
	}

	if len(repo.knowledge) != 0 {
		t.Error("Sweep must never touch the knowledge base")
	}
}

func TestSweepSkipsRequestsClosedMidSweep(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeBroadcaster{})

	resolvedAt := time.Now()
	closed := &domain.HelpRequest{
		ID:         "closed",
		Question:   "already handled",
		Answer:     "Answer.",
		Status:     domain.StatusResolved,
		CreatedAt:  time.Now().Add(-2 * time.Hour),
		ResolvedAt: &resolvedAt,
	}
	if err := repo.CreateHelpRequest(context.Background(), closed); err != nil {
		t.Fatalf("CreateHelpRequest failed: %v", err)
	}

	// The fake lists by status, so a closed request never shows up; calling
	// the sweep must simply leave it alone.
	sweepExpiredPending(context.Background(), repo, svc, time.Hour)

	got, err := repo.GetHelpRequest(context.Background(), "closed")
	if err != nil {
		t.Fatalf("GetHelpRequest failed: %v", err)
	}
	if got.Status != domain.StatusResolved || got.Answer != "Answer." {
		t.Errorf("Resolved request must stay resolved, got %+v", got)
	}
}
