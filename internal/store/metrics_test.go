package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/shopspring/decimal"
)

func TestLoadSaleStats(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := mustUser(t, database, "staff", model.RoleStaff)

	openItem := mustItem(t, database, "Open")
	open := mustTransition(t, database, openItem.ID, user.ID)
	SetTransitionAssessment(ctx, database, open.ID, &model.ConflictSummary{RevenueImpact: decimal.RequireFromString("80.25")}, true)
	UpdateTransition(ctx, database, open.ID, model.TransitionPending, TransitionChange{Status: model.TransitionAwaitingApproval})

	doneItem := mustItem(t, database, "Done")
	done := mustTransition(t, database, doneItem.ID, user.ID)
	completed := time.Now().UTC().Add(2 * time.Hour)
	UpdateTransition(ctx, database, done.ID, model.TransitionPending, TransitionChange{
		Status: model.TransitionCompleted, CompletedAt: &completed,
	})

	CreateConflict(ctx, database, &model.Conflict{
		TransitionID: open.ID, Type: model.ConflictInventoryHold, EntityType: model.EntityHold, EntityID: 1,
		Severity: model.SeverityMedium, Description: "hold", DetectedAt: time.Now(),
	})
	CreateConflict(ctx, database, &model.Conflict{
		TransitionID: open.ID, Type: model.ConflictInventoryHold, EntityType: model.EntityHold, EntityID: 2,
		Severity: model.SeverityMedium, Description: "old hold", DetectedAt: time.Now().AddDate(0, 0, -3),
	})

	since := time.Now().UTC().Add(-time.Hour)
	stats, err := LoadSaleStats(ctx, database, since)
	if err != nil {
		t.Fatalf("LoadSaleStats: %v", err)
	}

	if stats.ByStatus[model.TransitionAwaitingApproval] != 1 || stats.ByStatus[model.TransitionCompleted] != 1 {
		t.Errorf("unexpected status counts: %v", stats.ByStatus)
	}
	if !stats.ActiveRevenueImpact.Equal(decimal.RequireFromString("80.25")) {
		t.Errorf("expected active revenue 80.25, got %s", stats.ActiveRevenueImpact)
	}
	if stats.ConflictsSince != 1 {
		t.Errorf("expected 1 recent conflict, got %d", stats.ConflictsSince)
	}
	if len(stats.CompletionDurations) != 1 || stats.CompletionDurations[0] < time.Hour {
		t.Errorf("unexpected completion durations: %v", stats.CompletionDurations)
	}
}
