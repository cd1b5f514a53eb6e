package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/store/postgres"
)

func TestEventStore_AppendAndLoad(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	aggID := "1001"
	events := []event.Event{
		event.New(aggID, event.MoneyEarned, event.MoneyData{Amount: 50}, t0),
		event.New(aggID, event.UpgradeBought, event.UpgradeData{Name: "factory", Quantity: 1}, t0.Add(time.Second)),
	}

	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := es.Load(ctx, aggID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Load returned %d events, want 2", len(loaded))
	}

	// Should be ordered by creation time.
	if loaded[0].Type != event.MoneyEarned {
		t.Errorf("event[0].Type = %q, want %q", loaded[0].Type, event.MoneyEarned)
	}
	if loaded[1].ID != events[1].ID {
		t.Errorf("event[1].ID = %q, want %q", loaded[1].ID, events[1].ID)
	}
}

func TestEventStore_LoadByType(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()
	now := time.Now()

	events := []event.Event{
		event.New("a1", event.ExpeditionStarted, struct{}{}, now),
		event.New("a1", event.ExpeditionResolved, struct{}{}, now),
		event.New("a2", event.ExpeditionStarted, struct{}{}, now),
	}

	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	started, err := es.LoadByType(ctx, event.ExpeditionStarted)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(started) != 2 {
		t.Fatalf("LoadByType(ExpeditionStarted) returned %d, want 2", len(started))
	}

	resolved, err := es.LoadByType(ctx, event.ExpeditionResolved)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("LoadByType(ExpeditionResolved) returned %d, want 1", len(resolved))
	}
}

func TestEventStore_UniqueID(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	e := event.New("dup-test", event.MoneyAdjusted, struct{}{}, time.Now())

	if err := es.Append(ctx, e); err != nil {
		t.Fatalf("first Append: %v", err)
	}

	// The same event id must not be journaled twice.
	if err := es.Append(ctx, e); err == nil {
		t.Fatal("expected error for duplicate event id")
	}
}

func TestEventStore_LoadEmpty(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	loaded, err := es.Load(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty slice, got %d events", len(loaded))
	}
}
