package sqlite_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.EventStore {
	t.Helper()
	db, err := sqlite.Connect(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlite.NewEventStore(db)
}

func TestEventStore_AppendAndLoad(t *testing.T) {
	es := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	events := []event.Event{
		event.New("1001", event.MoneyEarned, event.MoneyData{Amount: 50, BalanceAfter: 150}, t0),
		event.New("1001", event.UpgradeBought, event.UpgradeData{Name: "factory", Quantity: 1, Cost: 1000}, t0.Add(time.Minute)),
		event.New("2002", event.MoneyEarned, event.MoneyData{Amount: 5}, t0),
	}
	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := es.Load(ctx, "1001")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Load returned %d events, want 2", len(loaded))
	}
	if loaded[0].Type != event.MoneyEarned || loaded[1].Type != event.UpgradeBought {
		t.Errorf("types = [%s, %s], want [%s, %s]", loaded[0].Type, loaded[1].Type, event.MoneyEarned, event.UpgradeBought)
	}
	if !loaded[0].CreatedAt.Equal(t0) {
		t.Errorf("CreatedAt = %v, want %v", loaded[0].CreatedAt, t0)
	}

	var data event.UpgradeData
	if err := json.Unmarshal(loaded[1].Data, &data); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if data.Name != "factory" || data.Cost != 1000 {
		t.Errorf("payload = %+v", data)
	}
}

func TestEventStore_LoadByType(t *testing.T) {
	es := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	events := []event.Event{
		event.New("a1", event.ExpeditionResolved, nil, now),
		event.New("a1", event.AttackResolved, nil, now),
		event.New("a2", event.ExpeditionResolved, nil, now),
	}
	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := es.LoadByType(ctx, event.ExpeditionResolved)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("LoadByType(ExpeditionResolved) returned %d, want 2", len(got))
	}
}

func TestEventStore_DuplicateID(t *testing.T) {
	es := newTestStore(t)
	ctx := context.Background()

	e := event.New("dup", event.MoneyAdjusted, nil, time.Now())
	if err := es.Append(ctx, e); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if err := es.Append(ctx, e); err == nil {
		t.Fatal("expected error for duplicate event id")
	}
}

func TestEventStore_LoadEmpty(t *testing.T) {
	es := newTestStore(t)
	loaded, err := es.Load(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty slice, got %d events", len(loaded))
	}
}
