package economy_test

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jensholdgaard/trinity/internal/clock"
	"github.com/jensholdgaard/trinity/internal/economy"
	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/game"
	"github.com/jensholdgaard/trinity/internal/random"
	"github.com/jensholdgaard/trinity/internal/state"
)

// --- mock helpers ---

type mockEventStore struct {
	mu        sync.Mutex
	events    []event.Event
	appendErr error
}

func (m *mockEventStore) Append(_ context.Context, events ...event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.events = append(m.events, events...)
	return nil
}

func (m *mockEventStore) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []event.Event
	for _, e := range m.events {
		if e.AggregateID == aggregateID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEventStore) LoadByType(_ context.Context, eventType event.Type) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []event.Event
	for _, e := range m.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEventStore) count(typ event.Type) int {
	evts, _ := m.LoadByType(context.Background(), typ)
	return len(evts)
}

type harness struct {
	mgr    *economy.Manager
	state  *state.Store
	clock  *clock.Manual
	events *mockEventStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := state.Open(context.Background(), filepath.Join(t.TempDir(), "config.json"), slog.Default())
	if err != nil {
		t.Fatalf("state.Open() error: %v", err)
	}
	clk := clock.NewManual(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	es := &mockEventStore{}
	mgr := economy.NewManager(st, es, clk, random.NewSeeded(1), nil, slog.Default(), noop.NewTracerProvider())
	return &harness{mgr: mgr, state: st, clock: clk, events: es}
}

// seed applies fn to the document directly.
func (h *harness) seed(t *testing.T, fn func(doc *game.Document)) {
	t.Helper()
	if err := h.state.Update(context.Background(), func(doc *game.Document) error {
		fn(doc)
		return nil
	}); err != nil {
		t.Fatalf("seeding state: %v", err)
	}
}

func (h *harness) player(t *testing.T, id game.ID) game.Player {
	t.Helper()
	var out game.Player
	_ = h.state.View(func(doc *game.Document) error {
		p, err := doc.Player(id)
		if err != nil {
			t.Fatalf("Player(%d): %v", id, err)
		}
		out = *p
		return nil
	})
	return out
}

// --- tests ---

func TestManager_WorkWithoutIncomeRejected(t *testing.T) {
	h := newHarness(t)
	h.seed(t, func(doc *game.Document) {
		p, _ := doc.EnsurePlayer(1)
		p.Balance = 100
	})

	_, err := h.mgr.Work(context.Background(), 1, nil)
	if !errors.Is(err, game.ErrNoIncomeSource) {
		t.Fatalf("Work() error = %v, want ErrNoIncomeSource", err)
	}
	p := h.player(t, 1)
	if p.Balance != 100 || !p.LastWork.IsZero() {
		t.Errorf("state mutated: balance %d, last-work %v", p.Balance, p.LastWork)
	}
}

func TestManager_WorkAccrual(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	roles := []game.Role{{ID: 10, Name: "Dukes"}}
	h.seed(t, func(doc *game.Document) {
		doc.EnsurePlayer(1)
		doc.Income[10] = 100
	})

	// First accrual credits one full interval.
	res, err := h.mgr.Work(ctx, 1, roles)
	if err != nil {
		t.Fatalf("Work() error: %v", err)
	}
	if res.Earned != 100 || res.Balance != 100 {
		t.Errorf("first Work() = %+v, want earned 100", res)
	}
	if !res.Next.Equal(h.clock.Now().Add(2 * time.Hour)) {
		t.Errorf("Next = %v, want now+2h", res.Next)
	}

	// Too early: rejected without mutation.
	h.clock.Advance(time.Hour)
	before := h.player(t, 1)
	res, err = h.mgr.Work(ctx, 1, roles)
	if !errors.Is(err, game.ErrTooEarly) {
		t.Fatalf("Work() error = %v, want ErrTooEarly", err)
	}
	if res.Next.IsZero() {
		t.Error("expected next eligible time on rejection")
	}
	after := h.player(t, 1)
	if after.Balance != before.Balance || after.LastWork != before.LastWork {
		t.Error("rejected work mutated state")
	}

	// 3h after the first accrual: 1.5 intervals.
	h.clock.Advance(2 * time.Hour)
	res, err = h.mgr.Work(ctx, 1, roles)
	if err != nil {
		t.Fatalf("Work() error: %v", err)
	}
	if res.Earned != 150 || res.Balance != 250 {
		t.Errorf("second Work() = %+v, want earned 150 balance 250", res)
	}
	if n := h.events.count(event.MoneyEarned); n != 2 {
		t.Errorf("MoneyEarned events = %d, want 2", n)
	}
}

func TestManager_BuyFactory(t *testing.T) {
	h := newHarness(t)
	roles := []game.Role{{ID: 10, Name: "Dukes"}}
	h.seed(t, func(doc *game.Document) {
		doc.Upgrades["factory"] = game.Upgrade{Cost: 1000, Income: 50}
		p, _ := doc.EnsurePlayer(1)
		p.Balance = 1500
		doc.Income[10] = 500
	})

	res, err := h.mgr.Buy(context.Background(), 1, roles, "factory", 1)
	if err != nil {
		t.Fatalf("Buy() error: %v", err)
	}
	if res.Balance != 500 || res.Cost != 1000 {
		t.Errorf("Buy() = %+v, want cost 1000 balance 500", res)
	}
	if res.RoleIncome != 550 || res.Role.ID != 10 {
		t.Errorf("income bucket = %d on role %d, want 550 on 10", res.RoleIncome, res.Role.ID)
	}
	p := h.player(t, 1)
	if p.Upgrades["factory"] != 1 {
		t.Errorf("owned = %d, want 1", p.Upgrades["factory"])
	}
	if n := h.events.count(event.UpgradeBought); n != 1 {
		t.Errorf("UpgradeBought events = %d, want 1", n)
	}
}

func TestManager_BuyRejections(t *testing.T) {
	one := 1
	tests := []struct {
		name    string
		roles   []game.Role
		upgrade string
		qty     int
		seed    func(doc *game.Document, p *game.Player)
		wantErr error
		check   func(t *testing.T, res economy.Purchase)
	}{
		{
			name:    "unknown upgrade",
			upgrade: "castle",
			qty:     1,
			wantErr: game.ErrUpgradeNotFound,
		},
		{
			name:    "zero quantity",
			upgrade: "farm",
			qty:     0,
			wantErr: game.ErrInvalidAmount,
		},
		{
			name:    "missing requirement",
			upgrade: "mill",
			qty:     1,
			wantErr: game.ErrMissingRequired,
		},
		{
			name:    "cap reached",
			upgrade: "farm",
			qty:     2,
			seed: func(doc *game.Document, p *game.Player) {
				p.UpgradeCaps["farm"] = &one
			},
			wantErr: game.ErrUpgradeCap,
		},
		{
			name:    "cap with huge quantity",
			upgrade: "farm",
			qty:     math.MaxInt,
			seed: func(doc *game.Document, p *game.Player) {
				p.UpgradeCaps["farm"] = game.Cap(5)
				p.Upgrades["farm"] = 1
			},
			wantErr: game.ErrUpgradeCap,
		},
		{
			name:    "cost overflows",
			upgrade: "farm",
			qty:     1 << 62,
			wantErr: game.ErrInvalidAmount,
		},
		{
			name:    "income overflows",
			upgrade: "farm",
			qty:     1 << 53,
			seed: func(doc *game.Document, p *game.Player) {
				doc.Upgrades["farm"] = game.Upgrade{Cost: 0, Income: 1 << 11}
			},
			wantErr: game.ErrInvalidAmount,
		},
		{
			name:    "insufficient funds",
			upgrade: "farm",
			qty:     100,
			wantErr: game.ErrInsufficientFund,
		},
		{
			name:    "insufficient funds for huge quantity",
			upgrade: "farm",
			qty:     1 << 53,
			wantErr: game.ErrInsufficientFund,
		},
		{
			name:    "no income role",
			upgrade: "farm",
			qty:     1,
			roles:   []game.Role{{ID: 30, Name: "@everyone"}},
			wantErr: game.ErrNoIncomeRole,
		},
		{
			name:    "ambiguous role",
			upgrade: "farm",
			qty:     1,
			roles:   []game.Role{{ID: 10, Name: "Dukes"}, {ID: 20, Name: "Counts"}},
			wantErr: game.ErrAmbiguousRole,
			check: func(t *testing.T, res economy.Purchase) {
				t.Helper()
				if len(res.Candidates) != 2 {
					t.Errorf("Candidates = %+v, want 2 roles", res.Candidates)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.seed(t, func(doc *game.Document) {
				doc.Upgrades["farm"] = game.Upgrade{Cost: 100, Income: 5}
				doc.Upgrades["mill"] = game.Upgrade{Cost: 10, Require: "farm"}
				doc.Income[10] = 100
				doc.Income[20] = 100
				doc.Income[30] = 100
				p, _ := doc.EnsurePlayer(1)
				p.Balance = 1000
				if tt.seed != nil {
					tt.seed(doc, p)
				}
			})
			before := h.player(t, 1)

			res, err := h.mgr.Buy(context.Background(), 1, tt.roles, tt.upgrade, tt.qty)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Buy() error = %v, want %v", err, tt.wantErr)
			}
			if k := game.KindOf(err); k == game.KindInternal {
				t.Errorf("KindOf = %v, want validation or not_found", k)
			}
			if tt.check != nil {
				tt.check(t, res)
			}
			after := h.player(t, 1)
			if after.Balance != before.Balance || after.Upgrades["farm"] != before.Upgrades["farm"] {
				t.Error("rejected buy mutated state")
			}
		})
	}
}

func TestManager_BuyWithDiscountAndManpower(t *testing.T) {
	h := newHarness(t)
	h.seed(t, func(doc *game.Document) {
		doc.Upgrades["barracks"] = game.Upgrade{Cost: 1000, Manpower: 25}
		p, _ := doc.EnsurePlayer(1)
		p.Balance = 5000
		p.Equipped["Seal"] = game.Item{Discount: "barracks", DiscountPercent: 20, IncomePercent: 100}
		p.Stats[game.Bartering] = 2
	})

	res, err := h.mgr.Buy(context.Background(), 1, nil, "barracks", 2)
	if err != nil {
		t.Fatalf("Buy() error: %v", err)
	}
	// 20% from the item + 2 * 2.5% bartering.
	if res.Discount != 0.25 {
		t.Errorf("Discount = %v, want 0.25", res.Discount)
	}
	if res.Cost != 1500 || res.Balance != 3500 {
		t.Errorf("Buy() = %+v, want cost 1500 balance 3500", res)
	}
	if res.Manpower != 50 {
		t.Errorf("Manpower = %d, want 50", res.Manpower)
	}
}

func TestManager_Pay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, func(doc *game.Document) {
		a, _ := doc.EnsurePlayer(1)
		a.Balance = 100
		doc.EnsurePlayer(2)
	})

	if _, err := h.mgr.Pay(ctx, 1, 2, 0); !errors.Is(err, game.ErrInvalidAmount) {
		t.Errorf("Pay(0) error = %v, want ErrInvalidAmount", err)
	}
	if _, err := h.mgr.Pay(ctx, 1, 2, 101); !errors.Is(err, game.ErrInsufficientFund) {
		t.Errorf("Pay(101) error = %v, want ErrInsufficientFund", err)
	}
	if _, err := h.mgr.Pay(ctx, 1, 3, 10); !errors.Is(err, game.ErrPlayerNotFound) {
		t.Errorf("Pay(to unknown) error = %v, want ErrPlayerNotFound", err)
	}

	res, err := h.mgr.Pay(ctx, 1, 2, 40)
	if err != nil {
		t.Fatalf("Pay() error: %v", err)
	}
	if res.FromBalance != 60 || res.ToBalance != 40 {
		t.Errorf("Pay() = %+v, want 60/40", res)
	}
}

func TestManager_AdminMoney(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, func(doc *game.Document) {
		doc.EnsurePlayer(1)
		doc.EnsurePlayer(2)
	})

	if _, err := h.mgr.AddMoney(ctx, 1, math.MinInt64); !errors.Is(err, game.ErrInvalidAmount) {
		t.Errorf("AddMoney(MinInt64) error = %v, want ErrInvalidAmount", err)
	}
	if _, err := h.mgr.RemoveMoney(ctx, 1, math.MinInt64); !errors.Is(err, game.ErrInvalidAmount) {
		t.Errorf("RemoveMoney(MinInt64) error = %v, want ErrInvalidAmount", err)
	}
	if b, err := h.mgr.AddMoney(ctx, 1, -50); err != nil || b != 50 {
		t.Errorf("AddMoney(-50) = %d, %v, want 50", b, err)
	}
	if b, err := h.mgr.RemoveMoney(ctx, 1, 80); err != nil || b != -30 {
		t.Errorf("RemoveMoney(80) = %d, %v, want -30", b, err)
	}
	if n, err := h.mgr.AddMoneyAll(ctx, 5); err != nil || n != 2 {
		t.Errorf("AddMoneyAll() = %d, %v, want 2", n, err)
	}
	if err := h.mgr.ResetMoney(ctx, 1); err != nil {
		t.Fatalf("ResetMoney() error: %v", err)
	}
	if b, _ := h.mgr.Balance(ctx, 1); b != 0 {
		t.Errorf("balance after reset = %d, want 0", b)
	}
	if b, _ := h.mgr.Balance(ctx, 2); b != 5 {
		t.Errorf("balance of 2 = %d, want 5", b)
	}
	if _, err := h.mgr.AddMoney(ctx, 9, 1); game.KindOf(err) != game.KindNotFound {
		t.Errorf("AddMoney(unknown) kind = %v, want not_found", game.KindOf(err))
	}

	lb, err := h.mgr.Leaderboard(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(lb) != 2 || lb[0].ID != 2 {
		t.Errorf("Leaderboard() = %+v, want player 2 first", lb)
	}
}

func TestManager_Income(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, func(doc *game.Document) { doc.Income[10] = 0 })

	if _, err := h.mgr.AddIncome(ctx, 10, 0); !errors.Is(err, game.ErrInvalidAmount) {
		t.Errorf("AddIncome(0) error = %v, want ErrInvalidAmount", err)
	}
	if v, err := h.mgr.AddIncome(ctx, 10, 300); err != nil || v != 300 {
		t.Errorf("AddIncome(300) = %d, %v", v, err)
	}
	if v, err := h.mgr.RemoveIncome(ctx, 10, 100); err != nil || v != 200 {
		t.Errorf("RemoveIncome(100) = %d, %v", v, err)
	}
	if _, err := h.mgr.AddIncome(ctx, 99, 1); !errors.Is(err, game.ErrRoleNotFound) {
		t.Errorf("AddIncome(unknown) error = %v, want ErrRoleNotFound", err)
	}

	added, removed, err := h.mgr.SyncRoles(ctx, []game.ID{11, 12})
	if err != nil {
		t.Fatal(err)
	}
	if added != 2 || removed != 1 {
		t.Errorf("SyncRoles() = +%d -%d, want +2 -1", added, removed)
	}
	lb, _ := h.mgr.IncomeLeaderboard(ctx)
	if len(lb) != 2 {
		t.Errorf("IncomeLeaderboard() has %d rows, want 2", len(lb))
	}
}

func TestManager_CatalogFanOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, func(doc *game.Document) {
		doc.EnsurePlayer(1)
		doc.Upgrades["farm"] = game.Upgrade{Cost: 10}
		doc.Players[1].Upgrades["farm"] = 3
	})

	cap2 := 2
	if err := h.mgr.AddUpgrade(ctx, "farm", game.Upgrade{Cost: 20}, &cap2); err != nil {
		t.Fatalf("AddUpgrade() error: %v", err)
	}
	if err := h.mgr.AddUpgrade(ctx, "mill", game.Upgrade{Cost: 5, Require: "farm"}, nil); err != nil {
		t.Fatalf("AddUpgrade() error: %v", err)
	}
	if err := h.mgr.AddUpgrade(ctx, "tower", game.Upgrade{Require: "nope"}, nil); !errors.Is(err, game.ErrUpgradeNotFound) {
		t.Errorf("AddUpgrade(bad require) error = %v", err)
	}

	p := h.player(t, 1)
	if p.Upgrades["farm"] != 3 {
		t.Errorf("owned farm = %d, want preserved 3", p.Upgrades["farm"])
	}
	if c := p.UpgradeCaps["farm"]; c == nil || *c != 2 {
		t.Errorf("farm cap = %v, want 2", c)
	}
	if _, ok := p.Upgrades["mill"]; !ok {
		t.Error("expected mill key fanned out")
	}

	offers, err := h.mgr.Catalog(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(offers) != 2 || offers[0].Name != "farm" || offers[0].Owned != 3 {
		t.Errorf("Catalog() = %+v", offers)
	}

	if err := h.mgr.RemoveUpgrade(ctx, "farm"); err != nil {
		t.Fatalf("RemoveUpgrade() error: %v", err)
	}
	p = h.player(t, 1)
	if _, ok := p.Upgrades["farm"]; ok {
		t.Error("farm still owned after removal")
	}
	if _, ok := p.UpgradeCaps["farm"]; ok {
		t.Error("farm cap still present after removal")
	}
	if err := h.mgr.RemoveUpgrade(ctx, "farm"); !errors.Is(err, game.ErrUpgradeNotFound) {
		t.Errorf("second RemoveUpgrade() error = %v", err)
	}
}

func TestManager_LevelAndSkills(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, func(doc *game.Document) { doc.EnsurePlayer(1) })

	view, err := h.mgr.AddXP(ctx, 1, 1200+1440+10)
	if err != nil {
		t.Fatalf("AddXP() error: %v", err)
	}
	if view.Level != 3 || view.Gained != 2 || view.Skillpoints != 2 || view.XP != 10 {
		t.Errorf("AddXP() = %+v, want level 3 with 2 skillpoints and 10 xp", view)
	}
	if view.Threshold != 1728 {
		t.Errorf("Threshold = %v, want 1728", view.Threshold)
	}

	if _, err := h.mgr.AllocateSkill(ctx, 1, "charisma", 1); !errors.Is(err, game.ErrUnknownStat) {
		t.Errorf("AllocateSkill(charisma) error = %v", err)
	}
	if _, err := h.mgr.AllocateSkill(ctx, 1, "trading", 3); !errors.Is(err, game.ErrSkillpoints) {
		t.Errorf("AllocateSkill(3) error = %v", err)
	}
	total, err := h.mgr.AllocateSkill(ctx, 1, "Trading", 2)
	if err != nil || total != 2 {
		t.Fatalf("AllocateSkill() = %d, %v", total, err)
	}
	if p := h.player(t, 1); p.Skillpoints != 0 || p.Stats[game.Trading] != 2 {
		t.Errorf("player = %d skillpoints, trading %d", p.Skillpoints, p.Stats[game.Trading])
	}

	view, err = h.mgr.SetXP(ctx, 1, 2000)
	if err != nil {
		t.Fatal(err)
	}
	if view.Level != 4 || view.XP != 272 {
		t.Errorf("SetXP(2000) = %+v, want level 4 xp 272", view)
	}
	if _, err := h.mgr.SetXP(ctx, 1, -1); !errors.Is(err, game.ErrInvalidAmount) {
		t.Errorf("SetXP(-1) error = %v", err)
	}
}

func TestManager_SetSetting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		key, value string
		wantErr    error
		check      func(s game.Settings) bool
	}{
		{"deltatime", "60", nil, func(s game.Settings) bool { return s.DeltaTime == 60 }},
		{"work_range", "0.1", nil, func(s game.Settings) bool { return s.WorkRange == 0.1 }},
		{"block_asyncs", "true", nil, func(s game.Settings) bool { return s.BlockAsyncs }},
		{"Trading_Rate", "0.05", nil, func(s game.Settings) bool { return s.TradingRate == 0.05 }},
		{"disabled_roles", "@everyone, Bots", nil, func(s game.Settings) bool { return len(s.DisabledRoles) == 2 }},
		{"deltatime", "0", game.ErrInvalidSetting, nil},
		{"work_range", "abc", game.ErrInvalidSetting, nil},
		{"players", "{}", game.ErrUnknownSetting, nil},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			s, err := h.mgr.SetSetting(ctx, 1, tt.key, tt.value)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SetSetting() error = %v, want %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(s) {
				t.Errorf("setting not applied: %+v", s)
			}
		})
	}

	s, err := h.mgr.Settings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.DeltaTime != 60 {
		t.Errorf("DeltaTime = %d, want 60 after invalid update", s.DeltaTime)
	}
}

func TestManager_JournalFailureDoesNotFailOperation(t *testing.T) {
	h := newHarness(t)
	h.events.appendErr = errors.New("journal down")
	h.seed(t, func(doc *game.Document) { doc.EnsurePlayer(1) })

	if _, err := h.mgr.AddMoney(context.Background(), 1, 10); err != nil {
		t.Fatalf("AddMoney() error = %v, want nil", err)
	}
	if b, _ := h.mgr.Balance(context.Background(), 1); b != 10 {
		t.Errorf("balance = %d, want 10", b)
	}
}

func TestManager_MembershipAndHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.mgr.EnsurePlayer(ctx, 1)
	if err != nil || !created {
		t.Fatalf("EnsurePlayer() = %v, %v", created, err)
	}
	n, err := h.mgr.SyncMembers(ctx, []game.ID{1, 2, 3})
	if err != nil || n != 2 {
		t.Fatalf("SyncMembers() = %d, %v, want 2", n, err)
	}
	if _, err := h.mgr.AddMoney(ctx, 1, 5); err != nil {
		t.Fatal(err)
	}

	hist, err := h.mgr.History(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 || hist[0].Type != event.PlayerJoined || hist[1].Type != event.MoneyAdjusted {
		t.Errorf("History() = %+v", hist)
	}

	if err := h.mgr.RemovePlayer(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if err := h.mgr.RemovePlayer(ctx, 3); !errors.Is(err, game.ErrPlayerNotFound) {
		t.Errorf("second RemovePlayer() error = %v", err)
	}
}
