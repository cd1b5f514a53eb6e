package economy

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/game"
)

// Offer is one upgrade catalog row as seen by a player.
type Offer struct {
	Name    string
	Upgrade game.Upgrade
	Owned   int
	Cap     *int
}

// Catalog lists the upgrade catalog with the player's owned counts and caps.
func (m *Manager) Catalog(ctx context.Context, id game.ID) ([]Offer, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Catalog", trace.WithAttributes(playerAttr(id)))
	defer span.End()

	var out []Offer
	err := m.view(ctx, "catalog", func(doc *game.Document) error {
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		for _, name := range game.SortedKeys(doc.Upgrades) {
			o := Offer{Name: name, Upgrade: doc.Upgrades[name], Owned: p.Upgrades[name]}
			if c := p.UpgradeCaps[name]; c != nil {
				o.Cap = game.Cap(*c)
			}
			out = append(out, o)
		}
		return nil
	})
	return out, err
}

// AddUpgrade creates or replaces a catalog entry and mirrors its cap into
// every player record. Owned counts are preserved.
func (m *Manager) AddUpgrade(ctx context.Context, name string, up game.Upgrade, maxPerPlayer *int) error {
	ctx, span := m.tracer.Start(ctx, "Manager.AddUpgrade", trace.WithAttributes(attribute.String("upgrade", name)))
	defer span.End()

	name = strings.TrimSpace(name)
	err := m.update(ctx, "add_upgrade", func(doc *game.Document) error {
		if name == "" {
			return game.Validation(game.ErrInvalidName, "upgrade name is empty")
		}
		if up.Cost < 0 || up.Income < 0 || up.Manpower < 0 {
			return game.Validation(game.ErrInvalidAmount, "cost, income and manpower must not be negative")
		}
		if maxPerPlayer != nil && *maxPerPlayer < 0 {
			return game.Validation(game.ErrInvalidAmount, "maximum must not be negative")
		}
		if up.Require != "" {
			if _, ok := doc.Upgrades[up.Require]; !ok && up.Require != name {
				return game.NotFound(game.ErrUpgradeNotFound, "required upgrade %q", up.Require)
			}
		}

		doc.Upgrades[name] = up
		doc.MaxUpgrade[name] = capCopy(maxPerPlayer)
		for _, p := range doc.Players {
			if _, ok := p.Upgrades[name]; !ok {
				p.Upgrades[name] = 0
			}
			p.UpgradeCaps[name] = capCopy(maxPerPlayer)
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.record(ctx, event.New("catalog", event.CatalogChanged, event.ChangeData{Key: "upgrade/" + name, Value: "added"}, m.clock.Now()))
	m.logger.InfoContext(ctx, "upgrade added",
		slog.String("upgrade", name),
		slog.Int64("cost", up.Cost),
		slog.Int64("income", up.Income),
	)
	return nil
}

// RemoveUpgrade deletes a catalog entry together with every player's count
// and cap for it.
func (m *Manager) RemoveUpgrade(ctx context.Context, name string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.RemoveUpgrade", trace.WithAttributes(attribute.String("upgrade", name)))
	defer span.End()

	err := m.update(ctx, "remove_upgrade", func(doc *game.Document) error {
		if _, ok := doc.Upgrades[name]; !ok {
			return game.NotFound(game.ErrUpgradeNotFound, "%q", name)
		}
		delete(doc.Upgrades, name)
		delete(doc.MaxUpgrade, name)
		for _, p := range doc.Players {
			delete(p.Upgrades, name)
			delete(p.UpgradeCaps, name)
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.record(ctx, event.New("catalog", event.CatalogChanged, event.ChangeData{Key: "upgrade/" + name, Value: "removed"}, m.clock.Now()))
	m.logger.InfoContext(ctx, "upgrade removed", slog.String("upgrade", name))
	return nil
}

// Purchase is the outcome of a buy.
type Purchase struct {
	Name     string
	Quantity int
	Cost     int64
	// Discount is the applied fraction, bartering included.
	Discount  float64
	Bartering float64
	Balance   int64
	Owned     int
	Manpower  int64
	// Role received the income; zero when the upgrade grants none.
	Role       game.Role
	RoleIncome int64
	// Candidates lists the eligible roles when the target was ambiguous.
	Candidates []game.Role
}

// Buy purchases qty units of an upgrade for a player holding roles.
func (m *Manager) Buy(ctx context.Context, id game.ID, roles []game.Role, name string, qty int) (Purchase, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Buy",
		trace.WithAttributes(
			playerAttr(id),
			attribute.String("upgrade", name),
			attribute.Int("quantity", qty),
		),
	)
	defer span.End()

	res := Purchase{Name: name, Quantity: qty}
	err := m.update(ctx, "buy", func(doc *game.Document) error {
		if qty < 1 {
			return game.Validation(game.ErrInvalidAmount, "quantity must be at least 1")
		}
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		up, ok := doc.Upgrades[name]
		if !ok {
			return game.NotFound(game.ErrUpgradeNotFound, "%q", name)
		}
		if up.Require != "" && p.Upgrades[up.Require] < 1 {
			return game.Validation(game.ErrMissingRequired, "%q requires %q", name, up.Require)
		}
		if c := p.UpgradeCaps[name]; c != nil && qty > *c-p.Upgrades[name] {
			return game.Validation(game.ErrUpgradeCap, "owned %d of %d", p.Upgrades[name], *c)
		}
		owned, ok := Add(int64(p.Upgrades[name]), int64(qty))
		if !ok || owned > math.MaxInt {
			return game.Validation(game.ErrInvalidAmount, "quantity %d is too large", qty)
		}
		_, okCost := Mul(up.Cost, qty)
		income, okIncome := Mul(up.Income, qty)
		manpower, okManpower := Mul(up.Manpower, qty)
		if !okCost || !okIncome || !okManpower {
			return game.Validation(game.ErrInvalidAmount, "quantity %d is too large", qty)
		}

		res.Bartering = Bonus(p.Stat(game.Bartering), doc.BarteringRate)
		res.Discount = UpgradeDiscount(p, name, doc.BarteringRate)
		res.Cost = Cost(up.Cost, qty, res.Discount)
		if p.Balance < res.Cost {
			return game.Validation(game.ErrInsufficientFund, "cost %d, balance %d", res.Cost, p.Balance)
		}

		var target game.Role
		if up.Income != 0 {
			eligible := EligibleRoles(doc, roles)
			switch len(eligible) {
			case 0:
				return game.Validation(game.ErrNoIncomeRole, "none of your roles has an income")
			case 1:
				target = eligible[0]
			default:
				res.Candidates = eligible
				return game.Validation(game.ErrAmbiguousRole, "%d roles could receive the income", len(eligible))
			}
		}

		bucket, okBucket := Add(doc.Income[target.ID], income)
		nextManpower, okPower := Add(p.Manpower, manpower)
		if !okBucket || !okPower {
			return game.Validation(game.ErrInvalidAmount, "quantity %d is too large", qty)
		}

		if up.Income != 0 {
			doc.Income[target.ID] = bucket
			res.Role = target
			res.RoleIncome = bucket
		}
		p.Upgrades[name] = int(owned)
		p.Balance -= res.Cost
		p.Manpower = nextManpower

		res.Balance = p.Balance
		res.Owned = p.Upgrades[name]
		res.Manpower = p.Manpower
		return nil
	})
	if err != nil {
		return res, err
	}

	data := event.UpgradeData{Name: name, Quantity: qty, Cost: res.Cost}
	if res.Role.ID != 0 {
		data.RoleID = res.Role.ID.String()
	}
	m.record(ctx, m.newEvent(id, event.UpgradeBought, data))
	m.logger.InfoContext(ctx, "upgrade bought",
		slog.String("player_id", id.String()),
		slog.String("upgrade", name),
		slog.Int("quantity", qty),
		slog.Int64("cost", res.Cost),
	)
	return res, nil
}

func capCopy(c *int) *int {
	if c == nil {
		return nil
	}
	return game.Cap(*c)
}
