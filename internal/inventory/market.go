package inventory

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/game"
)

// Listing is an item offered for sale by a player.
type Listing struct {
	Seller game.ID
	Name   string
	Item   game.Item
	Price  int64
}

// TradingDiscount returns the fraction a buyer saves on market purchases.
func TradingDiscount(p *game.Player, rate float64) float64 {
	return math.Max(0, math.Min(1, float64(p.Stat(game.Trading))*rate))
}

// BuyerPrice returns what a buyer with discount d owes for a listing priced
// at price.
func BuyerPrice(price int64, d float64) int64 {
	return int64(math.Round(float64(price) * (1 - d)))
}

// ListItem offers an inventory item for sale. Listing an already listed
// item updates its price.
func (m *Manager) ListItem(ctx context.Context, id game.ID, name string, price int64) error {
	ctx, span := m.tracer.Start(ctx, "Manager.ListItem", itemAttrs(id, name))
	defer span.End()
	span.SetAttributes(attribute.Int64("price", price))

	err := m.update(ctx, "list_item", func(doc *game.Document) error {
		if price < 0 {
			return game.Validation(game.ErrInvalidAmount, "price must not be negative")
		}
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		if _, ok := p.Inventory[name]; !ok {
			return game.NotFound(game.ErrItemNotFound, "%q is not in your inventory", name)
		}
		p.Shop[name] = price
		return nil
	})
	if err != nil {
		return err
	}
	m.record(ctx, m.itemEvent(id, event.ItemListed, event.ItemData{Name: name, Price: price}))
	m.logger.InfoContext(ctx, "item listed",
		slog.String("player_id", id.String()),
		slog.String("item", name),
		slog.Int64("price", price),
	)
	return nil
}

// RetractListing takes an item off the market.
func (m *Manager) RetractListing(ctx context.Context, id game.ID, name string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.RetractListing", itemAttrs(id, name))
	defer span.End()

	err := m.update(ctx, "retract_listing", func(doc *game.Document) error {
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		if _, ok := p.Shop[name]; !ok {
			return game.NotFound(game.ErrListingNotFound, "%q", name)
		}
		delete(p.Shop, name)
		return nil
	})
	if err != nil {
		return err
	}
	m.record(ctx, m.itemEvent(id, event.ItemRetracted, event.ItemData{Name: name}))
	m.logger.InfoContext(ctx, "listing retracted", slog.String("player_id", id.String()), slog.String("item", name))
	return nil
}

// Listings returns the items a seller has for sale, ordered by name.
func (m *Manager) Listings(ctx context.Context, seller game.ID) ([]Listing, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Listings", trace.WithAttributes(attribute.Int64("player_id", int64(seller))))
	defer span.End()

	var out []Listing
	err := m.view(ctx, "listings", func(doc *game.Document) error {
		p, err := doc.Player(seller)
		if err != nil {
			return err
		}
		out = listingsOf(seller, p)
		return nil
	})
	return out, err
}

// Market returns every listing of every player, cheapest first.
func (m *Manager) Market(ctx context.Context) ([]Listing, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Market")
	defer span.End()

	var out []Listing
	err := m.view(ctx, "market", func(doc *game.Document) error {
		for id, p := range doc.Players {
			out = append(out, listingsOf(id, p)...)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		if out[i].Seller != out[j].Seller {
			return out[i].Seller < out[j].Seller
		}
		return out[i].Name < out[j].Name
	})
	return out, err
}

func listingsOf(seller game.ID, p *game.Player) []Listing {
	out := make([]Listing, 0, len(p.Shop))
	for _, name := range game.SortedKeys(p.Shop) {
		out = append(out, Listing{Seller: seller, Name: name, Item: p.Inventory[name], Price: p.Shop[name]})
	}
	return out
}

// Sale is the outcome of a market purchase.
type Sale struct {
	// Name is the name the item was stored under in the buyer's inventory.
	Name     string
	Price    int64
	Paid     int64
	Discount float64
	// BuyerBalance and SellerBalance are the balances after settlement.
	BuyerBalance  int64
	SellerBalance int64
}

// BuyListing settles a market purchase. The buyer pays the listed price less
// their trading discount; the seller receives the full listed price.
func (m *Manager) BuyListing(ctx context.Context, buyer, seller game.ID, name string) (Sale, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.BuyListing", itemAttrs(buyer, name))
	defer span.End()
	span.SetAttributes(attribute.Int64("seller_id", int64(seller)))

	var sale Sale
	err := m.update(ctx, "buy_listing", func(doc *game.Document) error {
		if buyer == seller {
			return game.Validation(game.ErrSelfTrade, "%q is your own listing", name)
		}
		s, err := doc.Player(seller)
		if err != nil {
			return err
		}
		b, err := doc.Player(buyer)
		if err != nil {
			return err
		}
		price, ok := s.Shop[name]
		if !ok {
			return game.NotFound(game.ErrListingNotFound, "%q", name)
		}
		it, ok := s.Inventory[name]
		if !ok {
			return game.NotFound(game.ErrItemNotFound, "%q is no longer held by the seller", name)
		}

		sale.Price = price
		sale.Discount = TradingDiscount(b, doc.TradingRate)
		sale.Paid = BuyerPrice(price, sale.Discount)
		if b.Balance < sale.Paid {
			return game.Validation(game.ErrInsufficientFund, "price %d, balance %d", sale.Paid, b.Balance)
		}

		delete(s.Shop, name)
		delete(s.Inventory, name)
		sale.Name = b.UniqueItemName(name)
		b.Inventory[sale.Name] = it
		b.Balance -= sale.Paid
		s.Balance += price
		sale.BuyerBalance, sale.SellerBalance = b.Balance, s.Balance
		return nil
	})
	if err != nil {
		return sale, err
	}
	m.record(ctx,
		m.itemEvent(seller, event.ItemSold, event.ItemData{Name: name, Price: sale.Price, Counterparty: buyer.String()}),
		m.itemEvent(buyer, event.ItemGranted, event.ItemData{Name: sale.Name, Price: sale.Paid, Counterparty: seller.String()}),
	)
	m.logger.InfoContext(ctx, "listing bought",
		slog.String("buyer", buyer.String()),
		slog.String("seller", seller.String()),
		slog.String("item", name),
		slog.Int64("price", sale.Price),
		slog.Int64("paid", sale.Paid),
	)
	return sale, nil
}
