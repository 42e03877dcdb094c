package billing

import (
	"strings"

	"github.com/badmintontv/badmintontv/internal/pkg/env"
	"github.com/badmintontv/badmintontv/internal/pkg/gateway"
)

// Product is the single subscription product both plans bill against. Its
// statement descriptor doubles as the invoice line description.
type Product struct {
	ID                  string
	Name                string
	StatementDescriptor string
}

// Plan is one recurring price of the product. Amount is in the smallest
// currency unit.
type Plan struct {
	ID            string
	ProductID     string
	Name          string
	Amount        int64
	Currency      string
	Interval      string
	IntervalCount int64
	Recommended   bool
}

// Catalog holds the product and plans offered for sale. Price IDs come from
// the environment so each deployment can point at its own provider objects.
type Catalog struct {
	Product Product
	Plans   []Plan
}

// NewCatalogFromEnv builds the catalog from STRIPE_PRICE_MONTHLY and
// STRIPE_PRICE_YEARLY.
func NewCatalogFromEnv() *Catalog {
	product := Product{
		ID:                  "premium_subscription_v1",
		Name:                "Premium Subscription v1",
		StatementDescriptor: "badmintontv plan",
	}
	return &Catalog{
		Product: product,
		Plans: []Plan{
			{
				ID:            env.GetEnv("STRIPE_PRICE_MONTHLY", "price_monthly_v1"),
				ProductID:     product.ID,
				Name:          "Monthly",
				Amount:        245,
				Currency:      "usd",
				Interval:      "month",
				IntervalCount: 1,
			},
			{
				ID:            env.GetEnv("STRIPE_PRICE_YEARLY", "price_yearly_v1"),
				ProductID:     product.ID,
				Name:          "Yearly",
				Amount:        2495,
				Currency:      "usd",
				Interval:      "year",
				IntervalCount: 1,
				Recommended:   true,
			},
		},
	}
}

// PlanByID returns the plan with the given price ID, or nil.
func (c *Catalog) PlanByID(id string) *Plan {
	for i := range c.Plans {
		if c.Plans[i].ID == id {
			return &c.Plans[i]
		}
	}
	return nil
}

// PlanFromForm picks the chosen plan out of submitted form keys. The pricing
// page submits the choice as a button named submit_<price id>.
func (c *Catalog) PlanFromForm(keys []string) *Plan {
	for _, key := range keys {
		id, ok := strings.CutPrefix(key, "submit_")
		if !ok {
			continue
		}
		if plan := c.PlanByID(id); plan != nil {
			return plan
		}
	}
	return nil
}

// PlanName returns the display name for a price ID, or "" when the ID is not
// in the catalog.
func (c *Catalog) PlanName(id string) string {
	if plan := c.PlanByID(id); plan != nil {
		return plan.Name
	}
	return ""
}

// GatewayProduct converts the product for provider sync.
func (c *Catalog) GatewayProduct() gateway.Product {
	return gateway.Product{
		ID:                  c.Product.ID,
		Name:                c.Product.Name,
		StatementDescriptor: c.Product.StatementDescriptor,
	}
}

// GatewayPrices converts the plans for provider sync.
func (c *Catalog) GatewayPrices() []gateway.Price {
	prices := make([]gateway.Price, 0, len(c.Plans))
	for _, p := range c.Plans {
		prices = append(prices, gateway.Price{
			ID:            p.ID,
			ProductID:     p.ProductID,
			Nickname:      p.Name,
			UnitAmount:    p.Amount,
			Currency:      p.Currency,
			Interval:      p.Interval,
			IntervalCount: p.IntervalCount,
		})
	}
	return prices
}
