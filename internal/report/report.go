// Package report derives sales views from an order collection. Every function
// is pure: it reads only its arguments and never touches the store.
package report

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"posbackend/internal/models"
)

type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

var ErrUnknownPeriod = errors.New("period must be one of today, week, month, all")

// ParsePeriod accepts the period names case-insensitively; "" means all.
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PeriodAll, nil
	case PeriodToday, PeriodWeek, PeriodMonth, PeriodAll:
		return p, nil
	default:
		return "", ErrUnknownPeriod
	}
}

// PeriodStart returns the first calendar day included in period, at midnight
// in now's location. Week and month are rolling 7 and 30 day windows ending
// today. ok is false for PeriodAll.
func PeriodStart(period Period, now time.Time) (start time.Time, ok bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch period {
	case PeriodToday:
		return today, true
	case PeriodWeek:
		return today.AddDate(0, 0, -6), true
	case PeriodMonth:
		return today.AddDate(0, 0, -29), true
	default:
		return time.Time{}, false
	}
}

// FilterByPeriod keeps orders whose creation date, taken in now's location,
// falls inside period. Input order is preserved.
func FilterByPeriod(orders []models.Order, period Period, now time.Time) []models.Order {
	start, ok := PeriodStart(period, now)
	if !ok {
		out := make([]models.Order, len(orders))
		copy(out, orders)
		return out
	}
	loc := now.Location()
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		created := o.CreatedAt.In(loc)
		day := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, loc)
		if !day.Before(start) {
			out = append(out, o)
		}
	}
	return out
}

// TotalsByPaymentType sums closed orders by their effective payment type.
// Open orders contribute nothing.
func TotalsByPaymentType(orders []models.Order) map[models.PaymentType]float64 {
	sums := map[models.PaymentType]decimal.Decimal{}
	for _, o := range orders {
		if !o.IsClosed {
			continue
		}
		pt := o.EffectivePaymentType()
		sums[pt] = sums[pt].Add(decimal.NewFromFloat(o.TotalAmount))
	}
	out := make(map[models.PaymentType]float64, len(sums))
	for pt, sum := range sums {
		out[pt] = sum.InexactFloat64()
	}
	return out
}

type ProductSales struct {
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	Total      float64 `json:"total"`
	RecipeID   string  `json:"recipeId,omitempty"`
	RecipeName string  `json:"recipeName,omitempty"`
}

// ProductSalesSummary aggregates line items of closed orders per product name,
// sorted by quantity descending. Ties keep first-seen order.
func ProductSalesSummary(orders []models.Order) []ProductSales {
	type acc struct {
		qty   int
		total decimal.Decimal
	}
	var names []string
	byName := map[string]*acc{}
	for _, o := range orders {
		if !o.IsClosed {
			continue
		}
		for _, item := range o.Products {
			a, ok := byName[item.Name]
			if !ok {
				a = &acc{}
				byName[item.Name] = a
				names = append(names, item.Name)
			}
			a.qty += item.Quantity
			a.total = a.total.Add(decimal.NewFromFloat(item.TotalPrice))
		}
	}

	out := make([]ProductSales, 0, len(names))
	for _, name := range names {
		a := byName[name]
		out = append(out, ProductSales{Name: name, Quantity: a.qty, Total: a.total.InexactFloat64()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Quantity > out[j].Quantity })
	return out
}

// AttachRecipes fills recipe fields on sales rows whose name has a mapping.
func AttachRecipes(sales []ProductSales, mappings []models.ProductMapping) []ProductSales {
	byName := make(map[string]models.ProductMapping, len(mappings))
	for _, m := range mappings {
		if _, dup := byName[m.HemenyoldaName]; !dup {
			byName[m.HemenyoldaName] = m
		}
	}
	out := make([]ProductSales, len(sales))
	for i, row := range sales {
		if m, ok := byName[row.Name]; ok {
			row.RecipeID, row.RecipeName = m.RecipeID, m.RecipeName
		}
		out[i] = row
	}
	return out
}

// UnmappedProducts lists distinct product names, in first-seen order, that
// appear in orders but have no mapping.
func UnmappedProducts(orders []models.Order, mappings []models.ProductMapping) []string {
	mapped := make(map[string]struct{}, len(mappings))
	for _, m := range mappings {
		mapped[m.HemenyoldaName] = struct{}{}
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, o := range orders {
		for _, item := range o.Products {
			if _, ok := mapped[item.Name]; ok {
				continue
			}
			if _, ok := seen[item.Name]; ok {
				continue
			}
			seen[item.Name] = struct{}{}
			out = append(out, item.Name)
		}
	}
	return out
}

type Report struct {
	Period       Period                         `json:"period"`
	From         *time.Time                     `json:"from,omitempty"`
	GeneratedAt  time.Time                      `json:"generatedAt"`
	OpenOrders   int                            `json:"openOrders"`
	ClosedOrders int                            `json:"closedOrders"`
	Revenue      float64                        `json:"revenue"`
	Totals       map[models.PaymentType]float64 `json:"totals"`
	Products     []ProductSales                 `json:"products"`
}

// Build filters orders to period and computes every view over the result.
func Build(orders []models.Order, period Period, now time.Time) Report {
	filtered := FilterByPeriod(orders, period, now)
	r := Report{
		Period:      period,
		GeneratedAt: now,
		Totals:      TotalsByPaymentType(filtered),
		Products:    ProductSalesSummary(filtered),
	}
	if start, ok := PeriodStart(period, now); ok {
		r.From = &start
	}
	revenue := decimal.Zero
	for _, o := range filtered {
		if o.IsClosed {
			r.ClosedOrders++
			revenue = revenue.Add(decimal.NewFromFloat(o.TotalAmount))
		} else {
			r.OpenOrders++
		}
	}
	r.Revenue = revenue.InexactFloat64()
	return r
}
