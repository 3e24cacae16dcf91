package remote

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"posbackend/internal/models"
)

var (
	// ErrMissingID is returned for payloads without a usable numeric id.
	ErrMissingID = errors.New("order payload has no usable id")
	// ErrUnknownSource is returned in strict mode when the integration string
	// matches no known platform.
	ErrUnknownSource = errors.New("order payload has an unknown integration source")
)

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Normalizer turns raw aggregator payloads into canonical orders.
type Normalizer struct {
	Table FieldTable
	// Strict rejects payloads whose integration string matches no platform
	// instead of falling back to SourceOther/cash.
	Strict   bool
	Location *time.Location
	Now      func() time.Time
}

func NewNormalizer(strict bool) *Normalizer {
	return &Normalizer{
		Table:    DefaultFieldTable(),
		Strict:   strict,
		Location: time.Local,
		Now:      time.Now,
	}
}

// Normalize converts one payload using the default lenient normalizer.
func Normalize(raw map[string]any) (models.Order, error) {
	return NewNormalizer(false).Normalize(raw)
}

// Normalize converts one payload. Malformed fields are defaulted; only a
// missing id (and, in strict mode, an unknown source) rejects the payload.
func (n *Normalizer) Normalize(raw map[string]any) (models.Order, error) {
	f := n.Table.Order

	id, ok := lookupInt(raw, f.ID)
	if !ok {
		return models.Order{}, ErrMissingID
	}

	integration, _ := lookupString(raw, f.Integration)
	source, payment, matched := n.classify(integration)
	if !matched && n.Strict {
		return models.Order{}, ErrUnknownSource
	}

	status, _ := lookupString(raw, f.Status)
	total, _ := lookupFloat(raw, f.Total)
	externalID, _ := lookupString(raw, f.ExternalID)
	customerName, _ := lookupString(raw, f.CustomerName)
	customerPhone, _ := lookupString(raw, f.CustomerPhone)
	address, _ := lookupString(raw, f.Address)
	note, _ := lookupString(raw, f.Note)

	order := models.Order{
		ID:            id,
		ExternalID:    externalID,
		CreatedAt:     n.createdAt(raw),
		Source:        source,
		Products:      n.lineItems(raw),
		TotalAmount:   total,
		PaymentType:   payment,
		Status:        n.status(status),
		CustomerName:  customerName,
		CustomerPhone: customerPhone,
		Address:       address,
		Note:          note,
	}
	order.ClearOverlay()
	return order, nil
}

func (n *Normalizer) classify(integration string) (models.Source, models.PaymentType, bool) {
	lower := strings.ToLower(integration)
	if lower != "" {
		for _, rule := range n.Table.Platforms {
			if strings.Contains(lower, strings.ToLower(rule.Match)) {
				return rule.Source, rule.Payment, true
			}
		}
	}
	return models.SourceOther, models.PaymentCash, false
}

// status applies the ordered substring rules; the first matching rule wins.
func (n *Normalizer) status(raw string) models.Status {
	lower := strings.ToLower(raw)
	for _, rule := range n.Table.Statuses {
		for _, needle := range rule.Contains {
			if strings.Contains(lower, needle) {
				return rule.Status
			}
		}
	}
	return models.StatusPending
}

func (n *Normalizer) createdAt(raw map[string]any) time.Time {
	value, ok := lookupString(raw, n.Table.Order.CreatedAt)
	if ok {
		loc := n.Location
		if loc == nil {
			loc = time.Local
		}
		for _, layout := range createdAtLayouts {
			if t, err := time.ParseInLocation(layout, value, loc); err == nil {
				return t
			}
		}
	}
	return n.Now()
}

func (n *Normalizer) lineItems(raw map[string]any) []models.LineItem {
	f := n.Table.Item
	value, ok := lookup(raw, n.Table.Order.Products)
	if !ok {
		return []models.LineItem{}
	}
	list, ok := value.([]any)
	if !ok {
		return []models.LineItem{}
	}

	items := make([]models.LineItem, 0, len(list))
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name, _ := lookupString(obj, f.Name)
		note, _ := lookupString(obj, f.Note)

		quantity := 1
		if q, ok := lookupFloat(obj, f.Quantity); ok && q >= 1 && q <= math.MaxInt32 {
			quantity = int(math.Round(q))
		}

		unit, unitOK := lookupFloat(obj, f.UnitPrice)
		lineTotal, totalOK := lookupFloat(obj, f.TotalPrice)
		switch {
		case !totalOK && unitOK:
			lineTotal = decimal.NewFromFloat(unit).Mul(decimal.NewFromInt(int64(quantity))).InexactFloat64()
		case !unitOK && totalOK && quantity > 0:
			unit = decimal.NewFromFloat(lineTotal).Div(decimal.NewFromInt(int64(quantity))).Round(2).InexactFloat64()
		}

		items = append(items, models.LineItem{
			Name:       name,
			Quantity:   quantity,
			UnitPrice:  unit,
			TotalPrice: lineTotal,
			Note:       note,
		})
	}
	return items
}

// lookup returns the value of the first candidate key that is present and non-null.
func lookup(raw map[string]any, candidates []string) (any, bool) {
	for _, key := range candidates {
		if v, ok := dig(raw, key); ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func dig(raw map[string]any, key string) (any, bool) {
	if v, ok := raw[key]; ok {
		return v, true
	}
	parts := strings.Split(key, ".")
	if len(parts) == 1 {
		return nil, false
	}
	var current any = raw
	for _, part := range parts {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func lookupString(raw map[string]any, candidates []string) (string, bool) {
	for _, key := range candidates {
		v, ok := dig(raw, key)
		if !ok {
			continue
		}
		if s, ok := asString(v); ok {
			return s, true
		}
	}
	return "", false
}

func lookupFloat(raw map[string]any, candidates []string) (float64, bool) {
	for _, key := range candidates {
		v, ok := dig(raw, key)
		if !ok {
			continue
		}
		if f, ok := asFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

func lookupInt(raw map[string]any, candidates []string) (int64, bool) {
	for _, key := range candidates {
		v, ok := dig(raw, key)
		if !ok {
			continue
		}
		if i, ok := asInt(v); ok {
			return i, true
		}
	}
	return 0, false
}

func asString(v any) (string, bool) {
	switch typed := v.(type) {
	case string:
		s := strings.TrimSpace(typed)
		return s, s != ""
	case json.Number:
		return typed.String(), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case int:
		return strconv.Itoa(typed), true
	case int64:
		return strconv.FormatInt(typed, 10), true
	default:
		return "", false
	}
}

func asFloat(v any) (float64, bool) {
	switch typed := v.(type) {
	case json.Number:
		f, err := typed.Float64()
		return f, err == nil && finite(f)
	case float64:
		return typed, finite(typed)
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case string:
		return parseLooseFloat(typed)
	default:
		return 0, false
	}
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// floatToInt64 converts integral floats that fit in an int64.
func floatToInt64(f float64) (int64, bool) {
	// -2^63 is exact as a float64; 2^63 is the first value past MaxInt64.
	if !finite(f) || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func asInt(v any) (int64, bool) {
	switch typed := v.(type) {
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i, true
		}
		f, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	case float64:
		return floatToInt64(typed)
	case int:
		return int64(typed), true
	case int64:
		return typed, true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// parseLooseFloat accepts "12.50", "12,50", "1.234,50" and currency suffixes.
func parseLooseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "₺")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "TL"), "TRY")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
