package store

import (
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"posbackend/internal/events"
	"posbackend/internal/models"
)

// ErrInvalidManualOrder is returned by AddManual for an empty or malformed item list.
var ErrInvalidManualOrder = errors.New("manual order needs at least one item with positive quantity and non-negative price")

// ManualItem is one line of an operator-entered order.
type ManualItem struct {
	Name      string
	Quantity  int
	UnitPrice float64
	Note      string
}

// Merge inserts every incoming order whose id is not already stored and skips
// the rest, so existing records (and their overlay) are never touched. New
// orders are prepended in their incoming relative order. Returns the number
// inserted.
func (s *Store) Merge(incoming []models.Order) int {
	if len(incoming) == 0 {
		return 0
	}

	s.mu.Lock()
	fresh := make([]models.Order, 0, len(incoming))
	for _, o := range incoming {
		if _, exists := s.ids[o.ID]; exists {
			continue
		}
		o = o.Clone()
		o.ClearOverlay()
		if o.Products == nil {
			o.Products = []models.LineItem{}
		}
		s.ids[o.ID] = struct{}{}
		fresh = append(fresh, o)
	}
	if len(fresh) == 0 {
		s.mu.Unlock()
		return 0
	}
	now := s.clock.Now()
	evs := make([]events.Event, 0, len(fresh))
	for i := range fresh {
		o := fresh[i].Clone()
		evs = append(evs, events.Event{Type: events.OrderMerged, OrderID: o.ID, Order: &o, At: now})
	}
	s.orders = append(fresh, s.orders...)
	s.enqueueLocked(evs...)
	state, version := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(state, version)
	s.logger.Info("orders merged", zap.Int("incoming", len(incoming)), zap.Int("inserted", len(fresh)))
	return len(fresh)
}

// ReplaceAll swaps the whole order collection for orders, clearing every
// overlay. It is meant for bulk re-seeding, not incremental sync.
func (s *Store) ReplaceAll(orders []models.Order) {
	s.mu.Lock()
	s.orders = make([]models.Order, 0, len(orders))
	s.ids = make(map[int64]struct{}, len(orders))
	for _, o := range orders {
		if _, dup := s.ids[o.ID]; dup {
			continue
		}
		o = o.Clone()
		o.ClearOverlay()
		if o.Products == nil {
			o.Products = []models.LineItem{}
		}
		s.ids[o.ID] = struct{}{}
		s.orders = append(s.orders, o)
	}
	count := len(s.orders)
	state, version := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(state, version)
	s.logger.Info("orders replaced", zap.Int("orders", count))
}

// Close marks the order closed with paymentType. It reports false, and does
// nothing, when id is unknown.
func (s *Store) Close(id int64, paymentType models.PaymentType) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	now := s.clock.Now()
	pt := paymentType
	s.orders[i].IsClosed = true
	s.orders[i].ClosedAt = &now
	s.orders[i].ClosedPaymentType = &pt
	closed := s.orders[i].Clone()
	s.enqueueLocked(events.Event{
		Type: events.OrderClosed, OrderID: id, Order: &closed, PaymentType: &pt, At: now,
	})
	state, version := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(state, version)
	s.logger.Info("order closed", zap.Int64("orderId", id), zap.String("paymentType", string(pt)))
	return true
}

// Reopen clears the overlay of a closed order. Unknown ids are a no-op.
func (s *Store) Reopen(id int64) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.orders[i].ClearOverlay()
	reopened := s.orders[i].Clone()
	s.enqueueLocked(events.Event{
		Type: events.OrderReopened, OrderID: id, Order: &reopened, At: s.clock.Now(),
	})
	state, version := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(state, version)
	s.logger.Info("order reopened", zap.Int64("orderId", id))
	return true
}

// Delete removes the order permanently. Unknown ids are a no-op.
func (s *Store) Delete(id int64) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.orders = append(s.orders[:i], s.orders[i+1:]...)
	delete(s.ids, id)
	s.enqueueLocked(events.Event{Type: events.OrderDeleted, OrderID: id, At: s.clock.Now()})
	state, version := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(state, version)
	s.logger.Info("order deleted", zap.Int64("orderId", id))
	return true
}

// AddManual creates an open cash order from items. The total is the exact sum
// of unitPrice * quantity; the id comes from a snowflake generator and cannot
// collide with aggregator ids.
func (s *Store) AddManual(items []ManualItem) (models.Order, error) {
	if len(items) == 0 {
		return models.Order{}, ErrInvalidManualOrder
	}

	lines := make([]models.LineItem, 0, len(items))
	total := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 || item.UnitPrice < 0 {
			return models.Order{}, ErrInvalidManualOrder
		}
		lineTotal := decimal.NewFromFloat(item.UnitPrice).Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(lineTotal)
		lines = append(lines, models.LineItem{
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: lineTotal.InexactFloat64(),
			Note:       item.Note,
		})
	}

	now := s.clock.Now()
	order := models.Order{
		CreatedAt:   now,
		Source:      models.SourceManual,
		Products:    lines,
		TotalAmount: total.InexactFloat64(),
		PaymentType: models.PaymentCash,
		Status:      models.StatusPending,
	}

	s.mu.Lock()
	id := s.idgen.Generate().Int64()
	for {
		if _, taken := s.ids[id]; !taken {
			break
		}
		id = s.idgen.Generate().Int64()
	}
	order.ID = id
	s.ids[id] = struct{}{}
	s.orders = append([]models.Order{order.Clone()}, s.orders...)
	created := order.Clone()
	s.enqueueLocked(events.Event{Type: events.OrderCreated, OrderID: id, Order: &created, At: now})
	state, version := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(state, version)
	s.logger.Info("manual order created",
		zap.Int64("orderId", id),
		zap.Int("items", len(lines)),
		zap.Float64("total", order.TotalAmount),
	)
	return order, nil
}

// Orders returns a deep copy of the collection, most recent first.
func (s *Store) Orders() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = o.Clone()
	}
	return out
}

// Order returns a copy of the order with id.
func (s *Store) Order(id int64) (models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return models.Order{}, false
	}
	return s.orders[i].Clone(), true
}

func (s *Store) indexLocked(id int64) int {
	if _, ok := s.ids[id]; !ok {
		return -1
	}
	for i := range s.orders {
		if s.orders[i].ID == id {
			return i
		}
	}
	return -1
}
