package models

import "time"

// Source identifies the platform an order came from.
type Source string

const (
	SourceYemeksepeti Source = "yemeksepeti"
	SourceGetir       Source = "getir"
	SourceTrendyol    Source = "trendyol"
	SourceManual      Source = "manual"
	// SourceOther marks a remote order whose integration string matched no
	// known platform.
	SourceOther Source = "other"
)

// PaymentType is how an order was (or will be) paid.
type PaymentType string

const (
	PaymentCash              PaymentType = "cash"
	PaymentCreditCard        PaymentType = "credit_card"
	PaymentYemeksepetiOnline PaymentType = "yemeksepeti_online"
	PaymentGetirOnline       PaymentType = "getir_online"
	PaymentTrendyolOnline    PaymentType = "trendyol_online"
)

var paymentTypes = map[PaymentType]struct{}{
	PaymentCash:              {},
	PaymentCreditCard:        {},
	PaymentYemeksepetiOnline: {},
	PaymentGetirOnline:       {},
	PaymentTrendyolOnline:    {},
}

// Valid reports whether p is one of the known payment types.
func (p PaymentType) Valid() bool {
	_, ok := paymentTypes[p]
	return ok
}

// Status is the upstream lifecycle hint. It never drives local open/closed state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// LineItem represents a single product entry within an order.
type LineItem struct {
	Name       string  `bson:"name" json:"name"`
	Quantity   int     `bson:"quantity" json:"quantity"`
	UnitPrice  float64 `bson:"unitPrice" json:"unitPrice"`
	TotalPrice float64 `bson:"totalPrice" json:"totalPrice"`
	Note       string  `bson:"note,omitempty" json:"note,omitempty"`
}

// Order is the canonical unit of sale. IsClosed, ClosedAt and ClosedPaymentType
// are the local overlay and are never supplied by the remote source.
type Order struct {
	ID            int64       `bson:"id" json:"id"`
	ExternalID    string      `bson:"externalId,omitempty" json:"externalId,omitempty"`
	CreatedAt     time.Time   `bson:"createdAt" json:"createdAt"`
	Source        Source      `bson:"source" json:"source"`
	Products      []LineItem  `bson:"products" json:"products"`
	TotalAmount   float64     `bson:"totalAmount" json:"totalAmount"`
	PaymentType   PaymentType `bson:"paymentType" json:"paymentType"`
	Status        Status      `bson:"status" json:"status"`
	CustomerName  string      `bson:"customerName,omitempty" json:"customerName,omitempty"`
	CustomerPhone string      `bson:"customerPhone,omitempty" json:"customerPhone,omitempty"`
	Address       string      `bson:"address,omitempty" json:"address,omitempty"`
	Note          string      `bson:"note,omitempty" json:"note,omitempty"`

	IsClosed          bool         `bson:"isClosed" json:"isClosed"`
	ClosedAt          *time.Time   `bson:"closedAt,omitempty" json:"closedAt,omitempty"`
	ClosedPaymentType *PaymentType `bson:"closedPaymentType,omitempty" json:"closedPaymentType,omitempty"`
}

// EffectivePaymentType returns the payment type recorded at close time, falling
// back to the platform default.
func (o Order) EffectivePaymentType() PaymentType {
	if o.ClosedPaymentType != nil {
		return *o.ClosedPaymentType
	}
	return o.PaymentType
}

// OverlayConsistent reports whether IsClosed agrees with the presence of both
// ClosedAt and ClosedPaymentType.
func (o Order) OverlayConsistent() bool {
	both := o.ClosedAt != nil && o.ClosedPaymentType != nil
	neither := o.ClosedAt == nil && o.ClosedPaymentType == nil
	if o.IsClosed {
		return both
	}
	return neither
}

// ClearOverlay resets the local lifecycle fields to the open state.
func (o *Order) ClearOverlay() {
	o.IsClosed = false
	o.ClosedAt = nil
	o.ClosedPaymentType = nil
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (o Order) Clone() Order {
	out := o
	if o.Products != nil {
		out.Products = make([]LineItem, len(o.Products))
		copy(out.Products, o.Products)
	}
	if o.ClosedAt != nil {
		t := *o.ClosedAt
		out.ClosedAt = &t
	}
	if o.ClosedPaymentType != nil {
		p := *o.ClosedPaymentType
		out.ClosedPaymentType = &p
	}
	return out
}
