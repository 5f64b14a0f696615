package models

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentNone   PaymentMethod = "none"
	PaymentStripe PaymentMethod = "stripe"
	PaymentPayPal PaymentMethod = "paypal"
)

// LineItem is one product in an order. UnitPrice and Farmer are snapshots
// taken when the item was last priced.
type LineItem struct {
	Product        string `json:"product" bson:"product"`
	PurchaseAmount int    `json:"purchaseAmount" bson:"purchaseAmount"`
	UnitPrice      Money  `json:"unitPrice" bson:"unitPrice"`
	Farmer         string `json:"farmer" bson:"farmer"`
}

func (li LineItem) Subtotal() Money { return li.UnitPrice.Times(li.PurchaseAmount) }

type Order struct {
	ID                 string        `json:"_id" bson:"_id"`
	Buyer              string        `json:"buyer" bson:"buyer"`
	Products           []LineItem    `json:"products" bson:"products"`
	TotalPrice         Money         `json:"totalPrice" bson:"totalPrice"`
	PaymentMethod      PaymentMethod `json:"paymentMethod" bson:"paymentMethod"`
	PaymentIntentID    string        `json:"paymentIntentId,omitempty" bson:"paymentIntentId,omitempty"`
	PaymentStatus      PaymentStatus `json:"paymentStatus" bson:"paymentStatus"`
	Status             OrderStatus   `json:"status" bson:"status"`
	IsDeliveryAssigned bool          `json:"isDeliveryAssigned" bson:"isDeliveryAssigned"`
	StockReserved      bool          `json:"stockReserved" bson:"stockReserved"`
	CreatedAt          time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// Total sums the line item subtotals.
func Total(items []LineItem) Money {
	var total Money
	for _, it := range items {
		total = total.Plus(it.Subtotal())
	}
	return total
}

// IsCart reports whether the order is a buyer's working cart: pending, unpaid
// and holding no stock.
func (o *Order) IsCart() bool {
	return o.Status == OrderPending && o.PaymentMethod == PaymentNone && !o.StockReserved
}

// HasFarmer reports whether any line item belongs to the farmer.
func (o *Order) HasFarmer(farmerID string) bool {
	for _, it := range o.Products {
		if it.Farmer == farmerID {
			return true
		}
	}
	return false
}
