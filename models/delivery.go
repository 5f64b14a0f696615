package models

import "time"

type DeliveryStatus string

const (
	DeliveryPending        DeliveryStatus = "pending"
	DeliveryOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryDelivered      DeliveryStatus = "delivered"
	DeliveryFailed         DeliveryStatus = "failed"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryPending, DeliveryOutForDelivery, DeliveryDelivered, DeliveryFailed:
		return true
	}
	return false
}

// Active reports whether the status still occupies the agent.
func (s DeliveryStatus) Active() bool {
	return s == DeliveryPending || s == DeliveryOutForDelivery
}

type Delivery struct {
	ID            string         `json:"_id" bson:"_id"`
	Order         string         `json:"order" bson:"order"`
	DeliveryAgent string         `json:"deliveryAgent" bson:"deliveryAgent"`
	Status        DeliveryStatus `json:"status" bson:"status"`
	// Active mirrors Status.Active() and backs the partial unique indexes.
	Active       bool       `json:"-" bson:"active"`
	DeliveryDate *time.Time `json:"deliveryDate,omitempty" bson:"deliveryDate,omitempty"`
	CreatedAt    time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt" bson:"updatedAt"`
}
