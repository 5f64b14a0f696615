package models

import "time"

type Category string

const (
	CategoryFruits     Category = "fruits"
	CategoryVegetables Category = "vegetables"
	CategoryDairy      Category = "dairy"
	CategoryGrains     Category = "grains"
	CategoryOthers     Category = "others"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryFruits, CategoryVegetables, CategoryDairy, CategoryGrains, CategoryOthers:
		return true
	}
	return false
}

// Product is a farmer's listing. Stock is only ever changed through the stock ledger.
type Product struct {
	ID        string    `json:"_id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Category  Category  `json:"category" bson:"category"`
	Price     Money     `json:"price" bson:"price"`
	Stock     int       `json:"stock" bson:"stock"`
	Image     string    `json:"image" bson:"image"`
	Farmer    string    `json:"farmer" bson:"farmer"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}
