package models

import "time"

type Role string

const (
	RoleFarmer        Role = "farmer"
	RoleBuyer         Role = "buyer"
	RoleDeliveryAgent Role = "delivery_agent"
)

func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleBuyer, RoleDeliveryAgent:
		return true
	}
	return false
}

type User struct {
	ID             string    `json:"_id" bson:"_id"`
	FullName       string    `json:"fullName" bson:"fullName"`
	Username       string    `json:"username" bson:"username"`
	Email          string    `json:"email" bson:"email"`
	Password       string    `json:"-" bson:"password"`
	Gender         string    `json:"gender" bson:"gender"`
	Role           Role      `json:"role" bson:"role"`
	Phone          string    `json:"phone" bson:"phone"`
	Address        string    `json:"address" bson:"address"`
	ProfilePicture string    `json:"profilePicture" bson:"profilePicture"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role Role
}
