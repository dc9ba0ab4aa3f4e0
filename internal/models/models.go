package models

import (
	"time"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"     json:"id"`
	FirstName    string    `gorm:"not null"                     json:"first_name"`
	LastName     string    `gorm:"not null"                     json:"last_name"`
	Email        string    `gorm:"uniqueIndex;not null"         json:"email"`
	Role         Role      `gorm:"not null"                     json:"role"`
	PasswordHash string    `gorm:"not null"                     json:"-"`
	AddressUser  *string   `json:"address_user,omitempty"`
	Phone        *string   `json:"phone,omitempty"`
	CreatedAt    time.Time `gorm:"not null"                     json:"created_at"`

	Orders []Order `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"     json:"id"`
	Name        string    `gorm:"uniqueIndex;not null;size:50" json:"name"`
	UnitPrice   float64   `gorm:"not null"                     json:"unit_price"`
	Category    Category  `gorm:"not null"                     json:"category"`
	Description *string   `gorm:"size:200"                     json:"description,omitempty"`
	Stock       int       `gorm:"not null"                     json:"stock"`
	CreatedAt   time.Time `gorm:"not null"                     json:"created_at"`

	OrderItems []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type Order struct {
	ID          uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint        `gorm:"index;not null"           json:"user_id"`
	TotalAmount float64     `gorm:"not null"                 json:"total_amount"`
	Status      OrderStatus `gorm:"not null"                 json:"status"`
	CreatedAt   time.Time   `gorm:"not null"                 json:"created_at"`

	Items    []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Delivery *Delivery   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// OrderItem is one product line within an order. The composite primary key
// keeps at most one row per (order, product) pair.
type OrderItem struct {
	OrderID   uint      `gorm:"primaryKey;autoIncrement:false" json:"order_id"`
	ProductID uint      `gorm:"primaryKey;autoIncrement:false" json:"product_id"`
	Quantity  int       `gorm:"not null;check:quantity >= 1"   json:"quantity"`
	CreatedAt time.Time `gorm:"not null"                       json:"created_at"`
}

type Delivery struct {
	ID              uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID         uint           `gorm:"uniqueIndex;not null"     json:"order_id"`
	AddressDelivery string         `gorm:"not null;size:200"        json:"address_delivery"`
	Status          DeliveryStatus `gorm:"not null"                 json:"status"`
	CreatedAt       time.Time      `gorm:"not null"                 json:"created_at"`
}
