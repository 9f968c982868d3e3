package models

import (
	"time"
)

type OrderStatus string

const (
	OrderStatusPlaced         OrderStatus = "placed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// NextStatuses lists the transitions the admin panel may perform from a
// given status. Delivered and cancelled are terminal.
func (s OrderStatus) NextStatuses() []OrderStatus {
	switch s {
	case OrderStatusPlaced:
		return []OrderStatus{OrderStatusPreparing, OrderStatusCancelled}
	case OrderStatusPreparing:
		return []OrderStatus{OrderStatusOutForDelivery, OrderStatusCancelled}
	case OrderStatusOutForDelivery:
		return []OrderStatus{OrderStatusDelivered}
	default:
		return nil
	}
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range s.NextStatuses() {
		if next == allowed {
			return true
		}
	}
	return false
}

func ParseOrderStatus(raw string) (OrderStatus, bool) {
	switch OrderStatus(raw) {
	case OrderStatusPlaced, OrderStatusPreparing, OrderStatusOutForDelivery,
		OrderStatusDelivered, OrderStatusCancelled:
		return OrderStatus(raw), true
	}
	return "", false
}

type MenuItem struct {
	ID          uint    `gorm:"primaryKey;autoIncrement"  json:"id"`
	Title       string  `gorm:"not null"                  json:"title"`
	Description string  `json:"description"`
	Price       float64 `gorm:"not null"                  json:"price"`
	ImageURL    string  `json:"image_url"`
	Category    string  `gorm:"index"                     json:"category"`
	Available   bool    `gorm:"default:true"              json:"available"`
}

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null"                 json:"role"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"          json:"id"`
	Token     string `gorm:"unique;not null"     json:"token"`
	UserID    uint   `gorm:"index;not null"      json:"user_id"`
	ExpiresAt int64  `gorm:"not null"            json:"expires_at"`
	Revoked   bool   `gorm:"default:false"       json:"revoked"`
}

type CartItem struct {
	ID         uint `gorm:"primaryKey"                  json:"id"`
	UserID     uint `gorm:"index;not null"              json:"user_id"`
	MenuItemID uint `gorm:"not null"                    json:"menu_item_id"`
	Quantity   uint `gorm:"default:1;check:quantity>0"  json:"quantity"`
}

// Address is written once at checkout and never updated; historical orders
// keep pointing at the coordinates they were validated against.
type Address struct {
	ID        uint      `gorm:"primaryKey"     json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Label     string    `json:"label"`
	Line      string    `gorm:"not null"       json:"line"`
	Lat       float64   `gorm:"not null"       json:"lat"`
	Lng       float64   `gorm:"not null"       json:"lng"`
	CreatedAt time.Time `json:"created_at"`
}

type Order struct {
	ID          uint        `gorm:"primaryKey"      json:"id"`
	Reference   string      `gorm:"unique;not null" json:"reference"`
	UserID      uint        `gorm:"index;not null"  json:"user_id"`
	AddressID   uint        `gorm:"not null"        json:"address_id"`
	Address     Address     `gorm:"foreignKey:AddressID" json:"address"`
	Items       []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Status      OrderStatus `gorm:"type:varchar(20);not null;default:'placed'" json:"status"`
	Subtotal    float64     `gorm:"not null" json:"subtotal"`
	Tax         float64     `gorm:"not null" json:"tax"`
	DeliveryFee float64     `gorm:"not null" json:"delivery_fee"`
	Total       float64     `gorm:"not null" json:"total"`
	DistanceKm  float64     `gorm:"not null" json:"distance_km"`
	Notes       string      `json:"notes"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// OrderItem snapshots title and price at order time so later menu edits
// never alter historical orders.
type OrderItem struct {
	ID         uint    `gorm:"primaryKey"     json:"id"`
	OrderID    uint    `gorm:"index;not null" json:"order_id"`
	MenuItemID uint    `gorm:"not null"       json:"menu_item_id"`
	Title      string  `gorm:"not null"       json:"title"`
	Price      float64 `gorm:"not null"       json:"price"`
	Quantity   uint    `gorm:"not null"       json:"quantity"`
}

type OrderStatusLog struct {
	ID         uint        `gorm:"primaryKey"     json:"id"`
	OrderID    uint        `gorm:"index;not null" json:"order_id"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `gorm:"not null"       json:"to_status"`
	ChangedBy  uint        `json:"changed_by"`
	CreatedAt  time.Time   `json:"created_at"`
}

// PushSubscription stores the browser push endpoint plus its encryption
// keys, one row per registered device.
type PushSubscription struct {
	ID        uint      `gorm:"primaryKey"      json:"id"`
	UserID    uint      `gorm:"index;not null"  json:"user_id"`
	Endpoint  string    `gorm:"unique;not null" json:"endpoint"`
	P256dh    string    `gorm:"not null"        json:"p256dh"`
	Auth      string    `gorm:"not null"        json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}
