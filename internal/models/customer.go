package models

import "time"

type Customer struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"        json:"id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex"    json:"user_id"`
	Phone     *string   `gorm:"size:20"                         json:"phone,omitempty"`
	Address   *string   `gorm:"size:255"                        json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&Category{},
		&CactusProduct{},
		&SucculentProduct{},
		&Customer{},
		&Cart{},
		&CartProduct{},
	}
}
