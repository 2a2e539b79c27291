package domain

import "time"

// SubscriberRecord is one profile from a subscriber export.
type SubscriberRecord struct {
	ID            string     `json:"id" db:"id"`
	Email         string     `json:"email" db:"email"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	FirstActiveAt *time.Time `json:"first_active_at" db:"first_active_at"`
	Consented     bool       `json:"consented" db:"consented"`
	ConsentedAt   *time.Time `json:"consented_at" db:"consented_at"`
	LifetimeValue float64    `json:"lifetime_value" db:"lifetime_value"`
	OrderCount    int64      `json:"order_count" db:"order_count"`
	LastOrderAt   *time.Time `json:"last_order_at" db:"last_order_at"`
}

// IsRepeatBuyer reports whether the subscriber has placed two or more orders.
func (s SubscriberRecord) IsRepeatBuyer() bool { return s.OrderCount >= 2 }
