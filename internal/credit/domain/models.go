package domain

import "time"

type Status string

const (
	StatusActive  Status = "active"
	StatusRetired Status = "retired"
)

// Credit is one issued production credit. Producer, amount and issuance
// time never change after issue; ownership and lifecycle fields do.
type Credit struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	Producer     string     `gorm:"index;not null" json:"producer"`
	Amount       float64    `gorm:"not null" json:"amount"`
	CurrentOwner string     `gorm:"index;not null" json:"current_owner"`
	Status       Status     `gorm:"index;not null;default:active" json:"status"`
	Verified     bool       `gorm:"not null;default:false" json:"verified"`
	IssuedAt     time.Time  `gorm:"not null" json:"issued_at"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	RetiredAt    *time.Time `json:"retired_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Credit) TableName() string {
	return "credits"
}
