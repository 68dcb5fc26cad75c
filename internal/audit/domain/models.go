package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Kind string

const (
	KindIssued      Kind = "issued"
	KindTransferred Kind = "transferred"
	KindRetired     Kind = "retired"
	KindVerified    Kind = "verified"
)

// Transaction is one append-only entry in a credit's history. Rows are
// never updated or deleted.
type Transaction struct {
	ID        int64             `gorm:"primaryKey" json:"id"`
	CreditID  int64             `gorm:"index;not null" json:"credit_id"`
	Kind      Kind              `gorm:"index;not null" json:"kind"`
	From      *string           `gorm:"column:from_principal" json:"from,omitempty"`
	To        *string           `gorm:"column:to_principal" json:"to,omitempty"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"index;not null" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
