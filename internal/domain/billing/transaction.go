package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type TargetType string

const (
	TargetMission   TargetType = "mission"
	TargetFormation TargetType = "formation"
)

type TransactionStatus string

const (
	TransactionSuccess TransactionStatus = "success"
)

// Transaction is a ledger row. Rows are written once; ReceiptRef is the only
// column backfilled afterwards.
type Transaction struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Provider    string            `gorm:"column:provider;not null;uniqueIndex:ux_transaction_provider_ref,priority:1" json:"provider"`
	ProviderRef string            `gorm:"column:provider_ref;not null;uniqueIndex:ux_transaction_provider_ref,priority:2" json:"provider_ref"`
	UserID      uuid.UUID         `gorm:"type:uuid;column:user_id;not null;index" json:"user_id"`
	Amount      int64             `gorm:"column:amount;not null" json:"amount"`
	Currency    string            `gorm:"column:currency;not null" json:"currency"`
	TargetType  TargetType        `gorm:"column:target_type;not null" json:"target_type"`
	TargetRef   string            `gorm:"column:target_ref;not null" json:"target_ref"`
	Status      TransactionStatus `gorm:"column:status;not null" json:"status"`
	Metadata    datatypes.JSON    `gorm:"column:metadata" json:"metadata"`
	ReceiptRef  string            `gorm:"column:receipt_ref" json:"receipt_ref"`
	CreatedAt   time.Time         `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string { return "ledger_transaction" }
