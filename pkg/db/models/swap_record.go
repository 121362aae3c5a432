package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SwapRecord is a swap observed on chain, keyed by transaction reference and user.
type SwapRecord struct {
	ID           uint            `gorm:"primaryKey;column:id"`
	TxHash       string          `gorm:"column:tx_hash;not null;uniqueIndex:idx_swap_records_tx_user"`
	UserAddress  string          `gorm:"column:user_address;not null;uniqueIndex:idx_swap_records_tx_user;index"`
	FromCurrency string          `gorm:"column:from_currency;not null"`
	ToCurrency   string          `gorm:"column:to_currency;not null"`
	FromAmount   decimal.Decimal `gorm:"column:from_amount;type:numeric(78,18);not null"`
	ToAmount     decimal.Decimal `gorm:"column:to_amount;type:numeric(78,18);not null"`
	TaxAmount    decimal.Decimal `gorm:"column:tax_amount;type:numeric(78,18);not null"`
	Network      string          `gorm:"column:network;not null"`
	ObservedAt   time.Time       `gorm:"column:observed_at;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for the SwapRecord model
func (SwapRecord) TableName() string {
	return "swap_records"
}
