package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget: (departman, kategori, yıl, ay) başına bir tahsisat kovası
type Budget struct {
	ID           uint `gorm:"primaryKey"`
	DepartmentID uint `gorm:"not null;uniqueIndex:idx_budget_bucket"`
	Department   Department
	Category     ExpenseCategory `gorm:"size:30;not null;uniqueIndex:idx_budget_bucket"`
	Year         int             `gorm:"not null;uniqueIndex:idx_budget_bucket"`
	Month        int             `gorm:"not null;uniqueIndex:idx_budget_bucket"` // 1-12

	Amount   decimal.Decimal `gorm:"type:numeric(18,2);not null"`           // tahsis edilen
	Spent    decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"` // onaylanıp ödenen kümülatif tüketim
	Currency string          `gorm:"size:3;not null"`

	// iyimser kilit
	Version int `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Remaining her zaman türetilir, hiçbir yerde bağımsız saklanmaz.
func (b Budget) Remaining() decimal.Decimal {
	return b.Amount.Sub(b.Spent)
}
