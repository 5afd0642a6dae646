package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ExceptionResolution string

const (
	ExceptionPending ExceptionResolution = "pending"
	ExceptionGranted ExceptionResolution = "granted"
	ExceptionDenied  ExceptionResolution = "denied"
)

// BudgetExceptionRequest: bütçe aşımında onayın önünü açan istisna talebi.
// GRANTED bir istisna yalnızca talep anında yakalanan tutarı yetkilendirir;
// kalemin tutarı sonradan değişirse istisna geçersiz sayılır.
type BudgetExceptionRequest struct {
	ID     uint `gorm:"primaryKey"`
	ItemID uint `gorm:"index;not null"`
	Item   ExpenseItem `gorm:"foreignKey:ItemID"`

	Category        ExpenseCategory `gorm:"size:30;not null"`
	CurrentBudget   decimal.Decimal `gorm:"type:numeric(18,2);not null"` // talep anındaki kalan bütçe
	RequestedAmount decimal.Decimal `gorm:"type:numeric(18,2);not null"` // yetkilendirilen aşım tutarı
	Reason          string          `gorm:"size:500;not null"`

	ApproverTarget uint                `gorm:"index;not null"` // talebin yönlendirildiği onaycı
	Resolution     ExceptionResolution `gorm:"size:10;not null;index"`
	ResolvedBy     *uint
	ResolvedAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
