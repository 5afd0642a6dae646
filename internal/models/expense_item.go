package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseCategory: kapalı küme, bütçe kovaları bu kategorilere göre tutulur
type ExpenseCategory string

const (
	CategoryTravel        ExpenseCategory = "travel"
	CategoryTraining      ExpenseCategory = "training"
	CategorySupplies      ExpenseCategory = "supplies"
	CategoryAccommodation ExpenseCategory = "accommodation"
	CategoryMeals         ExpenseCategory = "meals"
	CategoryTransport     ExpenseCategory = "transport"
	CategoryOther         ExpenseCategory = "other"
)

func ValidCategory(cat ExpenseCategory) bool {
	switch cat {
	case CategoryTravel, CategoryTraining, CategorySupplies, CategoryAccommodation,
		CategoryMeals, CategoryTransport, CategoryOther:
		return true
	}
	return false
}

type ItemStatus string

const (
	ItemStatusDraft         ItemStatus = "draft"
	ItemStatusSubmitted     ItemStatus = "submitted"
	ItemStatusApprovedByHOD ItemStatus = "approved_by_hod"
	ItemStatusRejectedByHOD ItemStatus = "rejected_by_hod"
)

// Resolved: kalem kendi onay sürecinden çıktı mı (onaylandı veya reddedildi)
func (s ItemStatus) Resolved() bool {
	return s == ItemStatusApprovedByHOD || s == ItemStatusRejectedByHOD
}

type ExpenseItem struct {
	ID          uint `gorm:"primaryKey"`
	ExpenseID   uint `gorm:"index;not null"`
	Description string          `gorm:"size:255"`
	Category    ExpenseCategory `gorm:"size:30;not null;index"`
	Date        time.Time       `gorm:"not null"`

	Amount       decimal.Decimal `gorm:"type:numeric(18,2);not null"` // girilen para birimi cinsinden
	CurrencyCode string          `gorm:"size:3;not null"`
	ExchangeRate decimal.Decimal `gorm:"type:numeric(18,6);not null"` // baz kura çevrim kuru

	// türetilmiş = Amount * ExchangeRate, asla bağımsız yazılmaz
	FinalAmount decimal.Decimal `gorm:"type:numeric(18,2);not null"`

	Status ItemStatus `gorm:"size:30;not null;index"`
	Notes  string     `gorm:"size:500"`

	// ekler kaleme aittir, kalemle birlikte silinir
	Attachments []Attachment `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Attachment: masraf kalemine bağlı belge (fiş, fatura). Yükleme UI dışarıda,
// burada sadece metadata tutulur.
type Attachment struct {
	ID            uint   `gorm:"primaryKey"`
	ExpenseItemID uint   `gorm:"index;not null"`
	FileName      string `gorm:"size:255;not null"`
	FilePath      string `gorm:"size:500;not null"`
	ContentType   string `gorm:"size:100"`
	SizeBytes     int64
	CreatedAt     time.Time
}
