package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ExpenseType string

const (
	ExpenseTypeAdvance        ExpenseType = "advance"        // avans
	ExpenseTypeReimbursement  ExpenseType = "reimbursement"  // geri ödeme
	ExpenseTypeAccountability ExpenseType = "accountability" // avans kapama / mutabakat
	ExpenseTypePayout         ExpenseType = "payout"         // üçüncü tarafa doğrudan ödeme
)

func ValidExpenseType(t ExpenseType) bool {
	switch t {
	case ExpenseTypeAdvance, ExpenseTypeReimbursement, ExpenseTypeAccountability, ExpenseTypePayout:
		return true
	}
	return false
}

type ExpenseStatus string

const (
	ExpenseStatusDraft             ExpenseStatus = "draft"
	ExpenseStatusSubmitted         ExpenseStatus = "submitted"
	ExpenseStatusApprovedByHOD     ExpenseStatus = "approved_by_hod"
	ExpenseStatusApprovedByFinance ExpenseStatus = "approved_by_finance"
	ExpenseStatusPaid              ExpenseStatus = "paid"
	ExpenseStatusRejectedByHOD     ExpenseStatus = "rejected_by_hod"
	ExpenseStatusRejectedByFinance ExpenseStatus = "rejected_by_finance"
	ExpenseStatusCancelled         ExpenseStatus = "cancelled"
)

// Terminal: bu durumdan sonra hiçbir aksiyon kabul edilmez
func (s ExpenseStatus) Terminal() bool {
	switch s {
	case ExpenseStatusPaid, ExpenseStatusRejectedByHOD, ExpenseStatusRejectedByFinance, ExpenseStatusCancelled:
		return true
	}
	return false
}

type Expense struct {
	ID            uint   `gorm:"primaryKey"`
	RequestNumber string `gorm:"size:40;uniqueIndex;not null"` // bir kez atanır, değişmez
	Type          ExpenseType   `gorm:"size:20;not null;index"`
	Status        ExpenseStatus `gorm:"size:30;not null;index"`
	DepartmentID  uint          `gorm:"index;not null"`
	Department    Department
	RequestedBy   uint `gorm:"index;not null"`
	Requester     User `gorm:"foreignKey:RequestedBy"`

	Items []ExpenseItem `gorm:"constraint:OnDelete:CASCADE"`

	// türetilmiş: kalemlerin FinalAmount toplamı, her yazmada yeniden hesaplanır
	TotalAmount decimal.Decimal `gorm:"type:numeric(18,2);not null"`

	IsOverBudget            bool `gorm:"default:false"`
	BudgetExceptionApproved bool `gorm:"default:false"`

	// accountability, kapattığı avansı referans eder (sahiplik değil, lookup)
	OriginalExpenseID *uint `gorm:"index"`

	Description      string `gorm:"size:255"`
	PaymentReference string `gorm:"size:100"`
	CancelReason     string `gorm:"size:255"`

	SubmittedAt *time.Time
	ApprovedAt  *time.Time
	RejectedAt  *time.Time
	PaidAt      *time.Time

	// iyimser kilit: her durum/bütçe yazımında artar
	Version int `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
