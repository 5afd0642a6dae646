package budget

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"masraf-backend/internal/models"
)

var (
	// ErrMissingReason: istisna talebi için gerekçe zorunlu
	ErrMissingReason = errors.New("bütçe istisna talebi için gerekçe zorunlu")

	// ErrAlreadyResolved: talep zaten sonuçlanmış
	ErrAlreadyResolved = errors.New("bütçe istisna talebi zaten sonuçlanmış")

	// ErrInvalidDecision: karar granted veya denied olmalı
	ErrInvalidDecision = errors.New("geçersiz istisna kararı")

	// ErrStaleException: GRANTED istisna, talep anında yakalanan tutardan
	// farklı bir tutar için kullanılamaz; yeniden talep edilmeli
	ErrStaleException = errors.New("istisna tutarı kalem tutarıyla uyuşmuyor, yeniden talep edilmeli")

	// ErrExceptionPending: bekleyen istisna varken finans onayı/ödeme yapılamaz
	ErrExceptionPending = errors.New("bekleyen bütçe istisnası varken bu işlem yapılamaz")

	// ErrNotExceptionApprover: talep, yönlendirildiği onaycıya kilitlidir
	ErrNotExceptionApprover = errors.New("istisna talebini yalnızca yönlendirildiği onaycı sonuçlandırabilir")
)

// OverrunError: BudgetOverrun bir hata değil, geçişi istisna çözümüne kadar
// durduran sınıflandırmadır. Onaycıya hesaplanan kalan bakiye ile döner.
type OverrunError struct {
	ItemID         uint
	RemainingAfter decimal.Decimal
}

func (e *OverrunError) Error() string {
	return fmt.Sprintf("bütçe aşımı: kalem %d onaylanırsa kalan %s olur", e.ItemID, e.RemainingAfter)
}

// NewExceptionRequest bütçe aşımı için istisna talebi oluşturur.
// currentRemaining talep anındaki kalan bütçedir; RequestedAmount kalemin o
// anki baz tutarıdır ve yalnızca bu tutar yetkilendirilir.
func NewExceptionRequest(item models.ExpenseItem, currentRemaining decimal.Decimal, reason string, approverTarget uint) (models.BudgetExceptionRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return models.BudgetExceptionRequest{}, ErrMissingReason
	}

	return models.BudgetExceptionRequest{
		ItemID:          item.ID,
		Category:        item.Category,
		CurrentBudget:   currentRemaining,
		RequestedAmount: item.FinalAmount,
		Reason:          strings.TrimSpace(reason),
		ApproverTarget:  approverTarget,
		Resolution:      models.ExceptionPending,
	}, nil
}

// Resolve bekleyen talebi sonuçlandırır. Sonuçlanmış talep tekrar
// sonuçlandırılamaz.
func Resolve(exc *models.BudgetExceptionRequest, decision models.ExceptionResolution, resolvedBy uint, now time.Time) error {
	if exc.Resolution != models.ExceptionPending {
		return ErrAlreadyResolved
	}
	if decision != models.ExceptionGranted && decision != models.ExceptionDenied {
		return ErrInvalidDecision
	}

	exc.Resolution = decision
	exc.ResolvedBy = &resolvedBy
	exc.ResolvedAt = &now
	return nil
}

// AuthorizeResolver: ApproverTarget talep anında yakalanır ve karar yetkisini
// o onaycıya kilitler; super_admin her talebi sonuçlandırabilir.
func AuthorizeResolver(exc models.BudgetExceptionRequest, userID uint, role models.UserRole) error {
	if role == models.RoleSuperAdmin {
		return nil
	}
	if exc.ApproverTarget != userID {
		return ErrNotExceptionApprover
	}
	return nil
}

// HasPending: kalemlerden herhangi birine bağlı çözülmemiş istisna var mı
func HasPending(excs []models.BudgetExceptionRequest) bool {
	for _, exc := range excs {
		if exc.Resolution == models.ExceptionPending {
			return true
		}
	}
	return false
}

// MatchGranted engellenen kalem geçişi yeniden denendiğinde çalışır:
// kalem için GRANTED ve tutarı hâlâ eşleşen bir istisna arar. Tutar
// değişmişse istisna bayatlamıştır (stale) ve yeniden talep edilmelidir.
func MatchGranted(excs []models.BudgetExceptionRequest, item models.ExpenseItem) (bool, error) {
	stale := false
	for _, exc := range excs {
		if exc.ItemID != item.ID || exc.Resolution != models.ExceptionGranted {
			continue
		}
		if exc.RequestedAmount.Equal(item.FinalAmount) {
			return true, nil
		}
		stale = true
	}
	if stale {
		return false, ErrStaleException
	}
	return false, nil
}
