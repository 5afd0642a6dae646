package approval

import (
	"errors"
	"fmt"
	"strings"

	"masraf-backend/internal/models"
)

// Action: onay akışındaki kullanıcı aksiyonları
type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionPay     Action = "pay"
	ActionCancel  Action = "cancel"
)

var (
	// ErrMissingJustification: onay/red için gerekçe girilmemiş
	ErrMissingJustification = errors.New("onay veya red için gerekçe zorunlu")

	// ErrItemsPending: masraf seviyesinde karar için tüm kalemler sonuçlanmış olmalı
	ErrItemsPending = errors.New("tüm kalemler sonuçlanmadan masraf kararı verilemez")
)

// IllegalTransitionError: mevcut durumdan bu aksiyon/rol ile geçiş yok.
// Hiçbir mutasyon yapılmadan çağırana döner.
type IllegalTransitionError struct {
	From   models.ExpenseStatus
	Action Action
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("geçersiz durum geçişi: '%s' durumunda '%s' yapılamaz", e.From, e.Action)
}

type transitionKey struct {
	From   models.ExpenseStatus
	Action Action
	Role   models.UserRole
}

// İzinli masraf geçişleri (durum, aksiyon, rol) -> hedef durum.
// Tabloda olmayan her kombinasyon IllegalTransition'dır.
var expenseTransitions = map[transitionKey]models.ExpenseStatus{
	{models.ExpenseStatusDraft, ActionSubmit, models.RoleEmployee}: models.ExpenseStatusSubmitted,

	{models.ExpenseStatusSubmitted, ActionApprove, models.RoleHOD}: models.ExpenseStatusApprovedByHOD,
	{models.ExpenseStatusSubmitted, ActionReject, models.RoleHOD}:  models.ExpenseStatusRejectedByHOD,

	{models.ExpenseStatusApprovedByHOD, ActionApprove, models.RoleFinance}: models.ExpenseStatusApprovedByFinance,
	{models.ExpenseStatusApprovedByHOD, ActionReject, models.RoleFinance}:  models.ExpenseStatusRejectedByFinance,

	{models.ExpenseStatusApprovedByFinance, ActionPay, models.RoleFinance}: models.ExpenseStatusPaid,

	// cancel: talep sahibi, terminal olmayan her durumdan
	{models.ExpenseStatusDraft, ActionCancel, models.RoleEmployee}:             models.ExpenseStatusCancelled,
	{models.ExpenseStatusSubmitted, ActionCancel, models.RoleEmployee}:         models.ExpenseStatusCancelled,
	{models.ExpenseStatusApprovedByHOD, ActionCancel, models.RoleEmployee}:     models.ExpenseStatusCancelled,
	{models.ExpenseStatusApprovedByFinance, ActionCancel, models.RoleEmployee}: models.ExpenseStatusCancelled,
}

// NextExpenseStatus geçişi doğrular ve hedef durumu döner.
// Tabloda karşılığı olmayan istek IllegalTransitionError üretir.
func NextExpenseStatus(from models.ExpenseStatus, action Action, role models.UserRole) (models.ExpenseStatus, error) {
	to, ok := expenseTransitions[transitionKey{From: from, Action: action, Role: role}]
	if !ok {
		return from, &IllegalTransitionError{From: from, Action: action}
	}
	return to, nil
}

// ExpenseAlreadyApplied: mevcut durum, bu (aksiyon, rol) çiftinin çıktısı mı?
// Zaman aşımı sonrası yinelenen istemci isteklerinde geçişi hatasız no-op
// saymak için kullanılır.
func ExpenseAlreadyApplied(current models.ExpenseStatus, action Action, role models.UserRole) bool {
	for key, to := range expenseTransitions {
		if key.Action == action && key.Role == role && to == current {
			return true
		}
	}
	return false
}

type itemTransitionKey struct {
	From   models.ItemStatus
	Action Action
	Role   models.UserRole
}

// Kalem seviyesi geçişler. Kalemler finans onayına bağımsız ilerlemez;
// finans tüm talebi tek seferde defterle mutabakata sokar.
var itemTransitions = map[itemTransitionKey]models.ItemStatus{
	{models.ItemStatusSubmitted, ActionApprove, models.RoleHOD}: models.ItemStatusApprovedByHOD,
	{models.ItemStatusSubmitted, ActionReject, models.RoleHOD}:  models.ItemStatusRejectedByHOD,
}

// IllegalItemTransitionError: kalem için geçersiz geçiş
type IllegalItemTransitionError struct {
	From   models.ItemStatus
	Action Action
}

func (e *IllegalItemTransitionError) Error() string {
	return fmt.Sprintf("geçersiz kalem geçişi: '%s' durumunda '%s' yapılamaz", e.From, e.Action)
}

// NextItemStatus kalem geçişini doğrular ve hedef durumu döner.
func NextItemStatus(from models.ItemStatus, action Action, role models.UserRole) (models.ItemStatus, error) {
	to, ok := itemTransitions[itemTransitionKey{From: from, Action: action, Role: role}]
	if !ok {
		return from, &IllegalItemTransitionError{From: from, Action: action}
	}
	return to, nil
}

// ItemAlreadyApplied: kalem durumu bu (aksiyon, rol) çiftinin çıktısı mı?
func ItemAlreadyApplied(current models.ItemStatus, action Action, role models.UserRole) bool {
	for key, to := range itemTransitions {
		if key.Action == action && key.Role == role && to == current {
			return true
		}
	}
	return false
}

// RequireJustification: onay ve red aksiyonlarında boş olmayan gerekçe şart.
func RequireJustification(comment string) error {
	if strings.TrimSpace(comment) == "" {
		return ErrMissingJustification
	}
	return nil
}

// FoldItems: masraf seviyesi karar, kalem sonuçlarının katlanmasıdır.
// resolved: tüm kalemler submitted durumundan çıktı mı;
// rejected: en az bir kalem reddedildi mi (red, onaya baskındır).
func FoldItems(items []models.ExpenseItem) (resolved bool, rejected bool) {
	resolved = true
	for _, it := range items {
		if !it.Status.Resolved() {
			resolved = false
		}
		if it.Status == models.ItemStatusRejectedByHOD {
			rejected = true
		}
	}
	return resolved, rejected
}

// ResolveExpenseAction katlama sonucuna göre masraf seviyesinde uygulanacak
// aksiyonu belirler: herhangi bir kalem reddedildiyse sonuç her zaman
// reddir, onaycı "approve" istemiş olsa bile.
func ResolveExpenseAction(items []models.ExpenseItem, requested Action) (Action, error) {
	resolved, rejected := FoldItems(items)
	if !resolved {
		return requested, ErrItemsPending
	}
	if rejected {
		return ActionReject, nil
	}
	return requested, nil
}
