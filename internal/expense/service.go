package expense

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"masraf-backend/internal/approval"
	"masraf-backend/internal/audit"
	"masraf-backend/internal/budget"
	"masraf-backend/internal/database"
	"masraf-backend/internal/models"
)

var (
	// ErrExpenseNotFound: masraf kaydı yok
	ErrExpenseNotFound = errors.New("masraf talebi bulunamadı")

	// ErrItemNotFound: kalem bu masrafa ait değil veya yok
	ErrItemNotFound = errors.New("masraf kalemi bulunamadı")

	// ErrNotOwner: yalnızca talep sahibi yapabilir
	ErrNotOwner = errors.New("bu işlemi yalnızca talep sahibi yapabilir")

	// ErrConcurrentModification: iyimser kilit çakışması, çağıran güncel
	// durumla tekrar denemeli
	ErrConcurrentModification = errors.New("kayıt başka bir kullanıcı tarafından değiştirildi, tekrar deneyin")

	// ErrBudgetNotFound: (departman, kategori, dönem) için kova tanımlı değil
	ErrBudgetNotFound = errors.New("bu departman, kategori ve dönem için bütçe tanımlı değil")

	// ErrAdvanceReference: accountability geçerli bir avansı referans etmeli
	ErrAdvanceReference = errors.New("avans kapama talebi geçerli bir avans masrafını referans etmeli")

	// ErrMissingPaymentReference: ödeme için referans zorunlu
	ErrMissingPaymentReference = errors.New("ödeme referansı zorunlu")
)

// ItemDecision: kalem onay/red sonucunun çağırana dönen özeti
type ItemDecision struct {
	Item       models.ExpenseItem
	Evaluation *budget.Evaluation // yalnızca onay yolunda dolu
	NoOp       bool               // idempotent tekrar istek
}

func loadExpenseTx(tx *gorm.DB, expenseID uint) (*models.Expense, error) {
	var e models.Expense
	err := tx.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("expense_items.id asc")
	}).First(&e, "id = ?", expenseID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExpenseNotFound
		}
		return nil, err
	}
	return &e, nil
}

// bumpExpense iyimser kilitle masraf kaydını günceller. Version uyuşmazsa
// kaybeden yazar ErrConcurrentModification alır; sessiz üzerine yazma yok.
func bumpExpense(tx *gorm.DB, e *models.Expense, updates map[string]any) error {
	updates["version"] = e.Version + 1
	res := tx.Model(&models.Expense{}).
		Where("id = ? AND version = ?", e.ID, e.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}
	e.Version++
	return nil
}

// bumpBudget: bütçe kovası için aynı iyimser kilit
func bumpBudget(tx *gorm.DB, b *models.Budget, updates map[string]any) error {
	updates["version"] = b.Version + 1
	res := tx.Model(&models.Budget{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}
	b.Version++
	return nil
}

func findBudgetTx(tx *gorm.DB, departmentID uint, category models.ExpenseCategory, date time.Time) (*models.Budget, error) {
	var b models.Budget
	err := tx.First(&b,
		"department_id = ? AND category = ? AND year = ? AND month = ?",
		departmentID, category, date.Year(), int(date.Month())).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBudgetNotFound
		}
		return nil, err
	}
	return &b, nil
}

func loadExceptionsTx(tx *gorm.DB, itemIDs []uint) ([]models.BudgetExceptionRequest, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	var excs []models.BudgetExceptionRequest
	if err := tx.Where("item_id IN ?", itemIDs).Find(&excs).Error; err != nil {
		return nil, err
	}
	return excs, nil
}

func itemIDs(items []models.ExpenseItem) []uint {
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}

func writeComment(tx *gorm.DB, e *models.Expense, itemID *uint, actor models.User, body string) error {
	comment := models.Comment{
		ExpenseID: e.ID,
		ItemID:    itemID,
		UserID:    actor.ID,
		UserName:  actor.Name,
		Body:      strings.TrimSpace(body),
	}
	if err := tx.Create(&comment).Error; err != nil {
		return fmt.Errorf("yorum kaydedilemedi: %w", err)
	}
	return nil
}

// ValidateAccountabilityReference: accountability tam olarak bir avans
// masrafını referans eder; referans lookup'tır, avansın yaşam döngüsünü
// etkilemez.
func ValidateAccountabilityReference(tx *gorm.DB, e *models.Expense) error {
	if e.Type != models.ExpenseTypeAccountability {
		return nil
	}
	if e.OriginalExpenseID == nil {
		return ErrAdvanceReference
	}

	var original models.Expense
	if err := tx.First(&original, "id = ?", *e.OriginalExpenseID).Error; err != nil {
		return ErrAdvanceReference
	}
	if original.Type != models.ExpenseTypeAdvance {
		return ErrAdvanceReference
	}
	return nil
}

// AdvanceClosed: avans, kendisini kapatan accountability finans onayından
// geçmeden (approved_by_finance veya paid) kapanmış sayılmaz. Reddedilen veya
// iptal edilen accountability avansı açık bırakır.
func AdvanceClosed(advanceID uint) (bool, error) {
	var count int64
	err := database.DB.Model(&models.Expense{}).
		Where("original_expense_id = ? AND type = ? AND status IN ?",
			advanceID, models.ExpenseTypeAccountability,
			[]models.ExpenseStatus{models.ExpenseStatusApprovedByFinance, models.ExpenseStatusPaid}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SubmitExpense taslağı onay akışına sokar: kalemler normalize edilir,
// toplam yeniden hesaplanır, tüm kalemler submitted durumuna geçer.
func SubmitExpense(expenseID uint, actor models.User, baseCurrency string) (*models.Expense, error) {
	var result *models.Expense

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		e, err := loadExpenseTx(tx, expenseID)
		if err != nil {
			return err
		}

		if e.RequestedBy != actor.ID {
			return ErrNotOwner
		}

		// zaman aşımı sonrası tekrar istek: no-op başarı
		if approval.ExpenseAlreadyApplied(e.Status, approval.ActionSubmit, models.RoleEmployee) {
			result = e
			return nil
		}

		if _, err := approval.NextExpenseStatus(e.Status, approval.ActionSubmit, models.RoleEmployee); err != nil {
			return err
		}

		if err := Recompute(e, baseCurrency); err != nil {
			return err
		}

		if err := ValidateAccountabilityReference(tx, e); err != nil {
			return err
		}

		now := time.Now()
		for i := range e.Items {
			it := &e.Items[i]
			if err := tx.Model(&models.ExpenseItem{}).Where("id = ?", it.ID).Updates(map[string]any{
				"status":       models.ItemStatusSubmitted,
				"final_amount": it.FinalAmount,
			}).Error; err != nil {
				return err
			}
			it.Status = models.ItemStatusSubmitted
		}

		if err := bumpExpense(tx, e, map[string]any{
			"status":       models.ExpenseStatusSubmitted,
			"total_amount": e.TotalAmount,
			"submitted_at": now,
		}); err != nil {
			return err
		}
		e.Status = models.ExpenseStatusSubmitted
		e.SubmittedAt = &now

		if err := audit.WriteLogTx(tx, audit.LogOptions{
			DepartmentID: &e.DepartmentID,
			UserID:       actor.ID,
			UserName:     actor.Name,
			EntityType:   "expense",
			EntityID:     e.ID,
			Action:       models.AuditActionSubmit,
			Description:  fmt.Sprintf("Masraf talebi gönderildi: %s - %s", e.RequestNumber, e.TotalAmount),
		}); err != nil {
			return err
		}

		result = e
		return nil
	})

	return result, err
}

// DecideItem HOD'un kalem onayını/reddini uygular. Onay yolunda kalem,
// deftere danışılmadan commit edilmez: OVER_BUDGET sınıflaması, GRANTED bir
// istisna olmadan geçişi durdurur.
func DecideItem(expenseID, itemID uint, actor models.User, action approval.Action, comment string) (*ItemDecision, error) {
	if err := approval.RequireJustification(comment); err != nil {
		return nil, err
	}

	var (
		decision ItemDecision
		overrun  *budget.OverrunError
	)

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		e, err := loadExpenseTx(tx, expenseID)
		if err != nil {
			return err
		}

		var target *models.ExpenseItem
		for i := range e.Items {
			if e.Items[i].ID == itemID {
				target = &e.Items[i]
				break
			}
		}
		if target == nil {
			return ErrItemNotFound
		}

		// kalem aksiyonları yalnızca masraf submitted iken geçerli
		if e.Status != models.ExpenseStatusSubmitted {
			return &approval.IllegalTransitionError{From: e.Status, Action: action}
		}

		// aynı onaycının tekrar isteği: hata değil, no-op başarı
		if approval.ItemAlreadyApplied(target.Status, action, actor.Role) {
			decision = ItemDecision{Item: *target, NoOp: true}
			return nil
		}

		next, err := approval.NextItemStatus(target.Status, action, actor.Role)
		if err != nil {
			return err
		}

		updates := map[string]any{}

		if action == approval.ActionApprove {
			// defter danışması: kardeş kalemlerin etkisi artan id sırasıyla
			b, err := findBudgetTx(tx, e.DepartmentID, target.Category, target.Date)
			if err != nil {
				return err
			}

			draws := []budget.Draw{}
			for _, sib := range e.Items {
				if sib.ID == target.ID {
					continue
				}
				if sib.Status == models.ItemStatusApprovedByHOD &&
					sib.Category == target.Category &&
					sib.Date.Year() == target.Date.Year() && sib.Date.Month() == target.Date.Month() {
					draws = append(draws, budget.Draw{ItemID: sib.ID, Amount: sib.FinalAmount})
				}
			}
			draws = append(draws, budget.Draw{ItemID: target.ID, Amount: target.FinalAmount})

			var eval budget.Evaluation
			for _, res := range budget.EvaluateAll(*b, draws) {
				if res.ItemID == target.ID {
					eval = res.Evaluation
				}
			}
			decision.Evaluation = &eval

			if eval.Classification == budget.ClassificationOverBudget {
				excs, err := loadExceptionsTx(tx, []uint{target.ID})
				if err != nil {
					return err
				}

				granted, err := budget.MatchGranted(excs, *target)
				if err != nil {
					return err
				}
				if !granted {
					// kalem geçişi uygulanmaz; yalnızca aşım bayrağı yazılır
					// ve aşım bilgisi onaycıya döner
					if err := bumpExpense(tx, e, map[string]any{"is_over_budget": true}); err != nil {
						return err
					}
					overrun = &budget.OverrunError{ItemID: target.ID, RemainingAfter: eval.RemainingAfter}
					return nil
				}

				updates["is_over_budget"] = true
				e.IsOverBudget = true
				updates["budget_exception_approved"] = true
				e.BudgetExceptionApproved = true
			}
		}

		if err := tx.Model(&models.ExpenseItem{}).Where("id = ?", target.ID).
			Update("status", next).Error; err != nil {
			return err
		}
		target.Status = next

		// her kalem kararı masraf versiyonunu artırır; aynı kalem için
		// yarışan ikinci onaycı ErrConcurrentModification alır
		if err := bumpExpense(tx, e, updates); err != nil {
			return err
		}

		if err := writeComment(tx, e, &target.ID, actor, comment); err != nil {
			return err
		}

		auditAction := models.AuditActionApprove
		if action == approval.ActionReject {
			auditAction = models.AuditActionReject
		}
		if err := audit.WriteLogTx(tx, audit.LogOptions{
			DepartmentID: &e.DepartmentID,
			UserID:       actor.ID,
			UserName:     actor.Name,
			EntityType:   "expense_item",
			EntityID:     target.ID,
			Action:       auditAction,
			Description:  fmt.Sprintf("Kalem %s: %s - %s %s", auditAction, target.Category, target.FinalAmount, e.RequestNumber),
		}); err != nil {
			return err
		}

		decision.Item = *target
		return nil
	})

	if err != nil {
		return nil, err
	}
	if overrun != nil {
		return nil, overrun
	}
	return &decision, nil
}

// financeLedgerGuard finans onayı/ödeme öncesi tüm talebi defterle yeniden
// mutabakata sokar: bekleyen istisna varsa veya GRANTED istisnasız bir aşım
// varsa geçiş engellenir.
func financeLedgerGuard(tx *gorm.DB, e *models.Expense) error {
	excs, err := loadExceptionsTx(tx, itemIDs(e.Items))
	if err != nil {
		return err
	}
	if budget.HasPending(excs) {
		return budget.ErrExceptionPending
	}

	// kovalara göre grupla; kova içinde artan kalem id sırası EvaluateAll'da
	type bucketKey struct {
		category models.ExpenseCategory
		year     int
		month    int
	}
	buckets := map[bucketKey][]models.ExpenseItem{}
	for _, it := range e.Items {
		if it.Status != models.ItemStatusApprovedByHOD {
			continue
		}
		key := bucketKey{category: it.Category, year: it.Date.Year(), month: int(it.Date.Month())}
		buckets[key] = append(buckets[key], it)
	}

	for _, items := range buckets {
		b, err := findBudgetTx(tx, e.DepartmentID, items[0].Category, items[0].Date)
		if err != nil {
			return err
		}

		draws := make([]budget.Draw, 0, len(items))
		byID := make(map[uint]models.ExpenseItem, len(items))
		for _, it := range items {
			draws = append(draws, budget.Draw{ItemID: it.ID, Amount: it.FinalAmount})
			byID[it.ID] = it
		}

		for _, res := range budget.EvaluateAll(*b, draws) {
			if res.Evaluation.Classification != budget.ClassificationOverBudget {
				continue
			}
			granted, err := budget.MatchGranted(excs, byID[res.ItemID])
			if err != nil {
				return err
			}
			if !granted {
				return &budget.OverrunError{ItemID: res.ItemID, RemainingAfter: res.Evaluation.RemainingAfter}
			}
		}
	}

	return nil
}

// CompleteReview masraf seviyesindeki onay/red kararını uygular. HOD
// kararı kalem sonuçlarının katlanmasıdır (red baskındır); finans kararı
// talebin tamamını defterle mutabakata sokar.
func CompleteReview(expenseID uint, actor models.User, requested approval.Action, comment string) (*models.Expense, error) {
	if err := approval.RequireJustification(comment); err != nil {
		return nil, err
	}

	var result *models.Expense

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		e, err := loadExpenseTx(tx, expenseID)
		if err != nil {
			return err
		}

		action := requested
		if actor.Role == models.RoleHOD {
			// katlama: tüm kalemler sonuçlanmış olmalı, tek red her şeyi reddeder
			action, err = approval.ResolveExpenseAction(e.Items, requested)
			if err != nil {
				return err
			}
		}

		// idempotency katlama sonucuna göre ölçülür: approve isteği red'e
		// katlandıysa aynı onaycının tekrar isteği de no-op başarıdır
		if approval.ExpenseAlreadyApplied(e.Status, action, actor.Role) {
			result = e
			return nil
		}

		if actor.Role == models.RoleFinance && action == approval.ActionApprove {
			if err := financeLedgerGuard(tx, e); err != nil {
				return err
			}
		}

		to, err := approval.NextExpenseStatus(e.Status, action, actor.Role)
		if err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]any{"status": to}
		switch action {
		case approval.ActionApprove:
			updates["approved_at"] = now
		case approval.ActionReject:
			updates["rejected_at"] = now
		}

		if err := bumpExpense(tx, e, updates); err != nil {
			return err
		}
		e.Status = to

		if err := writeComment(tx, e, nil, actor, comment); err != nil {
			return err
		}

		auditAction := models.AuditActionApprove
		if action == approval.ActionReject {
			auditAction = models.AuditActionReject
		}
		if err := audit.WriteLogTx(tx, audit.LogOptions{
			DepartmentID: &e.DepartmentID,
			UserID:       actor.ID,
			UserName:     actor.Name,
			EntityType:   "expense",
			EntityID:     e.ID,
			Action:       auditAction,
			Description:  fmt.Sprintf("Masraf %s: %s -> %s", auditAction, e.RequestNumber, to),
		}); err != nil {
			return err
		}

		result = e
		return nil
	})

	return result, err
}

// PayExpense ödemeyi gerçekleştirir ve tüketimi deftere işler. Durum geçişi
// ile bütçe commit'i tek veritabanı işlemidir: biri başarısız olursa diğeri
// de uygulanmaz.
func PayExpense(expenseID uint, actor models.User, reference string) (*models.Expense, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, ErrMissingPaymentReference
	}

	var result *models.Expense

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		e, err := loadExpenseTx(tx, expenseID)
		if err != nil {
			return err
		}

		if approval.ExpenseAlreadyApplied(e.Status, approval.ActionPay, actor.Role) {
			result = e
			return nil
		}

		if _, err := approval.NextExpenseStatus(e.Status, approval.ActionPay, actor.Role); err != nil {
			return err
		}

		// bekleyen istisna ödemeyi de kilitler
		if err := financeLedgerGuard(tx, e); err != nil {
			return err
		}

		// kova başına commit, artan kalem id sırasıyla
		committed := map[uint]*models.Budget{}
		for _, it := range e.Items {
			if it.Status != models.ItemStatusApprovedByHOD {
				continue
			}

			b, err := findBudgetTx(tx, e.DepartmentID, it.Category, it.Date)
			if err != nil {
				return err
			}
			if cached, ok := committed[b.ID]; ok {
				b = cached
			}

			budget.Commit(b, it.FinalAmount)
			committed[b.ID] = b
		}

		for _, b := range committed {
			if err := bumpBudget(tx, b, map[string]any{"spent": b.Spent}); err != nil {
				return err
			}
		}

		now := time.Now()
		if err := bumpExpense(tx, e, map[string]any{
			"status":            models.ExpenseStatusPaid,
			"paid_at":           now,
			"payment_reference": strings.TrimSpace(reference),
		}); err != nil {
			return err
		}
		e.Status = models.ExpenseStatusPaid
		e.PaidAt = &now
		e.PaymentReference = strings.TrimSpace(reference)

		if err := audit.WriteLogTx(tx, audit.LogOptions{
			DepartmentID: &e.DepartmentID,
			UserID:       actor.ID,
			UserName:     actor.Name,
			EntityType:   "expense",
			EntityID:     e.ID,
			Action:       models.AuditActionPay,
			Description:  fmt.Sprintf("Masraf ödendi: %s - %s (ref: %s)", e.RequestNumber, e.TotalAmount, reference),
		}); err != nil {
			return err
		}

		result = e
		return nil
	})

	return result, err
}

// CancelExpense: talep sahibi terminal olmayan her durumda iptal edebilir.
func CancelExpense(expenseID uint, actor models.User, reason string) (*models.Expense, error) {
	var result *models.Expense

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		e, err := loadExpenseTx(tx, expenseID)
		if err != nil {
			return err
		}

		if e.RequestedBy != actor.ID {
			return ErrNotOwner
		}

		if e.Status == models.ExpenseStatusCancelled {
			result = e
			return nil
		}

		if _, err := approval.NextExpenseStatus(e.Status, approval.ActionCancel, models.RoleEmployee); err != nil {
			return err
		}

		if err := bumpExpense(tx, e, map[string]any{
			"status":        models.ExpenseStatusCancelled,
			"cancel_reason": strings.TrimSpace(reason),
		}); err != nil {
			return err
		}
		e.Status = models.ExpenseStatusCancelled
		e.CancelReason = strings.TrimSpace(reason)

		if err := audit.WriteLogTx(tx, audit.LogOptions{
			DepartmentID: &e.DepartmentID,
			UserID:       actor.ID,
			UserName:     actor.Name,
			EntityType:   "expense",
			EntityID:     e.ID,
			Action:       models.AuditActionCancel,
			Description:  fmt.Sprintf("Masraf iptal edildi: %s", e.RequestNumber),
		}); err != nil {
			return err
		}

		result = e
		return nil
	})

	return result, err
}
