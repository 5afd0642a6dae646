package expense

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"masraf-backend/internal/approval"
	"masraf-backend/internal/audit"
	"masraf-backend/internal/auth"
	"masraf-backend/internal/budget"
	"masraf-backend/internal/config"
	"masraf-backend/internal/currency"
	"masraf-backend/internal/database"
	"masraf-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateItemRequest struct {
	Description  string `json:"description"`
	Category     string `json:"category"`
	Date         string `json:"date"` // "2023-06-10"
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currency_code"`
	ExchangeRate string `json:"exchange_rate"`
	Notes        string `json:"notes"`
}

type CreateExpenseRequest struct {
	Type              string              `json:"type"`
	Description       string              `json:"description"`
	OriginalExpenseID *uint               `json:"original_expense_id"` // accountability için
	Items             []CreateItemRequest `json:"items"`
}

type UpdateExpenseRequest struct {
	Description *string             `json:"description"`
	Items       []CreateItemRequest `json:"items"` // verilirse kalemler komple değiştirilir
}

type ActionRequest struct {
	Comment string `json:"comment"`
}

type PayRequest struct {
	Reference string `json:"reference"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type ItemResponse struct {
	ID           uint   `json:"id"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Date         string `json:"date"`
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currency_code"`
	ExchangeRate string `json:"exchange_rate"`
	FinalAmount  string `json:"final_amount"`
	Status       string `json:"status"`
	Notes        string `json:"notes"`
}

type ExpenseResponse struct {
	ID                      uint           `json:"id"`
	RequestNumber           string         `json:"request_number"`
	Type                    string         `json:"type"`
	Status                  string         `json:"status"`
	DepartmentID            uint           `json:"department_id"`
	RequestedBy             uint           `json:"requested_by"`
	TotalAmount             string         `json:"total_amount"`
	IsOverBudget            bool           `json:"is_over_budget"`
	BudgetExceptionApproved bool           `json:"budget_exception_approved"`
	OriginalExpenseID       *uint          `json:"original_expense_id,omitempty"`
	AdvanceClosed           *bool          `json:"advance_closed,omitempty"` // yalnızca avanslar için
	Description             string         `json:"description"`
	PaymentReference        string         `json:"payment_reference,omitempty"`
	SubmittedAt             *string        `json:"submitted_at"`
	ApprovedAt              *string        `json:"approved_at"`
	RejectedAt              *string        `json:"rejected_at"`
	PaidAt                  *string        `json:"paid_at"`
	Items                   []ItemResponse `json:"items"`
}

type EvaluationResponse struct {
	ItemID         uint   `json:"item_id"`
	RemainingAfter string `json:"remaining_after"`
	Classification string `json:"classification"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02 15:04:05")
	return &s
}

func toExpenseResponse(e *models.Expense) ExpenseResponse {
	items := make([]ItemResponse, 0, len(e.Items))
	for _, it := range e.Items {
		items = append(items, ItemResponse{
			ID:           it.ID,
			Description:  it.Description,
			Category:     string(it.Category),
			Date:         it.Date.Format("2006-01-02"),
			Amount:       it.Amount.StringFixed(2),
			CurrencyCode: it.CurrencyCode,
			ExchangeRate: it.ExchangeRate.String(),
			FinalAmount:  it.FinalAmount.StringFixed(2),
			Status:       string(it.Status),
			Notes:        it.Notes,
		})
	}

	resp := ExpenseResponse{
		ID:                      e.ID,
		RequestNumber:           e.RequestNumber,
		Type:                    string(e.Type),
		Status:                  string(e.Status),
		DepartmentID:            e.DepartmentID,
		RequestedBy:             e.RequestedBy,
		TotalAmount:             e.TotalAmount.StringFixed(2),
		IsOverBudget:            e.IsOverBudget,
		BudgetExceptionApproved: e.BudgetExceptionApproved,
		OriginalExpenseID:       e.OriginalExpenseID,
		Description:             e.Description,
		PaymentReference:        e.PaymentReference,
		SubmittedAt:             formatTime(e.SubmittedAt),
		ApprovedAt:              formatTime(e.ApprovedAt),
		RejectedAt:              formatTime(e.RejectedAt),
		PaidAt:                  formatTime(e.PaidAt),
		Items:                   items,
	}

	if e.Type == models.ExpenseTypeAdvance {
		if closed, err := AdvanceClosed(e.ID); err == nil {
			resp.AdvanceClosed = &closed
		}
	}

	return resp
}

// -------------------------
// Yardımcı: kullanıcı ve hata çözümleme
// -------------------------

func getActor(c *fiber.Ctx) (models.User, error) {
	userIDVal := c.Locals(auth.CtxUserIDKey)
	userID, ok := userIDVal.(uint)
	if !ok {
		return models.User{}, fiber.NewError(fiber.StatusForbidden, "Kullanıcı bilgisi alınamadı")
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return models.User{}, fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı bulunamadı")
	}
	return user, nil
}

// mapServiceError servis hatalarını hata türüne göre HTTP cevabına çevirir;
// çağıranlar tür üzerinden dallanır, mesajlar akış kontrolü değildir.
func mapServiceError(c *fiber.Ctx, err error) error {
	var illegal *approval.IllegalTransitionError
	var illegalItem *approval.IllegalItemTransitionError
	var overrun *budget.OverrunError

	switch {
	case errors.As(err, &overrun):
		// aşım bir hata değil, istisna çözümüne kadar geçişi durduran sınıflandırma
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":           "Bütçe aşımı: onay, istisna onaylanana kadar bekletiliyor",
			"item_id":         overrun.ItemID,
			"remaining_after": overrun.RemainingAfter.StringFixed(2),
			"classification":  string(budget.ClassificationOverBudget),
		})
	case errors.As(err, &illegal), errors.As(err, &illegalItem):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrExpenseNotFound), errors.Is(err, ErrItemNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotOwner):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrConcurrentModification):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, approval.ErrMissingJustification),
		errors.Is(err, approval.ErrItemsPending),
		errors.Is(err, ErrDuplicateLineItem),
		errors.Is(err, ErrUnknownCategory),
		errors.Is(err, ErrBaseCurrencyRate),
		errors.Is(err, ErrNoItems),
		errors.Is(err, ErrAdvanceReference),
		errors.Is(err, ErrMissingPaymentReference),
		errors.Is(err, currency.ErrInvalidMonetaryInput):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrBudgetNotFound):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, budget.ErrExceptionPending),
		errors.Is(err, budget.ErrStaleException):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "İşlem tamamlanamadı")
	}
}

func parseItems(reqs []CreateItemRequest) ([]models.ExpenseItem, error) {
	items := make([]models.ExpenseItem, 0, len(reqs))
	for _, r := range reqs {
		d, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Kalem tarihi 'YYYY-MM-DD' formatında olmalı")
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(r.Amount))
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Kalem tutarı geçersiz")
		}

		rate, err := decimal.NewFromString(strings.TrimSpace(r.ExchangeRate))
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Döviz kuru geçersiz")
		}

		cur := strings.ToUpper(strings.TrimSpace(r.CurrencyCode))
		if len(cur) != 3 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Para birimi üç harfli kod olmalı")
		}

		items = append(items, models.ExpenseItem{
			Description:  strings.TrimSpace(r.Description),
			Category:     models.ExpenseCategory(strings.ToLower(strings.TrimSpace(r.Category))),
			Date:         d,
			Amount:       amount,
			CurrencyCode: cur,
			ExchangeRate: rate,
			Status:       models.ItemStatusDraft,
			Notes:        strings.TrimSpace(r.Notes),
		})
	}
	return items, nil
}

// newRequestNumber: bir kez atanır, sonradan asla değişmez
func newRequestNumber() string {
	return "MSF-" + strings.ToUpper(uuid.NewString()[:8])
}

// -------------------------
// Masraf CRUD (yalnızca taslak aşamasında)
// -------------------------

// POST /api/expenses
func CreateExpenseHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := getActor(c)
		if err != nil {
			return err
		}
		if actor.DepartmentID == nil {
			return fiber.NewError(fiber.StatusForbidden, "Departman bilgisi bulunamadı")
		}

		var body CreateExpenseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		expType := models.ExpenseType(strings.ToLower(strings.TrimSpace(body.Type)))
		if !models.ValidExpenseType(expType) {
			return fiber.NewError(fiber.StatusBadRequest, "Masraf tipi advance/reimbursement/accountability/payout olmalı")
		}

		items, err := parseItems(body.Items)
		if err != nil {
			return err
		}

		e := models.Expense{
			RequestNumber:     newRequestNumber(),
			Type:              expType,
			Status:            models.ExpenseStatusDraft,
			DepartmentID:      *actor.DepartmentID,
			RequestedBy:       actor.ID,
			Items:             items,
			Description:       strings.TrimSpace(body.Description),
			OriginalExpenseID: body.OriginalExpenseID,
		}

		// kalem doğrulaması (mükerrer, kur, kategori) girişte de çalışır
		if err := Recompute(&e, cfg.BaseCurrency); err != nil {
			return mapServiceError(c, err)
		}

		if err := ValidateAccountabilityReference(database.DB, &e); err != nil {
			return mapServiceError(c, err)
		}

		if err := database.DB.Create(&e).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Masraf talebi kaydedilemedi")
		}

		if logErr := audit.WriteLog(audit.LogOptions{
			DepartmentID: &e.DepartmentID,
			UserID:       actor.ID,
			UserName:     actor.Name,
			EntityType:   "expense",
			EntityID:     e.ID,
			Action:       models.AuditActionCreate,
			Description:  fmt.Sprintf("Masraf talebi oluşturuldu: %s - %s", e.RequestNumber, e.TotalAmount),
			After:        toExpenseResponse(&e),
		}); logErr != nil {
			fmt.Printf("Audit log yazılamadı: %v\n", logErr)
		}

		return c.Status(fiber.StatusCreated).JSON(toExpenseResponse(&e))
	}
}

// PUT /api/expenses/:id (yalnızca sahibi, yalnızca taslak)
func UpdateExpenseHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := getActor(c)
		if err != nil {
			return err
		}

		var e models.Expense
		if err := database.DB.Preload("Items").First(&e, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Masraf talebi bulunamadı")
		}

		if e.RequestedBy != actor.ID {
			return fiber.NewError(fiber.StatusForbidden, "Bu talebi yalnızca sahibi düzenleyebilir")
		}
		if e.Status != models.ExpenseStatusDraft {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "Gönderilmiş talep yalnızca onay aksiyonlarıyla değişir")
		}

		var body UpdateExpenseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if body.Description != nil {
			e.Description = strings.TrimSpace(*body.Description)
		}

		if body.Items != nil {
			newItems, err := parseItems(body.Items)
			if err != nil {
				return err
			}
			for i := range newItems {
				newItems[i].ExpenseID = e.ID
			}
			e.Items = newItems
		}

		// doğrulama her mutasyondan önce; geçersiz kalem hiçbir şeyi silmez
		if err := Recompute(&e, cfg.BaseCurrency); err != nil {
			return mapServiceError(c, err)
		}

		// kalem değişimi ve toplam tek atomik birim: yarıda kalan güncelleme
		// taslağı kalemsiz bırakamaz
		txErr := database.DB.Transaction(func(tx *gorm.DB) error {
			if body.Items != nil {
				// eski kalemler ekleriyle birlikte silinir (ekler kaleme aittir)
				if err := tx.Where("expense_item_id IN (?)",
					tx.Model(&models.ExpenseItem{}).Select("id").Where("expense_id = ?", e.ID),
				).Delete(&models.Attachment{}).Error; err != nil {
					return err
				}
				if err := tx.Where("expense_id = ?", e.ID).Delete(&models.ExpenseItem{}).Error; err != nil {
					return err
				}
			}
			return tx.Save(&e).Error
		})
		if txErr != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Masraf talebi güncellenemedi")
		}

		return c.JSON(toExpenseResponse(&e))
	}
}

// DELETE /api/expenses/:id (yalnızca sahibi, yalnızca taslak)
func DeleteExpenseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := getActor(c)
		if err != nil {
			return err
		}

		var e models.Expense
		if err := database.DB.First(&e, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Masraf talebi bulunamadı")
		}

		if e.RequestedBy != actor.ID {
			return fiber.NewError(fiber.StatusForbidden, "Bu talebi yalnızca sahibi silebilir")
		}
		if e.Status != models.ExpenseStatusDraft {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "Yalnızca taslak talep silinebilir")
		}

		// kalemler ve ekler talep ile birlikte silinir
		if err := database.DB.Select("Items", "Items.Attachments").Delete(&e).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Masraf talebi silinemedi")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/expenses?status=...&type=...&department_id=...
func ListExpensesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := getActor(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Model(&models.Expense{}).Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("expense_items.id asc")
		})

		// employee yalnızca kendi taleplerini, HOD kendi departmanını görür
		switch actor.Role {
		case models.RoleEmployee:
			dbq = dbq.Where("requested_by = ?", actor.ID)
		case models.RoleHOD:
			if actor.DepartmentID == nil {
				return fiber.NewError(fiber.StatusForbidden, "Departman bilgisi bulunamadı")
			}
			dbq = dbq.Where("department_id = ?", *actor.DepartmentID)
		default:
			if didStr := c.Query("department_id"); didStr != "" {
				var did uint
				if _, err := fmt.Sscan(didStr, &did); err != nil || did == 0 {
					return fiber.NewError(fiber.StatusBadRequest, "department_id geçersiz")
				}
				dbq = dbq.Where("department_id = ?", did)
			}
		}

		if status := c.Query("status"); status != "" {
			dbq = dbq.Where("status = ?", status)
		}
		if expType := c.Query("type"); expType != "" {
			dbq = dbq.Where("type = ?", expType)
		}

		var rows []models.Expense
		if err := dbq.Order("created_at desc").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Masraf talepleri listelenemedi")
		}

		resp := make([]ExpenseResponse, 0, len(rows))
		for i := range rows {
			resp = append(resp, toExpenseResponse(&rows[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/expenses/:id
func GetExpenseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var e models.Expense
		err := database.DB.Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("expense_items.id asc")
		}).Preload("Items.Attachments").First(&e, "id = ?", c.Params("id")).Error
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Masraf talebi bulunamadı")
		}

		return c.JSON(toExpenseResponse(&e))
	}
}

// -------------------------
// Onay akışı aksiyonları
// -------------------------

// POST /api/expenses/:id/submit
func SubmitExpenseHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := getActor(c)
		if err != nil {
			return err
		}

		var id uint
		if _, err := fmt.Sscan(c.Params("id"), &id); err != nil || id == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		e, err := SubmitExpense(id, actor, cfg.BaseCurrency)
		if err != nil {
			return mapServiceError(c, err)
		}

		return c.JSON(toExpenseResponse(e))
	}
}

func decideItemHandler(action approval.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := getActor(c)
		if err != nil {
			return err
		}

		var id, itemID uint
		if _, err := fmt.Sscan(c.Params("id"), &id); err != nil || id == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}
		if _, err := fmt.Sscan(c.Params("itemId"), &itemID); err != nil || itemID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "itemId geçersiz")
		}

		var body ActionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		d, err := DecideItem(id, itemID, actor, action, body.Comment)
		if err != nil {
			return mapServiceError(c, err)
		}

		resp := fiber.Map{
			"item": ItemResponse{
				ID:           d.Item.ID,
				Description:  d.Item.Description,
				Category:     string(d.Item.Category),
				Date:         d.Item.Date.Format("2006-01-02"),
				Amount:       d.Item.Amount.StringFixed(2),
				CurrencyCode: d.Item.CurrencyCode,
				ExchangeRate: d.Item.ExchangeRate.String(),
				FinalAmount:  d.Item.FinalAmount.StringFixed(2),
				Status:       string(d.Item.Status),
				Notes:        d.Item.Notes,
			},
		}
		if d.Evaluation != nil {
			resp["evaluation"] = EvaluationResponse{
				ItemID:         d.Item.ID,
				RemainingAfter: d.Evaluation.RemainingAfter.StringFixed(2),
				Classification: string(d.Evaluation.Classification),
			}
		}

		return c.JSON(resp)
	}
}

// POST /api/expenses/:id/items/:itemId/approve (HOD)
func ApproveItemHandler() fiber.Handler {
	return decideItemHandler(approval.ActionApprove)
}

// POST /api/expenses/:id/items/:itemId/reject (HOD)
func RejectItemHandler() fiber.Handler {
	return decideItemHandler(approval.ActionReject)
}

func completeReviewHandler(action approval.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := getActor(c)
		if err != nil {
			return err
		}

		var id uint
		if _, err := fmt.Sscan(c.Params("id"), &id); err != nil || id == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		var body ActionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		e, err := CompleteReview(id, actor, action, body.Comment)
		if err != nil {
			return mapServiceError(c, err)
		}

		return c.JSON(toExpenseResponse(e))
	}
}

// POST /api/expenses/:id/approve (HOD veya finans, duruma göre)
func ApproveExpenseHandler() fiber.Handler {
	return completeReviewHandler(approval.ActionApprove)
}

// POST /api/expenses/:id/reject (HOD veya finans, duruma göre)
func RejectExpenseHandler() fiber.Handler {
	return completeReviewHandler(approval.ActionReject)
}

// POST /api/expenses/:id/pay (finans)
func PayExpenseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := getActor(c)
		if err != nil {
			return err
		}

		var id uint
		if _, err := fmt.Sscan(c.Params("id"), &id); err != nil || id == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		var body PayRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		e, err := PayExpense(id, actor, body.Reference)
		if err != nil {
			return mapServiceError(c, err)
		}

		return c.JSON(toExpenseResponse(e))
	}
}

// POST /api/expenses/:id/cancel (talep sahibi)
func CancelExpenseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := getActor(c)
		if err != nil {
			return err
		}

		var id uint
		if _, err := fmt.Sscan(c.Params("id"), &id); err != nil || id == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		var body CancelRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		e, err := CancelExpense(id, actor, body.Reason)
		if err != nil {
			return mapServiceError(c, err)
		}

		return c.JSON(toExpenseResponse(e))
	}
}

// -------------------------
// Yorumlar (append-only)
// -------------------------

type CommentResponse struct {
	ID        uint   `json:"id"`
	ExpenseID uint   `json:"expense_id"`
	ItemID    *uint  `json:"item_id,omitempty"`
	UserID    uint   `json:"user_id"`
	UserName  string `json:"user_name"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

// GET /api/expenses/:id/comments
func ListCommentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var comments []models.Comment
		if err := database.DB.
			Where("expense_id = ?", c.Params("id")).
			Order("created_at asc").
			Find(&comments).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Yorumlar listelenemedi")
		}

		res := make([]CommentResponse, 0, len(comments))
		for _, cm := range comments {
			res = append(res, CommentResponse{
				ID:        cm.ID,
				ExpenseID: cm.ExpenseID,
				ItemID:    cm.ItemID,
				UserID:    cm.UserID,
				UserName:  cm.UserName,
				Body:      cm.Body,
				CreatedAt: cm.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		return c.JSON(res)
	}
}

type AddCommentRequest struct {
	ItemID *uint  `json:"item_id"`
	Body   string `json:"body"`
}

// POST /api/expenses/:id/comments
func AddCommentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := getActor(c)
		if err != nil {
			return err
		}

		var e models.Expense
		if err := database.DB.Preload("Items").First(&e, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Masraf talebi bulunamadı")
		}

		var body AddCommentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if strings.TrimSpace(body.Body) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Yorum boş olamaz")
		}

		if body.ItemID != nil {
			found := false
			for _, it := range e.Items {
				if it.ID == *body.ItemID {
					found = true
					break
				}
			}
			if !found {
				return fiber.NewError(fiber.StatusNotFound, "Masraf kalemi bulunamadı")
			}
		}

		comment := models.Comment{
			ExpenseID: e.ID,
			ItemID:    body.ItemID,
			UserID:    actor.ID,
			UserName:  actor.Name,
			Body:      strings.TrimSpace(body.Body),
		}
		if err := database.DB.Create(&comment).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Yorum kaydedilemedi")
		}

		return c.Status(fiber.StatusCreated).JSON(CommentResponse{
			ID:        comment.ID,
			ExpenseID: comment.ExpenseID,
			ItemID:    comment.ItemID,
			UserID:    comment.UserID,
			UserName:  comment.UserName,
			Body:      comment.Body,
			CreatedAt: comment.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

// -------------------------
// Aylık masraf özeti (onaylanmış tüketim, kategori bazında)
// GET /api/expenses/summary/monthly?year=2023&month=6&department_id=1
// -------------------------

type MonthlySummaryItem struct {
	Category string `json:"category"`
	Total    string `json:"total"`
}

type MonthlySummaryResponse struct {
	DepartmentID uint                 `json:"department_id"`
	Year         int                  `json:"year"`
	Month        int                  `json:"month"`
	Items        []MonthlySummaryItem `json:"items"`
	GrandTotal   string               `json:"grand_total"`
}

func MonthlyExpenseSummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := getActor(c)
		if err != nil {
			return err
		}

		var departmentID uint
		if actor.Role == models.RoleHOD || actor.Role == models.RoleEmployee {
			if actor.DepartmentID == nil {
				return fiber.NewError(fiber.StatusForbidden, "Departman bilgisi bulunamadı")
			}
			departmentID = *actor.DepartmentID
		} else {
			if _, err := fmt.Sscan(c.Query("department_id"), &departmentID); err != nil || departmentID == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "department_id zorunlu")
			}
		}

		var year, month int
		if _, err := fmt.Sscan(c.Query("year"), &year); err != nil || year < 2000 {
			return fiber.NewError(fiber.StatusBadRequest, "year geçersiz")
		}
		if _, err := fmt.Sscan(c.Query("month"), &month); err != nil || month < 1 || month > 12 {
			return fiber.NewError(fiber.StatusBadRequest, "month geçersiz")
		}

		loc := time.Now().Location()
		firstDay := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
		nextMonth := firstDay.AddDate(0, 1, 0)

		type row struct {
			Category string          `gorm:"column:category"`
			Total    decimal.Decimal `gorm:"column:total"`
		}
		var rows []row

		if err := database.DB.
			Model(&models.ExpenseItem{}).
			Select("expense_items.category, SUM(expense_items.final_amount) as total").
			Joins("JOIN expenses ON expenses.id = expense_items.expense_id").
			Where("expenses.department_id = ? AND expenses.status = ? AND expense_items.date >= ? AND expense_items.date < ?",
				departmentID, models.ExpenseStatusPaid, firstDay, nextMonth).
			Group("expense_items.category").
			Scan(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Özet hesaplanamadı")
		}

		resp := MonthlySummaryResponse{
			DepartmentID: departmentID,
			Year:         year,
			Month:        month,
			Items:        make([]MonthlySummaryItem, 0, len(rows)),
		}

		grand := decimal.Zero
		for _, r := range rows {
			resp.Items = append(resp.Items, MonthlySummaryItem{Category: r.Category, Total: r.Total.StringFixed(2)})
			grand = grand.Add(r.Total)
		}
		resp.GrandTotal = grand.StringFixed(2)

		return c.JSON(resp)
	}
}
