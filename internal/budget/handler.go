package budget

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"masraf-backend/internal/audit"
	"masraf-backend/internal/auth"
	"masraf-backend/internal/database"
	"masraf-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type BudgetRequest struct {
	DepartmentID uint   `json:"department_id"`
	Category     string `json:"category"`
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
}

type BudgetResponse struct {
	ID           uint   `json:"id"`
	DepartmentID uint   `json:"department_id"`
	Category     string `json:"category"`
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	Amount       string `json:"amount"`
	Spent        string `json:"spent"`
	Remaining    string `json:"remaining"`
	Currency     string `json:"currency"`
}

func toBudgetResponse(b *models.Budget) BudgetResponse {
	return BudgetResponse{
		ID:           b.ID,
		DepartmentID: b.DepartmentID,
		Category:     string(b.Category),
		Year:         b.Year,
		Month:        b.Month,
		Amount:       b.Amount.StringFixed(2),
		Spent:        b.Spent.StringFixed(2),
		Remaining:    b.Remaining().StringFixed(2),
		Currency:     b.Currency,
	}
}

func getUserID(c *fiber.Ctx) (uint, error) {
	id, ok := c.Locals(auth.CtxUserIDKey).(uint)
	if !ok {
		return 0, fiber.NewError(fiber.StatusForbidden, "Kullanıcı bilgisi alınamadı")
	}
	return id, nil
}

func validateBucket(req BudgetRequest) error {
	if req.DepartmentID == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "department_id zorunlu")
	}
	if !models.ValidCategory(models.ExpenseCategory(req.Category)) {
		return fiber.NewError(fiber.StatusBadRequest, "Kategori geçersiz")
	}
	if req.Year < 2000 {
		return fiber.NewError(fiber.StatusBadRequest, "Yıl geçersiz")
	}
	if req.Month < 1 || req.Month > 12 {
		return fiber.NewError(fiber.StatusBadRequest, "Ay 1-12 arası olmalı")
	}
	return nil
}

// POST /api/budgets (finans / super_admin)
func CreateBudgetHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req BudgetRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if err := validateBucket(req); err != nil {
			return err
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
		if err != nil || amount.Sign() < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Tutar geçersiz")
		}

		cur := strings.ToUpper(strings.TrimSpace(req.Currency))
		if len(cur) != 3 {
			return fiber.NewError(fiber.StatusBadRequest, "Para birimi üç harfli kod olmalı")
		}

		var dept models.Department
		if err := database.DB.First(&dept, "id = ?", req.DepartmentID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Departman bulunamadı")
		}

		b := models.Budget{
			DepartmentID: req.DepartmentID,
			Category:     models.ExpenseCategory(req.Category),
			Year:         req.Year,
			Month:        req.Month,
			Amount:       amount,
			Spent:        decimal.Zero,
			Currency:     cur,
		}

		if err := database.DB.Create(&b).Error; err != nil {
			// uniqueIndex ihlali: aynı kova için ikinci tanım
			return fiber.NewError(fiber.StatusConflict, "Bu departman/kategori/dönem için bütçe zaten tanımlı")
		}

		return c.Status(fiber.StatusCreated).JSON(toBudgetResponse(&b))
	}
}

// GET /api/budgets?department_id=&year=&month=&category=
func ListBudgetsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Budget{})

		if v := c.Query("department_id"); v != "" {
			dbq = dbq.Where("department_id = ?", v)
		}
		if v := c.Query("year"); v != "" {
			dbq = dbq.Where("year = ?", v)
		}
		if v := c.Query("month"); v != "" {
			dbq = dbq.Where("month = ?", v)
		}
		if v := c.Query("category"); v != "" {
			dbq = dbq.Where("category = ?", v)
		}

		var budgets []models.Budget
		if err := dbq.Order("year desc, month desc, category asc").Find(&budgets).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Bütçeler listelenemedi")
		}

		resp := make([]BudgetResponse, 0, len(budgets))
		for i := range budgets {
			resp = append(resp, toBudgetResponse(&budgets[i]))
		}
		return c.JSON(resp)
	}
}

type UpdateBudgetRequest struct {
	Amount string `json:"amount"`
}

// PUT /api/budgets/:id — yalnızca tahsisat güncellenir; Spent defterden gelir,
// elle düzeltilmez.
func UpdateBudgetHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b models.Budget
		if err := database.DB.First(&b, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Bütçe bulunamadı")
		}

		var req UpdateBudgetRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
		if err != nil || amount.Sign() < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Tutar geçersiz")
		}

		res := database.DB.Model(&models.Budget{}).
			Where("id = ? AND version = ?", b.ID, b.Version).
			Updates(map[string]any{"amount": amount, "version": b.Version + 1})
		if res.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Bütçe güncellenemedi")
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusConflict, "Bütçe eşzamanlı değiştirildi, yeniden deneyin")
		}

		b.Amount = amount
		b.Version++
		return c.JSON(toBudgetResponse(&b))
	}
}

// GET /api/budgets/evaluate?department_id=&category=&year=&month=&amount=
// Yan etkisiz ön izleme: aday tutar onaylanırsa kalan ve sınıflandırma.
func EvaluateBudgetHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req BudgetRequest
		if _, err := fmt.Sscan(c.Query("department_id"), &req.DepartmentID); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "department_id geçersiz")
		}
		req.Category = c.Query("category")
		if _, err := fmt.Sscan(c.Query("year"), &req.Year); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "year geçersiz")
		}
		if _, err := fmt.Sscan(c.Query("month"), &req.Month); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "month geçersiz")
		}
		if err := validateBucket(req); err != nil {
			return err
		}

		candidate, err := decimal.NewFromString(c.Query("amount"))
		if err != nil || candidate.Sign() < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "amount geçersiz")
		}

		var b models.Budget
		if err := database.DB.
			Where("department_id = ? AND category = ? AND year = ? AND month = ?",
				req.DepartmentID, req.Category, req.Year, req.Month).
			First(&b).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Bu kova için bütçe tanımlı değil")
		}

		ev := Evaluate(b, candidate)
		return c.JSON(fiber.Map{
			"budget":          toBudgetResponse(&b),
			"remaining_after": ev.RemainingAfter.StringFixed(2),
			"classification":  string(ev.Classification),
		})
	}
}

// -------------------------
// Bütçe istisna talepleri
// -------------------------

type ExceptionRequestBody struct {
	ItemID         uint   `json:"item_id"`
	Reason         string `json:"reason"`
	ApproverTarget uint   `json:"approver_target"`
}

type ExceptionResponse struct {
	ID              uint    `json:"id"`
	ItemID          uint    `json:"item_id"`
	Category        string  `json:"category"`
	CurrentBudget   string  `json:"current_budget"`
	RequestedAmount string  `json:"requested_amount"`
	Reason          string  `json:"reason"`
	ApproverTarget  uint    `json:"approver_target"`
	Resolution      string  `json:"resolution"`
	ResolvedBy      *uint   `json:"resolved_by,omitempty"`
	ResolvedAt      *string `json:"resolved_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

func toExceptionResponse(exc *models.BudgetExceptionRequest) ExceptionResponse {
	resp := ExceptionResponse{
		ID:              exc.ID,
		ItemID:          exc.ItemID,
		Category:        string(exc.Category),
		CurrentBudget:   exc.CurrentBudget.StringFixed(2),
		RequestedAmount: exc.RequestedAmount.StringFixed(2),
		Reason:          exc.Reason,
		ApproverTarget:  exc.ApproverTarget,
		Resolution:      string(exc.Resolution),
		ResolvedBy:      exc.ResolvedBy,
		CreatedAt:       exc.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if exc.ResolvedAt != nil {
		s := exc.ResolvedAt.Format("2006-01-02 15:04:05")
		resp.ResolvedAt = &s
	}
	return resp
}

// POST /api/budget-exceptions (HOD)
func RequestExceptionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := getUserID(c)
		if err != nil {
			return err
		}

		var body ExceptionRequestBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		var item models.ExpenseItem
		if err := database.DB.First(&item, "id = ?", body.ItemID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Masraf kalemi bulunamadı")
		}

		// aynı kalem için bekleyen talep varken yenisi açılamaz
		var pendingCount int64
		if err := database.DB.Model(&models.BudgetExceptionRequest{}).
			Where("item_id = ? AND resolution = ?", item.ID, models.ExceptionPending).
			Count(&pendingCount).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İstisna talebi oluşturulamadı")
		}
		if pendingCount > 0 {
			return fiber.NewError(fiber.StatusConflict, "Bu kalem için bekleyen bir istisna talebi zaten var")
		}

		var e models.Expense
		if err := database.DB.First(&e, "id = ?", item.ExpenseID).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İstisna talebi oluşturulamadı")
		}

		// karar yetkisi talep anında hedef onaycıya kilitlenir; hedef gerçek
		// bir finans kullanıcısı olmalı
		var target models.User
		if err := database.DB.First(&target, "id = ? AND role = ?", body.ApproverTarget, models.RoleFinance).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "approver_target geçerli bir finans kullanıcısı olmalı")
		}

		itemMonth := int(item.Date.Month())
		var b models.Budget
		if err := database.DB.
			Where("department_id = ? AND category = ? AND year = ? AND month = ?",
				e.DepartmentID, item.Category, item.Date.Year(), itemMonth).
			First(&b).Error; err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "Bu kova için bütçe tanımlı değil")
		}

		exc, err := NewExceptionRequest(item, b.Remaining(), body.Reason, body.ApproverTarget)
		if err != nil {
			if errors.Is(err, ErrMissingReason) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "İstisna talebi oluşturulamadı")
		}

		if err := database.DB.Create(&exc).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İstisna talebi kaydedilemedi")
		}

		var actor models.User
		if err := database.DB.First(&actor, "id = ?", userID).Error; err == nil {
			_ = audit.WriteLog(audit.LogOptions{
				DepartmentID: &e.DepartmentID,
				UserID:       actor.ID,
				UserName:     actor.Name,
				EntityType:   "budget_exception",
				EntityID:     exc.ID,
				Action:       models.AuditActionCreate,
				Description:  fmt.Sprintf("Bütçe istisna talebi: kalem %d, tutar %s", exc.ItemID, exc.RequestedAmount),
				After:        toExceptionResponse(&exc),
			})
		}

		return c.Status(fiber.StatusCreated).JSON(toExceptionResponse(&exc))
	}
}

type ResolveExceptionBody struct {
	Decision string `json:"decision"` // granted | denied
	Comment  string `json:"comment"`
}

// POST /api/budget-exceptions/:id/resolve (finans / super_admin)
func ResolveExceptionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := getUserID(c)
		if err != nil {
			return err
		}

		var exc models.BudgetExceptionRequest
		if err := database.DB.First(&exc, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "İstisna talebi bulunamadı")
		}

		role, _ := c.Locals(auth.CtxUserRoleKey).(models.UserRole)
		if err := AuthorizeResolver(exc, userID, role); err != nil {
			return fiber.NewError(fiber.StatusForbidden, err.Error())
		}

		var body ResolveExceptionBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		before := toExceptionResponse(&exc)

		if err := Resolve(&exc, models.ExceptionResolution(body.Decision), userID, time.Now()); err != nil {
			switch {
			case errors.Is(err, ErrAlreadyResolved):
				return fiber.NewError(fiber.StatusConflict, err.Error())
			case errors.Is(err, ErrInvalidDecision):
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			default:
				return fiber.NewError(fiber.StatusInternalServerError, "İstisna talebi sonuçlandırılamadı")
			}
		}

		if err := database.DB.Save(&exc).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İstisna talebi kaydedilemedi")
		}

		var actor models.User
		if err := database.DB.First(&actor, "id = ?", userID).Error; err == nil {
			action := models.AuditActionApprove
			if exc.Resolution == models.ExceptionDenied {
				action = models.AuditActionReject
			}
			_ = audit.WriteLog(audit.LogOptions{
				UserID:      actor.ID,
				UserName:    actor.Name,
				EntityType:  "budget_exception",
				EntityID:    exc.ID,
				Action:      action,
				Description: fmt.Sprintf("Bütçe istisnası %s: kalem %d (%s)", exc.Resolution, exc.ItemID, body.Comment),
				Before:      before,
				After:       toExceptionResponse(&exc),
			})
		}

		return c.JSON(toExceptionResponse(&exc))
	}
}

// GET /api/budget-exceptions?resolution=pending&item_id=
func ListExceptionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.BudgetExceptionRequest{})

		if v := c.Query("resolution"); v != "" {
			dbq = dbq.Where("resolution = ?", v)
		}
		if v := c.Query("item_id"); v != "" {
			dbq = dbq.Where("item_id = ?", v)
		}

		var excs []models.BudgetExceptionRequest
		if err := dbq.Order("created_at desc").Find(&excs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İstisna talepleri listelenemedi")
		}

		resp := make([]ExceptionResponse, 0, len(excs))
		for i := range excs {
			resp = append(resp, toExceptionResponse(&excs[i]))
		}
		return c.JSON(resp)
	}
}
