package dashboard

import (
	"fmt"

	"masraf-backend/internal/auth"
	"masraf-backend/internal/budget"
	"masraf-backend/internal/database"
	"masraf-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type BudgetChartPoint struct {
	Category       string `json:"category"`
	Allocated      string `json:"allocated"`
	Spent          string `json:"spent"`
	Remaining      string `json:"remaining"`
	Classification string `json:"classification"` // kova tamamen tüketilirse değil, mevcut durum
}

type BudgetChartGrandTotals struct {
	Allocated string `json:"allocated"`
	Spent     string `json:"spent"`
	Remaining string `json:"remaining"`
}

type BudgetChartResponse struct {
	DepartmentID uint                   `json:"department_id"`
	Year         int                    `json:"year"`
	Month        int                    `json:"month"`
	Points       []BudgetChartPoint     `json:"points"`
	GrandTotals  BudgetChartGrandTotals `json:"grand_totals"`
}

// context'ten departman id çıkar (hod/employee için JWT, finans ve super_admin
// için ?department_id=1 zorunlu)
func getDepartmentIDFromContext(c *fiber.Ctx) (uint, error) {
	roleVal := c.Locals(auth.CtxUserRoleKey)
	role, ok := roleVal.(models.UserRole)
	if !ok {
		return 0, fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
	}

	if role == models.RoleHOD || role == models.RoleEmployee {
		deptIDVal := c.Locals(auth.CtxDepartmentIDKey)
		deptIDPtr, ok := deptIDVal.(*uint)
		if !ok || deptIDPtr == nil {
			return 0, fiber.NewError(fiber.StatusForbidden, "Departman bilgisi bulunamadı")
		}
		return *deptIDPtr, nil
	}

	didStr := c.Query("department_id")
	if didStr == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "department_id zorunlu")
	}
	var did uint
	if _, err := fmt.Sscan(didStr, &did); err != nil || did == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "department_id geçersiz")
	}
	return did, nil
}

// GET /api/dashboard/budget-chart?year=2023&month=6&department_id=1
// Kategori bazında tahsisat / tüketim / kalan; sınıflandırma mevcut durum
// üzerinden (aday tutar 0) hesaplanır.
func BudgetChartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		departmentID, err := getDepartmentIDFromContext(c)
		if err != nil {
			return err
		}

		var year, month int
		if _, err := fmt.Sscan(c.Query("year"), &year); err != nil || year < 2000 {
			return fiber.NewError(fiber.StatusBadRequest, "year geçersiz")
		}
		if _, err := fmt.Sscan(c.Query("month"), &month); err != nil || month < 1 || month > 12 {
			return fiber.NewError(fiber.StatusBadRequest, "month geçersiz")
		}

		var buckets []models.Budget
		if err := database.DB.
			Where("department_id = ? AND year = ? AND month = ?", departmentID, year, month).
			Order("category asc").
			Find(&buckets).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Veri toplanırken hata oluştu")
		}

		points := make([]BudgetChartPoint, 0, len(buckets))
		grandAllocated := decimal.Zero
		grandSpent := decimal.Zero

		for _, b := range buckets {
			ev := budget.Evaluate(b, decimal.Zero)
			points = append(points, BudgetChartPoint{
				Category:       string(b.Category),
				Allocated:      b.Amount.StringFixed(2),
				Spent:          b.Spent.StringFixed(2),
				Remaining:      b.Remaining().StringFixed(2),
				Classification: string(ev.Classification),
			})

			grandAllocated = grandAllocated.Add(b.Amount)
			grandSpent = grandSpent.Add(b.Spent)
		}

		resp := BudgetChartResponse{
			DepartmentID: departmentID,
			Year:         year,
			Month:        month,
			Points:       points,
			GrandTotals: BudgetChartGrandTotals{
				Allocated: grandAllocated.StringFixed(2),
				Spent:     grandSpent.StringFixed(2),
				Remaining: grandAllocated.Sub(grandSpent).StringFixed(2),
			},
		}

		return c.JSON(resp)
	}
}
