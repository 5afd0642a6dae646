package audit

import (
	"fmt"

	"masraf-backend/internal/auth"
	"masraf-backend/internal/database"
	"masraf-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type AuditLogResponse struct {
	ID           uint               `json:"id"`
	CreatedAt    string             `json:"created_at"`
	DepartmentID *uint              `json:"department_id"`
	UserID       uint               `json:"user_id"`
	UserName     string             `json:"user_name"`
	EntityType   string             `json:"entity_type"`
	EntityID     uint               `json:"entity_id"`
	Action       models.AuditAction `json:"action"`
	Description  string             `json:"description"`
}

// GET /api/audit-logs?entity_type=expense&entity_id=1&department_id=1
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		roleVal := c.Locals(auth.CtxUserRoleKey)
		role, ok := roleVal.(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
		}

		// Departman filtresi: finans ve super_admin tüm departmanları görebilir
		var departmentID *uint
		if role == models.RoleFinance || role == models.RoleSuperAdmin {
			didStr := c.Query("department_id")
			if didStr != "" {
				var did uint
				if _, err := fmt.Sscan(didStr, &did); err == nil && did > 0 {
					departmentID = &did
				}
			}
		} else {
			dVal := c.Locals(auth.CtxDepartmentIDKey)
			dPtr, ok := dVal.(*uint)
			if !ok || dPtr == nil {
				return fiber.NewError(fiber.StatusForbidden, "Departman bilgisi bulunamadı")
			}
			departmentID = dPtr
		}

		entityType := c.Query("entity_type")
		entityIDStr := c.Query("entity_id")
		userIDStr := c.Query("user_id")

		dbq := database.DB.Model(&models.AuditLog{})

		if departmentID != nil {
			dbq = dbq.Where("department_id = ?", *departmentID)
		}

		if userIDStr != "" {
			var uid uint
			if _, err := fmt.Sscan(userIDStr, &uid); err == nil && uid > 0 {
				dbq = dbq.Where("user_id = ?", uid)
			}
		}

		if entityType != "" {
			dbq = dbq.Where("entity_type = ?", entityType)
		}

		if entityIDStr != "" {
			var eid uint
			if _, err := fmt.Sscan(entityIDStr, &eid); err == nil && eid > 0 {
				dbq = dbq.Where("entity_id = ?", eid)
			}
		}

		var logs []models.AuditLog
		if err := dbq.Order("created_at desc").Limit(200).Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Audit logları listelenemedi")
		}

		res := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			res = append(res, AuditLogResponse{
				ID:           l.ID,
				CreatedAt:    l.CreatedAt.Format("2006-01-02 15:04:05"),
				DepartmentID: l.DepartmentID,
				UserID:       l.UserID,
				UserName:     l.UserName,
				EntityType:   l.EntityType,
				EntityID:     l.EntityID,
				Action:       l.Action,
				Description:  l.Description,
			})
		}

		return c.JSON(res)
	}
}
