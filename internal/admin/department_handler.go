package admin

import (
	"strings"

	"masraf-backend/internal/database"
	"masraf-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type DepartmentResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	CreatedAt string `json:"created_at"`
}

type CreateDepartmentRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type UpdateDepartmentRequest struct {
	Name *string `json:"name"`
	Code *string `json:"code"`
}

type CreateDepartmentUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"` // employee | hod | finance
}

type DepartmentUserResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	DepartmentID *uint  `json:"department_id"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func toDepartmentResponse(d *models.Department) DepartmentResponse {
	return DepartmentResponse{
		ID:        d.ID,
		Name:      d.Name,
		Code:      d.Code,
		CreatedAt: d.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// ----------------------------------------
// DEPARTMAN CRUD
// ----------------------------------------

func CreateDepartmentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateDepartmentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Departman adı boş olamaz")
		}

		dept := models.Department{
			Name: body.Name,
			Code: strings.ToUpper(strings.TrimSpace(body.Code)),
		}

		if err := database.DB.Create(&dept).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Departman oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(toDepartmentResponse(&dept))
	}
}

func ListDepartmentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {

		var depts []models.Department
		if err := database.DB.Find(&depts).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Departmanlar listelenemedi")
		}

		res := make([]DepartmentResponse, 0, len(depts))
		for i := range depts {
			res = append(res, toDepartmentResponse(&depts[i]))
		}

		return c.JSON(res)
	}
}

func GetDepartmentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var dept models.Department
		if err := database.DB.First(&dept, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Departman bulunamadı")
		}

		return c.JSON(toDepartmentResponse(&dept))
	}
}

func UpdateDepartmentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var dept models.Department
		if err := database.DB.First(&dept, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Departman bulunamadı")
		}

		var body UpdateDepartmentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Departman adı boş olamaz")
			}
			dept.Name = name
		}

		if body.Code != nil {
			dept.Code = strings.ToUpper(strings.TrimSpace(*body.Code))
		}

		if err := database.DB.Save(&dept).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Departman güncellenemedi")
		}

		return c.JSON(toDepartmentResponse(&dept))
	}
}

func DeleteDepartmentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {

		id := c.Params("id")

		// bağlı kullanıcısı veya masrafı olan departman silinemez
		var userCount int64
		if err := database.DB.Model(&models.User{}).Where("department_id = ?", id).Count(&userCount).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Departman silinemedi")
		}
		var expenseCount int64
		if err := database.DB.Model(&models.Expense{}).Where("department_id = ?", id).Count(&expenseCount).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Departman silinemedi")
		}
		if userCount > 0 || expenseCount > 0 {
			return fiber.NewError(fiber.StatusConflict, "Kullanıcısı veya masraf kaydı olan departman silinemez")
		}

		if err := database.DB.Delete(&models.Department{}, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Departman silinemedi")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ----------------------------------------
// DEPARTMAN KULLANICISI OLUŞTURMA
// POST /api/admin/departments/:id/users
// ----------------------------------------

func CreateDepartmentUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {

		deptID := c.Params("id")

		// Departman kontrolü
		var dept models.Department
		if err := database.DB.First(&dept, "id = ?", deptID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Departman bulunamadı")
		}

		var body CreateDepartmentUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		body.Email = strings.ToLower(strings.TrimSpace(body.Email))
		body.Name = strings.TrimSpace(body.Name)

		if body.Name == "" || body.Email == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "İsim, email ve şifre zorunlu")
		}

		role := models.UserRole(strings.ToLower(strings.TrimSpace(body.Role)))
		switch role {
		case models.RoleEmployee, models.RoleHOD, models.RoleFinance:
		default:
			return fiber.NewError(fiber.StatusBadRequest, "Rol employee, hod veya finance olmalı")
		}

		// Email kontrolü
		var exist models.User
		if err := database.DB.Where("email = ?", body.Email).First(&exist).Error; err == nil {
			return fiber.NewError(fiber.StatusBadRequest, "Bu email zaten kayıtlı")
		}

		hash, _ := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)

		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         role,
			DepartmentID: &dept.ID,
		}

		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı oluşturulamadı")
		}

		// NOT: Şifre sadece oluşturma sırasında bir kez döndürülür (güvenlik)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":            user.ID,
			"name":          user.Name,
			"email":         user.Email,
			"role":          user.Role,
			"department_id": user.DepartmentID,
			"password":      body.Password, // Sadece oluşturma sırasında (bir kez)
		})
	}
}

// ----------------------------------------
// DEPARTMAN KULLANICILARINI LİSTELE
// GET /api/admin/departments/:id/users
// ----------------------------------------

func ListDepartmentUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		deptID := c.Params("id")

		var users []models.User
		if err := database.DB.
			Where("department_id = ?", deptID).
			Order("created_at DESC").
			Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcılar listelenemedi")
		}

		res := make([]DepartmentUserResponse, 0, len(users))
		for _, u := range users {
			res = append(res, DepartmentUserResponse{
				ID:           u.ID,
				Name:         u.Name,
				Email:        u.Email,
				Role:         string(u.Role),
				DepartmentID: u.DepartmentID,
				CreatedAt:    u.CreatedAt.Format("2006-01-02 15:04:05"),
				UpdatedAt:    u.UpdatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		return c.JSON(res)
	}
}
