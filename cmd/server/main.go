package main

import (
	"log"
	"strings"

	"masraf-backend/internal/admin"
	"masraf-backend/internal/audit"
	"masraf-backend/internal/auth"
	"masraf-backend/internal/budget"
	"masraf-backend/internal/config"
	"masraf-backend/internal/dashboard"
	"masraf-backend/internal/database"
	"masraf-backend/internal/expense"
	"masraf-backend/internal/models"
	"masraf-backend/internal/report"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	database.Init(cfg)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Println("Unexpected error:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	// CORS origins'i virgülle ayrılmış string'den array'e çevir
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-super-admin", auth.RegisterSuperAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// Super admin routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleSuperAdmin))

	// Departman yönetimi
	adminRoutes.Post("/departments", admin.CreateDepartmentHandler())
	adminRoutes.Get("/departments", admin.ListDepartmentsHandler())
	adminRoutes.Get("/departments/:id", admin.GetDepartmentHandler())
	adminRoutes.Put("/departments/:id", admin.UpdateDepartmentHandler())
	adminRoutes.Delete("/departments/:id", admin.DeleteDepartmentHandler())
	adminRoutes.Post("/departments/:id/users", admin.CreateDepartmentUserHandler())
	adminRoutes.Get("/departments/:id/users", admin.ListDepartmentUsersHandler())

	// Masraf talepleri
	protected.Post("/expenses", expense.CreateExpenseHandler(cfg))
	protected.Get("/expenses", expense.ListExpensesHandler())
	protected.Get("/expenses/summary/monthly", expense.MonthlyExpenseSummaryHandler())
	protected.Get("/expenses/:id", expense.GetExpenseHandler())
	protected.Put("/expenses/:id", expense.UpdateExpenseHandler(cfg))
	protected.Delete("/expenses/:id", expense.DeleteExpenseHandler())
	protected.Get("/expenses/:id/comments", expense.ListCommentsHandler())
	protected.Post("/expenses/:id/comments", expense.AddCommentHandler())

	// Onay akışı
	protected.Post("/expenses/:id/submit", expense.SubmitExpenseHandler(cfg))
	protected.Post("/expenses/:id/cancel", expense.CancelExpenseHandler())

	// onay aksiyonları rol tablosuna bağlı: kalem kararları HOD'un, ödeme finansın
	hodOrFinance := auth.RequireRole(models.RoleHOD, models.RoleFinance)
	protected.Post("/expenses/:id/items/:itemId/approve", auth.RequireRole(models.RoleHOD), expense.ApproveItemHandler())
	protected.Post("/expenses/:id/items/:itemId/reject", auth.RequireRole(models.RoleHOD), expense.RejectItemHandler())
	protected.Post("/expenses/:id/approve", hodOrFinance, expense.ApproveExpenseHandler())
	protected.Post("/expenses/:id/reject", hodOrFinance, expense.RejectExpenseHandler())
	protected.Post("/expenses/:id/pay", auth.RequireRole(models.RoleFinance), expense.PayExpenseHandler())

	// Bütçe yönetimi
	financeOnly := auth.RequireRole(models.RoleFinance, models.RoleSuperAdmin)
	protected.Post("/budgets", financeOnly, budget.CreateBudgetHandler())
	protected.Get("/budgets", budget.ListBudgetsHandler())
	protected.Put("/budgets/:id", financeOnly, budget.UpdateBudgetHandler())
	protected.Get("/budgets/evaluate", budget.EvaluateBudgetHandler())

	// Bütçe istisnaları
	protected.Post("/budget-exceptions", auth.RequireRole(models.RoleHOD), budget.RequestExceptionHandler())
	protected.Post("/budget-exceptions/:id/resolve", financeOnly, budget.ResolveExceptionHandler())
	protected.Get("/budget-exceptions", budget.ListExceptionsHandler())

	// Dashboard
	protected.Get("/dashboard/budget-chart", dashboard.BudgetChartHandler())

	// Raporlar
	protected.Get("/reports/expenses/monthly", financeOnly, report.MonthlyExpenseReportHandler())

	// Audit logs
	protected.Get("/audit-logs", audit.ListAuditLogsHandler())

	log.Println("Server çalışıyor port:", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
