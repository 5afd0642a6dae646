package report

import (
	"fmt"
	"time"

	"masraf-backend/internal/database"
	"masraf-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// GET /api/reports/expenses/monthly?year=2023&month=6&department_id=1
// Ödemesi yapılmış masrafların kalem dökümünü .xlsx olarak indirir.
func MonthlyExpenseReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var departmentID uint
		if _, err := fmt.Sscan(c.Query("department_id"), &departmentID); err != nil || departmentID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "department_id zorunlu")
		}

		var year, month int
		if _, err := fmt.Sscan(c.Query("year"), &year); err != nil || year < 2000 {
			return fiber.NewError(fiber.StatusBadRequest, "year geçersiz")
		}
		if _, err := fmt.Sscan(c.Query("month"), &month); err != nil || month < 1 || month > 12 {
			return fiber.NewError(fiber.StatusBadRequest, "month geçersiz")
		}

		var dept models.Department
		if err := database.DB.First(&dept, "id = ?", departmentID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Departman bulunamadı")
		}

		loc := time.Now().Location()
		firstDay := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
		nextMonth := firstDay.AddDate(0, 1, 0)

		type row struct {
			RequestNumber string          `gorm:"column:request_number"`
			ExpenseType   string          `gorm:"column:type"`
			Category      string          `gorm:"column:category"`
			Description   string          `gorm:"column:description"`
			Date          time.Time       `gorm:"column:date"`
			Amount        decimal.Decimal `gorm:"column:amount"`
			CurrencyCode  string          `gorm:"column:currency_code"`
			ExchangeRate  decimal.Decimal `gorm:"column:exchange_rate"`
			FinalAmount   decimal.Decimal `gorm:"column:final_amount"`
		}
		var rows []row

		if err := database.DB.
			Model(&models.ExpenseItem{}).
			Select(`expenses.request_number, expenses.type, expense_items.category,
				expense_items.description, expense_items.date, expense_items.amount,
				expense_items.currency_code, expense_items.exchange_rate, expense_items.final_amount`).
			Joins("JOIN expenses ON expenses.id = expense_items.expense_id").
			Where("expenses.department_id = ? AND expenses.status = ? AND expense_items.date >= ? AND expense_items.date < ?",
				departmentID, models.ExpenseStatusPaid, firstDay, nextMonth).
			Order("expense_items.date asc, expenses.request_number asc").
			Scan(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Rapor verisi toplanamadı")
		}

		f := excelize.NewFile()
		defer f.Close()

		sheet := "Masraflar"
		f.SetSheetName(f.GetSheetName(0), sheet)

		headers := []string{"Talep No", "Tip", "Kategori", "Açıklama", "Tarih", "Tutar", "Para Birimi", "Kur", "Baz Tutar"}
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			if err := f.SetCellValue(sheet, cell, h); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Rapor oluşturulamadı")
			}
		}

		grand := decimal.Zero
		for i, r := range rows {
			values := []any{
				r.RequestNumber,
				r.ExpenseType,
				r.Category,
				r.Description,
				r.Date.Format("2006-01-02"),
				r.Amount.StringFixed(2),
				r.CurrencyCode,
				r.ExchangeRate.String(),
				r.FinalAmount.StringFixed(2),
			}
			for j, v := range values {
				cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return fiber.NewError(fiber.StatusInternalServerError, "Rapor oluşturulamadı")
				}
			}
			grand = grand.Add(r.FinalAmount)
		}

		// genel toplam satırı
		totalRow := len(rows) + 2
		labelCell, _ := excelize.CoordinatesToCellName(8, totalRow)
		valueCell, _ := excelize.CoordinatesToCellName(9, totalRow)
		_ = f.SetCellValue(sheet, labelCell, "TOPLAM")
		_ = f.SetCellValue(sheet, valueCell, grand.StringFixed(2))

		buf, err := f.WriteToBuffer()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Rapor dosyası yazılamadı")
		}

		filename := fmt.Sprintf("masraf-raporu-%s-%04d-%02d.xlsx", dept.Code, year, month)
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))

		return c.Send(buf.Bytes())
	}
}
