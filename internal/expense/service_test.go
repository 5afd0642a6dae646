package expense

import (
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"masraf-backend/internal/approval"
	"masraf-backend/internal/database"
	"masraf-backend/internal/models"
)

// newTestDB her test için yalıtılmış bir in-memory sqlite açar ve global
// bağlantıyı test süresince onunla değiştirir. Global bağlantı paylaşıldığı
// için bu testler paralel koşmaz.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Department{},
		&models.User{},
		&models.Expense{},
		&models.ExpenseItem{},
		&models.Attachment{},
		&models.Budget{},
		&models.BudgetExceptionRequest{},
		&models.Comment{},
		&models.AuditLog{},
	))

	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })
	return db
}

func seedWorkflow(t *testing.T, db *gorm.DB) (models.Department, models.User, models.User) {
	t.Helper()

	dept := models.Department{Name: "Satınalma", Code: "PUR"}
	require.NoError(t, db.Create(&dept).Error)

	employee := models.User{
		DepartmentID: &dept.ID,
		Name:         "Ayşe Demir",
		Email:        "ayse@masraf.local",
		PasswordHash: "x",
		Role:         models.RoleEmployee,
	}
	hod := models.User{
		DepartmentID: &dept.ID,
		Name:         "Murat Kaya",
		Email:        "murat@masraf.local",
		PasswordHash: "x",
		Role:         models.RoleHOD,
	}
	require.NoError(t, db.Create(&employee).Error)
	require.NoError(t, db.Create(&hod).Error)

	return dept, employee, hod
}

// iki kalemli (supplies + meals, TRY) taslak talep
func seedDraftExpense(t *testing.T, db *gorm.DB, dept models.Department, owner models.User) *models.Expense {
	t.Helper()

	day := time.Date(2023, 6, 10, 0, 0, 0, 0, time.UTC)
	e := models.Expense{
		RequestNumber: newRequestNumber(),
		Type:          models.ExpenseTypeReimbursement,
		Status:        models.ExpenseStatusDraft,
		DepartmentID:  dept.ID,
		RequestedBy:   owner.ID,
		Items: []models.ExpenseItem{
			{
				Description:  "Sarf malzemesi",
				Category:     models.CategorySupplies,
				Date:         day,
				Amount:       decimal.NewFromInt(900),
				CurrencyCode: "TRY",
				ExchangeRate: decimal.NewFromInt(1),
				Status:       models.ItemStatusDraft,
			},
			{
				Description:  "Ekip yemeği",
				Category:     models.CategoryMeals,
				Date:         day,
				Amount:       decimal.NewFromInt(400),
				CurrencyCode: "TRY",
				ExchangeRate: decimal.NewFromInt(1),
				Status:       models.ItemStatusDraft,
			},
		},
	}
	require.NoError(t, Recompute(&e, "TRY"))
	require.NoError(t, db.Create(&e).Error)
	return &e
}

// Red'e katlanan bir approve isteğinin tekrarı da no-op başarıdır: katlama
// isteği red'e çevirdiği için idempotency katlama sonucuna göre ölçülür.
func TestCompleteReviewRetryAfterRejectionFold(t *testing.T) {
	db := newTestDB(t)
	dept, employee, hod := seedWorkflow(t, db)

	// onay yolu deftere danışır; onaylanan kalemin kovası tanımlı olmalı
	require.NoError(t, db.Create(&models.Budget{
		DepartmentID: dept.ID,
		Category:     models.CategorySupplies,
		Year:         2023,
		Month:        6,
		Amount:       decimal.NewFromInt(100000),
		Spent:        decimal.Zero,
		Currency:     "TRY",
	}).Error)

	e := seedDraftExpense(t, db, dept, employee)

	_, err := SubmitExpense(e.ID, employee, "TRY")
	require.NoError(t, err)

	_, err = DecideItem(e.ID, e.Items[0].ID, hod, approval.ActionApprove, "uygun")
	require.NoError(t, err)
	_, err = DecideItem(e.ID, e.Items[1].ID, hod, approval.ActionReject, "fiş eksik")
	require.NoError(t, err)

	// tek red her şeyi reddeder: approve isteği red'e katlanır
	res, err := CompleteReview(e.ID, hod, approval.ActionApprove, "kalem kararlarına göre")
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseStatusRejectedByHOD, res.Status)

	// zaman aşımı sonrası aynı onaycının aynı isteği: hata değil, no-op
	res, err = CompleteReview(e.ID, hod, approval.ActionApprove, "kalem kararlarına göre")
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseStatusRejectedByHOD, res.Status)

	var reloaded models.Expense
	require.NoError(t, db.First(&reloaded, "id = ?", e.ID).Error)
	assert.Equal(t, models.ExpenseStatusRejectedByHOD, reloaded.Status)
}

// İyimser kilit: aynı versiyondan yazan ikinci taraf sessizce üzerine yazmaz,
// ErrConcurrentModification alır ve ilk yazma ayakta kalır.
func TestOptimisticLockLoserGetsConflict(t *testing.T) {
	db := newTestDB(t)
	dept, employee, _ := seedWorkflow(t, db)
	e := seedDraftExpense(t, db, dept, employee)

	fresh, err := loadExpenseTx(db, e.ID)
	require.NoError(t, err)
	stale := *fresh

	require.NoError(t, bumpExpense(db, fresh, map[string]any{"description": "ilk yazan"}))

	err = bumpExpense(db, &stale, map[string]any{"description": "geç kalan"})
	assert.ErrorIs(t, err, ErrConcurrentModification)

	var reloaded models.Expense
	require.NoError(t, db.First(&reloaded, "id = ?", e.ID).Error)
	assert.Equal(t, "ilk yazan", reloaded.Description)
	assert.Equal(t, 1, reloaded.Version)
}

func TestOptimisticLockBudgetConflict(t *testing.T) {
	db := newTestDB(t)
	dept, _, _ := seedWorkflow(t, db)

	b := models.Budget{
		DepartmentID: dept.ID,
		Category:     models.CategoryTravel,
		Year:         2023,
		Month:        6,
		Amount:       decimal.NewFromInt(5000),
		Spent:        decimal.Zero,
		Currency:     "TRY",
	}
	require.NoError(t, db.Create(&b).Error)

	fresh := b
	stale := b

	require.NoError(t, bumpBudget(db, &fresh, map[string]any{"spent": decimal.NewFromInt(4800)}))

	err := bumpBudget(db, &stale, map[string]any{"spent": decimal.NewFromInt(100)})
	assert.ErrorIs(t, err, ErrConcurrentModification)

	var reloaded models.Budget
	require.NoError(t, db.First(&reloaded, "id = ?", b.ID).Error)
	assert.True(t, reloaded.Spent.Equal(decimal.NewFromInt(4800)))
	assert.Equal(t, 1, reloaded.Version)
}
