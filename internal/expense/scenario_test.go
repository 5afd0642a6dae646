package expense

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"masraf-backend/internal/approval"
	"masraf-backend/internal/budget"
	"masraf-backend/internal/models"
)

// Uçtan uca akış: çok para birimli talep oluşturulur, HOD kalemleri onaylar,
// bütçe aşımı istisna ile çözülür, finans onaylar ve ödeme defteri işler.
func TestExpenseLifecycleEndToEnd(t *testing.T) {
	t.Parallel()

	day := time.Date(2023, 6, 10, 0, 0, 0, 0, time.UTC)

	e := models.Expense{
		Status: models.ExpenseStatusDraft,
		Type:   models.ExpenseTypeReimbursement,
		Items: []models.ExpenseItem{
			{
				ID:           1,
				Category:     models.CategoryTravel,
				Date:         day,
				Amount:       decimal.NewFromInt(4800),
				CurrencyCode: "KES",
				ExchangeRate: decimal.NewFromInt(1),
				Status:       models.ItemStatusDraft,
			},
			{
				ID:           2,
				Category:     models.CategoryTraining,
				Date:         day,
				Amount:       decimal.NewFromInt(100),
				CurrencyCode: "USD",
				ExchangeRate: decimal.RequireFromString("130.5"),
				Status:       models.ItemStatusDraft,
			},
		},
	}

	// toplamlar kalemlerden türetilir
	require.NoError(t, Recompute(&e, "KES"))
	assert.Equal(t, "4800.00", e.Items[0].FinalAmount.StringFixed(2))
	assert.Equal(t, "13050.00", e.Items[1].FinalAmount.StringFixed(2))
	assert.Equal(t, "17850.00", e.TotalAmount.StringFixed(2))

	// gönderim
	next, err := approval.NextExpenseStatus(e.Status, approval.ActionSubmit, models.RoleEmployee)
	require.NoError(t, err)
	e.Status = next
	for i := range e.Items {
		e.Items[i].Status = models.ItemStatusSubmitted
	}

	// bütçe kovaları: seyahat rahat, eğitim dar
	travel := models.Budget{
		Category: models.CategoryTravel,
		Amount:   decimal.NewFromInt(5000),
		Spent:    decimal.Zero,
	}
	training := models.Budget{
		Category: models.CategoryTraining,
		Amount:   decimal.NewFromInt(10000),
		Spent:    decimal.Zero,
	}

	// HOD seyahat kalemini onaylar: bakiye yeter ama limite yaklaşır
	evTravel := budget.Evaluate(travel, e.Items[0].FinalAmount)
	assert.Equal(t, "200.00", evTravel.RemainingAfter.StringFixed(2))
	assert.Equal(t, budget.ClassificationNearLimit, evTravel.Classification)

	st, err := approval.NextItemStatus(e.Items[0].Status, approval.ActionApprove, models.RoleHOD)
	require.NoError(t, err)
	e.Items[0].Status = st

	// eğitim kalemi bütçeyi aşar: geçiş istisna çözümüne kadar durur
	evTraining := budget.Evaluate(training, e.Items[1].FinalAmount)
	assert.Equal(t, "-3050.00", evTraining.RemainingAfter.StringFixed(2))
	assert.Equal(t, budget.ClassificationOverBudget, evTraining.Classification)
	assert.Equal(t, models.ItemStatusSubmitted, e.Items[1].Status)

	// HOD istisna talep eder, finans onaylar
	exc, err := budget.NewExceptionRequest(e.Items[1], training.Remaining(), "Zorunlu sertifikasyon eğitimi", 42)
	require.NoError(t, err)
	require.NoError(t, budget.Resolve(&exc, models.ExceptionGranted, 42, day))

	granted, err := budget.MatchGranted([]models.BudgetExceptionRequest{exc}, e.Items[1])
	require.NoError(t, err)
	require.True(t, granted)

	st, err = approval.NextItemStatus(e.Items[1].Status, approval.ActionApprove, models.RoleHOD)
	require.NoError(t, err)
	e.Items[1].Status = st

	// tüm kalemler sonuçlandı, HOD kararı katlanır
	action, err := approval.ResolveExpenseAction(e.Items, approval.ActionApprove)
	require.NoError(t, err)
	require.Equal(t, approval.ActionApprove, action)

	next, err = approval.NextExpenseStatus(e.Status, action, models.RoleHOD)
	require.NoError(t, err)
	e.Status = next
	assert.Equal(t, models.ExpenseStatusApprovedByHOD, e.Status)

	// finans onayı: bekleyen istisna yok
	require.False(t, budget.HasPending([]models.BudgetExceptionRequest{exc}))

	next, err = approval.NextExpenseStatus(e.Status, approval.ActionApprove, models.RoleFinance)
	require.NoError(t, err)
	e.Status = next
	assert.Equal(t, models.ExpenseStatusApprovedByFinance, e.Status)

	// ödeme: tüketim deftere işlenir, Remaining türetilmiş kalır
	next, err = approval.NextExpenseStatus(e.Status, approval.ActionPay, models.RoleFinance)
	require.NoError(t, err)

	budget.Commit(&travel, e.Items[0].FinalAmount)
	budget.Commit(&training, e.Items[1].FinalAmount)
	e.Status = next

	assert.Equal(t, models.ExpenseStatusPaid, e.Status)
	assert.Equal(t, "200.00", travel.Remaining().StringFixed(2))
	assert.Equal(t, "-3050.00", training.Remaining().StringFixed(2))
	assert.True(t, e.Status.Terminal())
}

// Red baskınlığı: tek kalem reddi onaycının approve isteğini red'e çevirir ve
// reddedilen kalemin bütçeye hiçbir etkisi olmaz.
func TestExpenseLifecycleRejectionDominates(t *testing.T) {
	t.Parallel()

	day := time.Date(2023, 7, 3, 0, 0, 0, 0, time.UTC)

	e := models.Expense{
		Status: models.ExpenseStatusDraft,
		Items: []models.ExpenseItem{
			{
				ID:           1,
				Category:     models.CategorySupplies,
				Date:         day,
				Amount:       decimal.NewFromInt(900),
				CurrencyCode: "TRY",
				ExchangeRate: decimal.NewFromInt(1),
				Status:       models.ItemStatusDraft,
			},
			{
				ID:           2,
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

	next, err := approval.NextExpenseStatus(e.Status, approval.ActionSubmit, models.RoleEmployee)
	require.NoError(t, err)
	e.Status = next
	for i := range e.Items {
		e.Items[i].Status = models.ItemStatusSubmitted
	}

	supplies := models.Budget{
		Category: models.CategorySupplies,
		Amount:   decimal.NewFromInt(10000),
		Spent:    decimal.Zero,
	}

	st, err := approval.NextItemStatus(e.Items[0].Status, approval.ActionApprove, models.RoleHOD)
	require.NoError(t, err)
	e.Items[0].Status = st

	st, err = approval.NextItemStatus(e.Items[1].Status, approval.ActionReject, models.RoleHOD)
	require.NoError(t, err)
	e.Items[1].Status = st

	action, err := approval.ResolveExpenseAction(e.Items, approval.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, approval.ActionReject, action)

	next, err = approval.NextExpenseStatus(e.Status, action, models.RoleHOD)
	require.NoError(t, err)
	e.Status = next
	assert.Equal(t, models.ExpenseStatusRejectedByHOD, e.Status)
	assert.True(t, e.Status.Terminal())

	// reddedilen talep deftere hiçbir tüketim yazmaz
	assert.Equal(t, "10000.00", supplies.Remaining().StringFixed(2))
}
