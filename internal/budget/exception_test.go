package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"masraf-backend/internal/models"
)

func trainingItem(id uint, finalAmount string) models.ExpenseItem {
	return models.ExpenseItem{
		ID:          id,
		Category:    models.CategoryTraining,
		FinalAmount: dec(finalAmount),
		Status:      models.ItemStatusSubmitted,
	}
}

func TestNewExceptionRequest(t *testing.T) {
	t.Parallel()

	item := trainingItem(7, "13050.00")

	exc, err := NewExceptionRequest(item, dec("10000"), "  eğitim bütçesi dönem sonunda revize edilecek ", 42)
	require.NoError(t, err)

	assert.Equal(t, uint(7), exc.ItemID)
	assert.Equal(t, models.CategoryTraining, exc.Category)
	assert.True(t, dec("10000").Equal(exc.CurrentBudget))
	assert.True(t, dec("13050.00").Equal(exc.RequestedAmount))
	assert.Equal(t, "eğitim bütçesi dönem sonunda revize edilecek", exc.Reason)
	assert.Equal(t, uint(42), exc.ApproverTarget)
	assert.Equal(t, models.ExceptionPending, exc.Resolution)
}

func TestNewExceptionRequest_MissingReason(t *testing.T) {
	t.Parallel()

	_, err := NewExceptionRequest(trainingItem(1, "100"), dec("50"), "   ", 42)
	assert.ErrorIs(t, err, ErrMissingReason)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("grant", func(t *testing.T) {
		t.Parallel()

		exc := models.BudgetExceptionRequest{Resolution: models.ExceptionPending}
		require.NoError(t, Resolve(&exc, models.ExceptionGranted, 9, now))
		assert.Equal(t, models.ExceptionGranted, exc.Resolution)
		require.NotNil(t, exc.ResolvedBy)
		assert.Equal(t, uint(9), *exc.ResolvedBy)
		require.NotNil(t, exc.ResolvedAt)
	})

	t.Run("deny", func(t *testing.T) {
		t.Parallel()

		exc := models.BudgetExceptionRequest{Resolution: models.ExceptionPending}
		require.NoError(t, Resolve(&exc, models.ExceptionDenied, 9, now))
		assert.Equal(t, models.ExceptionDenied, exc.Resolution)
	})

	t.Run("already resolved", func(t *testing.T) {
		t.Parallel()

		exc := models.BudgetExceptionRequest{Resolution: models.ExceptionGranted}
		assert.ErrorIs(t, Resolve(&exc, models.ExceptionDenied, 9, now), ErrAlreadyResolved)
	})

	t.Run("invalid decision", func(t *testing.T) {
		t.Parallel()

		exc := models.BudgetExceptionRequest{Resolution: models.ExceptionPending}
		assert.ErrorIs(t, Resolve(&exc, models.ExceptionPending, 9, now), ErrInvalidDecision)
	})
}

func TestAuthorizeResolver(t *testing.T) {
	t.Parallel()

	exc := models.BudgetExceptionRequest{ApproverTarget: 42}

	t.Run("designated approver", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, AuthorizeResolver(exc, 42, models.RoleFinance))
	})

	t.Run("other finance user blocked", func(t *testing.T) {
		t.Parallel()

		assert.ErrorIs(t, AuthorizeResolver(exc, 99, models.RoleFinance), ErrNotExceptionApprover)
	})

	t.Run("super admin overrides", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, AuthorizeResolver(exc, 99, models.RoleSuperAdmin))
	})
}

func TestHasPending(t *testing.T) {
	t.Parallel()

	assert.False(t, HasPending(nil))
	assert.False(t, HasPending([]models.BudgetExceptionRequest{
		{Resolution: models.ExceptionGranted},
		{Resolution: models.ExceptionDenied},
	}))
	assert.True(t, HasPending([]models.BudgetExceptionRequest{
		{Resolution: models.ExceptionDenied},
		{Resolution: models.ExceptionPending},
	}))
}

func TestMatchGranted(t *testing.T) {
	t.Parallel()

	item := trainingItem(7, "1200.00")

	t.Run("granted with matching amount", func(t *testing.T) {
		t.Parallel()

		ok, err := MatchGranted([]models.BudgetExceptionRequest{
			{ItemID: 7, Resolution: models.ExceptionGranted, RequestedAmount: dec("1200")},
		}, item)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("no exception for item", func(t *testing.T) {
		t.Parallel()

		ok, err := MatchGranted([]models.BudgetExceptionRequest{
			{ItemID: 8, Resolution: models.ExceptionGranted, RequestedAmount: dec("1200")},
		}, item)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("pending does not authorize", func(t *testing.T) {
		t.Parallel()

		ok, err := MatchGranted([]models.BudgetExceptionRequest{
			{ItemID: 7, Resolution: models.ExceptionPending, RequestedAmount: dec("1200")},
		}, item)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	// 1200 için verilen istisna, kalem 1300'e çıkarılırsa geçersizleşir
	t.Run("amount drift invalidates grant", func(t *testing.T) {
		t.Parallel()

		edited := trainingItem(7, "1300.00")
		ok, err := MatchGranted([]models.BudgetExceptionRequest{
			{ItemID: 7, Resolution: models.ExceptionGranted, RequestedAmount: dec("1200")},
		}, edited)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrStaleException)
	})
}
