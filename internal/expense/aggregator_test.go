package expense

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"masraf-backend/internal/currency"
	"masraf-backend/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func item(cat models.ExpenseCategory, date, amount, rate, cur string) models.ExpenseItem {
	return models.ExpenseItem{
		Category:     cat,
		Date:         day(date),
		Amount:       dec(amount),
		ExchangeRate: dec(rate),
		CurrencyCode: cur,
	}
}

func TestRecompute_TotalsFromItems(t *testing.T) {
	t.Parallel()

	e := models.Expense{Items: []models.ExpenseItem{
		item(models.CategoryTravel, "2023-06-10", "4800", "1", "KES"),
		item(models.CategoryTraining, "2023-06-09", "100", "130.5", "USD"),
	}}

	require.NoError(t, Recompute(&e, "KES"))

	assert.True(t, dec("4800.00").Equal(e.Items[0].FinalAmount))
	assert.True(t, dec("13050.00").Equal(e.Items[1].FinalAmount))
	assert.True(t, dec("17850.00").Equal(e.TotalAmount))

	// toplam her zaman kalemlerden yeniden türetilir, bayat değer kalmaz
	sum := decimal.Zero
	for _, it := range e.Items {
		sum = sum.Add(it.FinalAmount)
	}
	assert.True(t, sum.Equal(e.TotalAmount))
}

func TestRecompute_DuplicateCategoryDate(t *testing.T) {
	t.Parallel()

	e := models.Expense{Items: []models.ExpenseItem{
		item(models.CategoryTravel, "2023-06-10", "100", "1", "KES"),
		item(models.CategoryTravel, "2023-06-10", "250", "1", "KES"),
	}}

	assert.ErrorIs(t, Recompute(&e, "KES"), ErrDuplicateLineItem)
}

func TestRecompute_SameCategoryDifferentDateAllowed(t *testing.T) {
	t.Parallel()

	e := models.Expense{Items: []models.ExpenseItem{
		item(models.CategoryTravel, "2023-06-10", "100", "1", "KES"),
		item(models.CategoryTravel, "2023-06-11", "250", "1", "KES"),
	}}

	require.NoError(t, Recompute(&e, "KES"))
	assert.True(t, dec("350.00").Equal(e.TotalAmount))
}

func TestRecompute_Errors(t *testing.T) {
	t.Parallel()

	t.Run("no items", func(t *testing.T) {
		t.Parallel()

		e := models.Expense{}
		assert.ErrorIs(t, Recompute(&e, "KES"), ErrNoItems)
	})

	t.Run("unknown category", func(t *testing.T) {
		t.Parallel()

		e := models.Expense{Items: []models.ExpenseItem{
			item("yakit", "2023-06-10", "100", "1", "KES"),
		}}
		assert.ErrorIs(t, Recompute(&e, "KES"), ErrUnknownCategory)
	})

	t.Run("base currency must carry unit rate", func(t *testing.T) {
		t.Parallel()

		e := models.Expense{Items: []models.ExpenseItem{
			item(models.CategoryMeals, "2023-06-10", "100", "1.05", "KES"),
		}}
		assert.ErrorIs(t, Recompute(&e, "KES"), ErrBaseCurrencyRate)
	})

	t.Run("invalid rate propagates", func(t *testing.T) {
		t.Parallel()

		e := models.Expense{Items: []models.ExpenseItem{
			item(models.CategoryMeals, "2023-06-10", "100", "0", "USD"),
		}}
		assert.ErrorIs(t, Recompute(&e, "KES"), currency.ErrInvalidMonetaryInput)
	})
}
