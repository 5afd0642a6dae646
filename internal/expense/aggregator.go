package expense

import (
	"errors"

	"github.com/shopspring/decimal"

	"masraf-backend/internal/currency"
	"masraf-backend/internal/models"
)

var (
	// ErrDuplicateLineItem: aynı masraf içinde aynı (kategori, tarih) çifti iki kez
	ErrDuplicateLineItem = errors.New("aynı kategori ve tarihli mükerrer masraf kalemi")

	// ErrUnknownCategory: kategori kapalı kümenin dışında
	ErrUnknownCategory = errors.New("bilinmeyen masraf kategorisi")

	// ErrBaseCurrencyRate: baz para birimindeki kalemin kuru 1 olmalı
	ErrBaseCurrencyRate = errors.New("baz para birimindeki kalem için kur 1 olmalı")

	// ErrNoItems: masrafın en az bir kalemi olmalı
	ErrNoItems = errors.New("masrafın en az bir kalemi olmalı")
)

var one = decimal.NewFromInt(1)

type dupKey struct {
	category models.ExpenseCategory
	date     string
}

// Recompute her kalemin FinalAmount'unu kur üzerinden yeniden hesaplar,
// mükerrer (kategori, tarih) çiftlerini yakalar ve masraf toplamını kalem
// toplamlarından türetir. FinalAmount ve TotalAmount hiçbir zaman girdilerinden
// bağımsız saklanmaz; her yazma yolu buradan geçer.
func Recompute(e *models.Expense, baseCurrency string) error {
	if len(e.Items) == 0 {
		return ErrNoItems
	}

	seen := make(map[dupKey]struct{}, len(e.Items))
	total := decimal.Zero

	for i := range e.Items {
		it := &e.Items[i]

		if !models.ValidCategory(it.Category) {
			return ErrUnknownCategory
		}

		// baz para birimi özel durum değildir; kural burada, normalizer'da değil
		if it.CurrencyCode == baseCurrency && !it.ExchangeRate.Equal(one) {
			return ErrBaseCurrencyRate
		}

		final, err := currency.Normalize(it.Amount, it.ExchangeRate)
		if err != nil {
			return err
		}
		it.FinalAmount = final

		key := dupKey{category: it.Category, date: it.Date.Format("2006-01-02")}
		if _, dup := seen[key]; dup {
			return ErrDuplicateLineItem
		}
		seen[key] = struct{}{}

		total = total.Add(final)
	}

	e.TotalAmount = total
	return nil
}
