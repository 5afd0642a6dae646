package currency

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidMonetaryInput: kur <= 0 veya tutar < 0
var ErrInvalidMonetaryInput = errors.New("geçersiz parasal girdi: kur > 0 ve tutar >= 0 olmalı")

// baseScale: baz para biriminin ondalık hassasiyeti (kuruş/cent)
const baseScale = 2

// Normalize girilen tutarı ve kuru baz para birimi tutarına çevirir.
// Yan etkisiz, saf fonksiyon: finalAmount = amount * rate, banker yuvarlaması
// (round-half-even) ile 2 haneye yuvarlanır; çok sayıda kalem üzerinde
// sistematik sapma oluşmaz.
func Normalize(amount, rate decimal.Decimal) (decimal.Decimal, error) {
	if rate.Sign() <= 0 || amount.Sign() < 0 {
		return decimal.Zero, ErrInvalidMonetaryInput
	}
	return amount.Mul(rate).RoundBank(baseScale), nil
}
