package budget

import (
	"sort"

	"github.com/shopspring/decimal"

	"masraf-backend/internal/models"
)

// Classification: aday tutarın bütçe kovası üzerindeki etkisi
type Classification string

const (
	ClassificationOK         Classification = "ok"
	ClassificationNearLimit  Classification = "near_limit"
	ClassificationOverBudget Classification = "over_budget"
)

// nearLimitRatio sabit politika eşiğidir (tahsisatın %10'u), kullanıcı
// tarafından yapılandırılmaz.
var nearLimitRatio = decimal.New(10, -2)

// Evaluation: tek bir aday tutar için defter değerlendirmesi
type Evaluation struct {
	RemainingAfter decimal.Decimal `json:"remaining_after"`
	Classification Classification  `json:"classification"`
}

// Evaluate aday tutar onaylanırsa kovada kalacak bakiyeyi hesaplar ve
// sınıflandırır. Saf fonksiyon; kova anlık görüntüsü girdi olarak verilir.
//
//	OVER_BUDGET: remainingAfter < 0
//	NEAR_LIMIT:  0 <= remainingAfter < tahsisatın %10'u
//	OK:          diğer her durum
func Evaluate(b models.Budget, candidate decimal.Decimal) Evaluation {
	remainingAfter := b.Remaining().Sub(candidate)

	cls := ClassificationOK
	switch {
	case remainingAfter.Sign() < 0:
		cls = ClassificationOverBudget
	case remainingAfter.LessThan(b.Amount.Mul(nearLimitRatio)):
		cls = ClassificationNearLimit
	}

	return Evaluation{RemainingAfter: remainingAfter, Classification: cls}
}

// Draw: aynı kovadan çeken bir masraf kalemi
type Draw struct {
	ItemID uint
	Amount decimal.Decimal
}

// ItemEvaluation: EvaluateAll çıktısında kalem başına sonuç
type ItemEvaluation struct {
	ItemID     uint
	Evaluation Evaluation
}

// EvaluateAll aynı kovadan çeken kardeş kalemleri artan kalem id sırasıyla
// değerlendirir; her kalem, kendinden önceki kalemlerin etkisi düşülmüş
// bakiyeye karşı sınanır. Böylece bir kalemin kısmi onayı, aynı talepteki
// kardeşinin bütçe etkisinin önüne geçemez.
func EvaluateAll(b models.Budget, draws []Draw) []ItemEvaluation {
	ordered := make([]Draw, len(draws))
	copy(ordered, draws)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ItemID < ordered[j].ItemID })

	results := make([]ItemEvaluation, 0, len(ordered))
	snapshot := b
	for _, d := range ordered {
		ev := Evaluate(snapshot, d.Amount)
		results = append(results, ItemEvaluation{ItemID: d.ItemID, Evaluation: ev})
		snapshot.Spent = snapshot.Spent.Add(d.Amount)
	}
	return results
}

// Commit tüketimi geri alınamaz şekilde deftere işler: Spent artar,
// Remaining türetilmiş olduğu için aynı işlem içinde kendiliğinden tutarlı
// kalır. Yalnızca nihai (istisnası beklemede olmayan) onay yolunda, durum
// geçişiyle aynı veritabanı işlemi içinde çağrılır.
func Commit(b *models.Budget, amount decimal.Decimal) {
	b.Spent = b.Spent.Add(amount)
}
