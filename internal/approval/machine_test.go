package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"masraf-backend/internal/models"
)

func TestNextExpenseStatus_LegalTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		from   models.ExpenseStatus
		action Action
		role   models.UserRole
		want   models.ExpenseStatus
	}{
		{"submit draft", models.ExpenseStatusDraft, ActionSubmit, models.RoleEmployee, models.ExpenseStatusSubmitted},
		{"hod approve", models.ExpenseStatusSubmitted, ActionApprove, models.RoleHOD, models.ExpenseStatusApprovedByHOD},
		{"hod reject", models.ExpenseStatusSubmitted, ActionReject, models.RoleHOD, models.ExpenseStatusRejectedByHOD},
		{"finance approve", models.ExpenseStatusApprovedByHOD, ActionApprove, models.RoleFinance, models.ExpenseStatusApprovedByFinance},
		{"finance reject", models.ExpenseStatusApprovedByHOD, ActionReject, models.RoleFinance, models.ExpenseStatusRejectedByFinance},
		{"pay", models.ExpenseStatusApprovedByFinance, ActionPay, models.RoleFinance, models.ExpenseStatusPaid},
		{"cancel draft", models.ExpenseStatusDraft, ActionCancel, models.RoleEmployee, models.ExpenseStatusCancelled},
		{"cancel submitted", models.ExpenseStatusSubmitted, ActionCancel, models.RoleEmployee, models.ExpenseStatusCancelled},
		{"cancel after hod approval", models.ExpenseStatusApprovedByHOD, ActionCancel, models.RoleEmployee, models.ExpenseStatusCancelled},
		{"cancel after finance approval", models.ExpenseStatusApprovedByFinance, ActionCancel, models.RoleEmployee, models.ExpenseStatusCancelled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := NextExpenseStatus(tc.from, tc.action, tc.role)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// Tabloda olmayan her (durum, aksiyon, rol) kombinasyonu IllegalTransition
// üretmeli ve mevcut durumu değiştirmemeli.
func TestNextExpenseStatus_IllegalTransitions(t *testing.T) {
	t.Parallel()

	allStatuses := []models.ExpenseStatus{
		models.ExpenseStatusDraft, models.ExpenseStatusSubmitted,
		models.ExpenseStatusApprovedByHOD, models.ExpenseStatusApprovedByFinance,
		models.ExpenseStatusPaid, models.ExpenseStatusRejectedByHOD,
		models.ExpenseStatusRejectedByFinance, models.ExpenseStatusCancelled,
	}
	allActions := []Action{ActionSubmit, ActionApprove, ActionReject, ActionPay, ActionCancel}
	allRoles := []models.UserRole{models.RoleEmployee, models.RoleHOD, models.RoleFinance, models.RoleSuperAdmin}

	for _, from := range allStatuses {
		for _, action := range allActions {
			for _, role := range allRoles {
				if _, ok := expenseTransitions[transitionKey{From: from, Action: action, Role: role}]; ok {
					continue
				}

				got, err := NextExpenseStatus(from, action, role)

				var illegal *IllegalTransitionError
				require.ErrorAs(t, err, &illegal, "from=%s action=%s role=%s", from, action, role)
				assert.Equal(t, from, illegal.From)
				assert.Equal(t, action, illegal.Action)
				assert.Equal(t, from, got, "durum değişmemeli")
			}
		}
	}
}

func TestNextExpenseStatus_TerminalStatesAcceptNothing(t *testing.T) {
	t.Parallel()

	terminals := []models.ExpenseStatus{
		models.ExpenseStatusPaid, models.ExpenseStatusRejectedByHOD,
		models.ExpenseStatusRejectedByFinance, models.ExpenseStatusCancelled,
	}

	for _, from := range terminals {
		assert.True(t, from.Terminal())
		for _, action := range []Action{ActionSubmit, ActionApprove, ActionReject, ActionPay, ActionCancel} {
			for _, role := range []models.UserRole{models.RoleEmployee, models.RoleHOD, models.RoleFinance} {
				_, err := NextExpenseStatus(from, action, role)
				assert.Error(t, err, "terminal durum %s, aksiyon %s", from, action)
			}
		}
	}
}

// Aynı aktör/aksiyon ile tekrar denenen geçiş hata değil, no-op başarıdır.
func TestExpenseAlreadyApplied(t *testing.T) {
	t.Parallel()

	assert.True(t, ExpenseAlreadyApplied(models.ExpenseStatusSubmitted, ActionSubmit, models.RoleEmployee))
	assert.True(t, ExpenseAlreadyApplied(models.ExpenseStatusApprovedByHOD, ActionApprove, models.RoleHOD))
	assert.True(t, ExpenseAlreadyApplied(models.ExpenseStatusApprovedByFinance, ActionApprove, models.RoleFinance))
	assert.True(t, ExpenseAlreadyApplied(models.ExpenseStatusPaid, ActionPay, models.RoleFinance))

	assert.False(t, ExpenseAlreadyApplied(models.ExpenseStatusDraft, ActionSubmit, models.RoleEmployee))
	assert.False(t, ExpenseAlreadyApplied(models.ExpenseStatusApprovedByFinance, ActionApprove, models.RoleHOD))
	assert.False(t, ExpenseAlreadyApplied(models.ExpenseStatusSubmitted, ActionApprove, models.RoleHOD))
}

func TestNextItemStatus(t *testing.T) {
	t.Parallel()

	got, err := NextItemStatus(models.ItemStatusSubmitted, ActionApprove, models.RoleHOD)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusApprovedByHOD, got)

	got, err = NextItemStatus(models.ItemStatusSubmitted, ActionReject, models.RoleHOD)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusRejectedByHOD, got)

	// kalemler finans onayına bağımsız ilerlemez
	_, err = NextItemStatus(models.ItemStatusApprovedByHOD, ActionApprove, models.RoleFinance)
	var illegal *IllegalItemTransitionError
	require.ErrorAs(t, err, &illegal)

	_, err = NextItemStatus(models.ItemStatusDraft, ActionApprove, models.RoleHOD)
	require.ErrorAs(t, err, &illegal)

	assert.True(t, ItemAlreadyApplied(models.ItemStatusApprovedByHOD, ActionApprove, models.RoleHOD))
	assert.True(t, ItemAlreadyApplied(models.ItemStatusRejectedByHOD, ActionReject, models.RoleHOD))
	assert.False(t, ItemAlreadyApplied(models.ItemStatusSubmitted, ActionApprove, models.RoleHOD))
}

func TestRequireJustification(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, RequireJustification(""), ErrMissingJustification)
	assert.ErrorIs(t, RequireJustification("   "), ErrMissingJustification)
	assert.NoError(t, RequireJustification("bütçeye uygun"))
}

func makeItem(id uint, status models.ItemStatus) models.ExpenseItem {
	return models.ExpenseItem{ID: id, Category: models.CategoryTravel, Date: time.Now(), Status: status}
}

func TestFoldItems(t *testing.T) {
	t.Parallel()

	t.Run("all approved", func(t *testing.T) {
		t.Parallel()

		resolved, rejected := FoldItems([]models.ExpenseItem{
			makeItem(1, models.ItemStatusApprovedByHOD),
			makeItem(2, models.ItemStatusApprovedByHOD),
		})
		assert.True(t, resolved)
		assert.False(t, rejected)
	})

	t.Run("one still submitted", func(t *testing.T) {
		t.Parallel()

		resolved, _ := FoldItems([]models.ExpenseItem{
			makeItem(1, models.ItemStatusApprovedByHOD),
			makeItem(2, models.ItemStatusSubmitted),
		})
		assert.False(t, resolved)
	})

	t.Run("rejection dominates", func(t *testing.T) {
		t.Parallel()

		resolved, rejected := FoldItems([]models.ExpenseItem{
			makeItem(1, models.ItemStatusApprovedByHOD),
			makeItem(2, models.ItemStatusRejectedByHOD),
		})
		assert.True(t, resolved)
		assert.True(t, rejected)
	})
}

// Red baskındır: onaycı approve istese bile tek reddedilmiş kalem masrafı
// reddedilmiş durumuna götürür, asla APPROVED_BY_HOD'a değil.
func TestResolveExpenseAction_RejectionDominance(t *testing.T) {
	t.Parallel()

	items := []models.ExpenseItem{
		makeItem(1, models.ItemStatusApprovedByHOD),
		makeItem(2, models.ItemStatusRejectedByHOD),
	}

	action, err := ResolveExpenseAction(items, ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, ActionReject, action)

	to, err := NextExpenseStatus(models.ExpenseStatusSubmitted, action, models.RoleHOD)
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseStatusRejectedByHOD, to)
}

func TestResolveExpenseAction_WaitsForAllItems(t *testing.T) {
	t.Parallel()

	items := []models.ExpenseItem{
		makeItem(1, models.ItemStatusApprovedByHOD),
		makeItem(2, models.ItemStatusSubmitted),
	}

	_, err := ResolveExpenseAction(items, ActionApprove)
	assert.ErrorIs(t, err, ErrItemsPending)
}
