package models

import "time"

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionSubmit AuditAction = "submit"
	AuditActionApprove AuditAction = "approve"
	AuditActionReject AuditAction = "reject"
	AuditActionPay    AuditAction = "pay"
	AuditActionCancel AuditAction = "cancel"
)

// AuditLog: append-only işlem izi. Kayıtlar oluşturulduktan sonra asla
// değiştirilmez veya silinmez.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Hangi departman?
	DepartmentID *uint `json:"department_id"`

	// Hangi kullanıcı?
	UserID   uint   `json:"user_id"`
	UserName string `gorm:"size:100" json:"user_name"` // kullanıcı adı (denormalize)

	// Hangi entity? (ör: "expense", "expense_item", "budget", "budget_exception")
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	EntityID   uint   `gorm:"index" json:"entity_id"`

	// İşlem tipi: create/update/delete/submit/approve/reject/pay/cancel
	Action AuditAction `gorm:"size:20" json:"action"`

	// Opsiyonel açıklama (küçük bir özet)
	Description string `gorm:"size:255" json:"description"`

	// Önceki ve sonraki hal (JSON)
	BeforeData string `gorm:"type:jsonb" json:"before_data"`
	AfterData  string `gorm:"type:jsonb" json:"after_data"`
}
