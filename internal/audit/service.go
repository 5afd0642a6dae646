package audit

import (
	"encoding/json"
	"fmt"

	"masraf-backend/internal/database"
	"masraf-backend/internal/models"

	"gorm.io/gorm"
)

type LogOptions struct {
	DepartmentID *uint
	UserID       uint
	UserName     string
	EntityType   string
	EntityID     uint
	Action       models.AuditAction
	Description  string
	Before       any
	After        any
}

// WriteLog append-only işlem izi yazar. Kayıtlar asla güncellenmez veya
// silinmez; onay zinciri bu iz üzerinden denetlenir.
func WriteLog(opts LogOptions) error {
	return WriteLogTx(database.DB, opts)
}

// WriteLogTx aynı kaydı verilen transaction içinde yazar; durum geçişi ile
// audit kaydının tek atomik birim olması gereken yollarda kullanılır.
func WriteLogTx(tx *gorm.DB, opts LogOptions) error {
	// PostgreSQL jsonb için boş string yerine "null" JSON string'i kullanmalıyız
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	log := models.AuditLog{
		DepartmentID: opts.DepartmentID,
		UserID:       opts.UserID,
		UserName:     opts.UserName,
		EntityType:   opts.EntityType,
		EntityID:     opts.EntityID,
		Action:       opts.Action,
		Description:  opts.Description,
		BeforeData:   beforeStr,
		AfterData:    afterStr,
	}

	if err := tx.Create(&log).Error; err != nil {
		return fmt.Errorf("audit log kaydedilemedi: %w", err)
	}

	return nil
}
