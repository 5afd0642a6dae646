package models

import "time"

// Comment: masrafa veya kalemine bağlı gerekçe/yorum kaydı.
// Append-only: oluşturulduktan sonra asla güncellenmez veya silinmez.
type Comment struct {
	ID        uint  `gorm:"primaryKey"`
	ExpenseID uint  `gorm:"index;not null"`
	ItemID    *uint `gorm:"index"` // kalem bazlı yorumlar için, masraf geneli ise nil

	UserID   uint   `gorm:"not null"`
	UserName string `gorm:"size:100"` // kullanıcı adı (denormalize)

	Body string `gorm:"size:500;not null"`

	CreatedAt time.Time
}
