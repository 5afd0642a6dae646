package models

import "time"

type Department struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:100;not null;unique"`
	Code      string `gorm:"size:20;uniqueIndex"` // kısa departman kodu (örn: "FIN", "IT")
	CreatedAt time.Time
	UpdatedAt time.Time

	Users []User
}
