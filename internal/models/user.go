package models

import "time"

type UserRole string

const (
	RoleSuperAdmin UserRole = "super_admin"
	RoleEmployee   UserRole = "employee" // talep eden
	RoleHOD        UserRole = "hod"      // departman yöneticisi, ilk onaycı
	RoleFinance    UserRole = "finance"  // finans onaycısı
)

type User struct {
	ID           uint `gorm:"primaryKey"`
	DepartmentID *uint
	Department   *Department
	Name         string   `gorm:"size:100;not null"`
	Email        string   `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:20;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
