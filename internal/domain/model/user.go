package model

import "time"

type Role string

const (
	RoleCashier Role = "cashier"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleCashier || r == RoleAdmin
}

type User struct {
	ID           string `gorm:"type:varchar(36);primaryKey"`
	Username     string `gorm:"type:varchar(100);uniqueIndex;not null"`
	Name         string `gorm:"type:varchar(255);not null"`
	Contact      string `gorm:"type:varchar(100)"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'cashier'"`
	TokenVersion int    `gorm:"not null;default:0"`
	IsActive     bool   `gorm:"not null;default:true"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
