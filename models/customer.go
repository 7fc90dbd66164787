package models

import (
	"gorm.io/gorm"
)

type Customer struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Name    string `gorm:"not null" json:"name"`
	Email   string `json:"email"`
	Phone   string `gorm:"uniqueIndex" json:"phone"`
	Address string `json:"address"`
	Notes   string `gorm:"type:text" json:"notes"`

	Orders []Order `gorm:"foreignKey:CustomerID" json:"orders,omitempty"`

	Timestamps
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
