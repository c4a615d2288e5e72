package model

import (
	"time"

	"gorm.io/gorm"
)

// AlertRule sends an e-mail when a classified result matches
type AlertRule struct {
	ID          uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	Sentiment   string         `json:"sentiment" gorm:"type:varchar(16);not null;index"`
	Keyword     string         `json:"keyword" gorm:"type:varchar(255)"`
	TargetEmail string         `json:"target_email" gorm:"type:varchar(255);not null"`
	Enabled     bool           `json:"enabled" gorm:"default:true"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for AlertRule
func (AlertRule) TableName() string {
	return "alert_rules"
}
