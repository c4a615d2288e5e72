package model

import (
	"time"

	"gorm.io/gorm"
)

// Processing log statuses.
const (
	LogStatusSuccess   = "success"
	LogStatusFailure   = "failure"
	LogStatusDead      = "dead"
	LogStatusLeaseLost = "lease_lost"
)

// ProcessingLog represents a log entry for a classification attempt
type ProcessingLog struct {
	ID           uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	StagedItemID uint           `json:"staged_item_id" gorm:"not null;index"`
	ExternalID   string         `json:"external_id" gorm:"type:varchar(255);not null;index"`
	WorkerID     string         `json:"worker_id" gorm:"type:varchar(64)"`
	Attempt      int            `json:"attempt"`
	Status       string         `json:"status" gorm:"type:varchar(50);not null"` // success, failure, dead, lease_lost
	ErrorMsg     string         `json:"error_msg" gorm:"type:text"`
	CreatedAt    time.Time      `json:"created_at"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	StagedItem *StagedItem `json:"staged_item,omitempty" gorm:"foreignKey:StagedItemID"`
}

// TableName specifies the table name for ProcessingLog
func (ProcessingLog) TableName() string {
	return "processing_logs"
}
