package model

import (
	"time"

	"gorm.io/datatypes"
)

// ItemStatus is the lifecycle state of a staged item.
type ItemStatus string

const (
	StatusPending    ItemStatus = "PENDING"
	StatusProcessing ItemStatus = "PROCESSING"
	StatusProcessed  ItemStatus = "PROCESSED"
	StatusFailed     ItemStatus = "FAILED"
	// StatusDead is only reached when a maximum attempt count is configured.
	StatusDead ItemStatus = "DEAD"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []ItemStatus{StatusPending, StatusProcessing, StatusProcessed, StatusFailed, StatusDead}

// Terminal reports whether no further lease can be taken in this status.
func (s ItemStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusDead
}

// Valid reports whether s is a known status.
func (s ItemStatus) Valid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// StagedItem is an externally sourced text item awaiting or undergoing classification
type StagedItem struct {
	ID           uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	Source       string         `json:"source" gorm:"type:varchar(64);not null;index"`
	ExternalID   string         `json:"external_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	CustomerName string         `json:"customer_name" gorm:"type:varchar(255)"`
	Content      string         `json:"content" gorm:"type:text"`
	Permalink    string         `json:"permalink" gorm:"type:varchar(1024)"`
	Status       ItemStatus     `json:"status" gorm:"type:varchar(20);not null;default:PENDING;index:idx_staged_eligible,priority:1"`
	LeaseOwner   *string        `json:"lease_owner,omitempty" gorm:"type:varchar(64)"`
	Attempts     int            `json:"attempts" gorm:"not null;default:0"`
	LastError    *string        `json:"last_error,omitempty" gorm:"type:text"`
	NextRetryAt  *time.Time     `json:"next_retry_at,omitempty" gorm:"index:idx_staged_eligible,priority:2"`
	IngestedAt   time.Time      `json:"ingested_at" gorm:"not null"`
	AnalyzedAt   *time.Time     `json:"analyzed_at,omitempty"`
	RawPayload   datatypes.JSON `json:"raw_payload,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName specifies the table name for StagedItem
func (StagedItem) TableName() string {
	return "staged_items"
}
