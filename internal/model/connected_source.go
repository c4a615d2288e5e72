package model

import "time"

// Connected source states.
const (
	SourceStateConnected = "CONNECTED"
	SourceStateError     = "ERROR"
)

// ConnectedSource tracks the sync state of a source connector
type ConnectedSource struct {
	ID         uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Provider   string     `json:"provider" gorm:"type:varchar(64);not null;uniqueIndex"`
	State      string     `json:"state" gorm:"type:varchar(20);not null"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	LastError  string     `json:"last_error,omitempty" gorm:"type:text"`
	ItemsSeen  int64      `json:"items_seen"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName specifies the table name for ConnectedSource
func (ConnectedSource) TableName() string {
	return "connected_sources"
}
