package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BulkOrderRun is the persisted record of one finished processing run.
type BulkOrderRun struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID           string    `gorm:"type:varchar(64);index" json:"user_id,omitempty"`
	Success          bool      `gorm:"not null" json:"success"`
	ItemsProcessed   int       `gorm:"not null" json:"items_processed"`
	ItemsAdded       int       `gorm:"not null" json:"items_added"`
	ItemsFailed      int       `gorm:"not null" json:"items_failed"`
	TotalValue       float64   `gorm:"not null" json:"total_value"`
	ProcessingTimeMs int64     `gorm:"not null" json:"processing_time_ms"`
	// Suggestions stores the per-SKU alternatives map as JSON.
	Suggestions string         `gorm:"type:jsonb" json:"suggestions,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Job statuses for async uploads tracked in the job store.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"
)

// BulkOrderJob is the job-store record for one async upload.
type BulkOrderJob struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id,omitempty"`
	Status    string           `json:"status"`
	FilePath  string           `json:"file_path,omitempty"`
	Error     string           `json:"error,omitempty"`
	Result    *BulkOrderResult `json:"result,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
