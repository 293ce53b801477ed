package domain

import (
	"context"
	"time"
)

// AuditEntry records one mutation issued from the console.
type AuditEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Actor     string    `gorm:"size:100;index" json:"actor"`
	Resource  string    `gorm:"size:50;index" json:"resource"`
	Action    string    `gorm:"size:50" json:"action"`
	TargetIDs string    `gorm:"size:1000" json:"target_ids"`
	Success   bool      `json:"success"`
	Message   string    `gorm:"size:500" json:"message"`
	RequestID string    `gorm:"size:64" json:"request_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName pins the table name.
func (AuditEntry) TableName() string { return "audit_entries" }

// AuditRepository defines the data access interface for audit entries.
type AuditRepository interface {
	// Append stores e and removes entries created before purgeBefore in the
	// same transaction. A zero purgeBefore keeps everything. It returns the
	// number of purged entries.
	Append(ctx context.Context, e *AuditEntry, purgeBefore time.Time) (int64, error)
	List(ctx context.Context, req PageRequest) (*PageResult[AuditEntry], error)
}
