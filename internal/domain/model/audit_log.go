package model

import (
	"time"
)

// AuditLog represents an audit log entry. Every financial state change is
// recorded, including rejected attempts.
type AuditLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Action    string    `gorm:"not null;size:100;index" json:"action"`
	SubjectID string    `gorm:"size:100;index" json:"subject_id"`
	ActorIP   string    `gorm:"size:45" json:"actor_ip"`
	Result    string    `gorm:"not null;size:20" json:"result"`
	Details   JSONB     `gorm:"type:jsonb;default:'{}'" json:"details"`
	CreatedAt time.Time `gorm:"default:now();index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit result values
const (
	AuditResultSuccess  = "success"
	AuditResultRejected = "rejected"
	AuditResultError    = "error"
)
