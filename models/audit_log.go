package models

import (
	"time"
)

// AuditLog is an append-only record of a privileged mutation: who acted,
// what they did, and the serialized state before and after. Rows are never
// updated or deleted.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	UserID     uint      `gorm:"column:user_id;not null;index"`
	Username   string    `gorm:"column:username;not null;size:50"`
	Action     string    `gorm:"column:action;not null;size:100;index"`
	EntityType string    `gorm:"column:entity_type;not null;size:50"`
	EntityID   uint      `gorm:"column:entity_id;index"`
	OldState   string    `gorm:"column:old_state;type:text"`
	NewState   string    `gorm:"column:new_state;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
