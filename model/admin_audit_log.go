package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminAuditLog represents audit trail for admin actions on license keys
type AdminAuditLog struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	AdminEmail  string         `gorm:"type:varchar(255);not null;index" json:"adminEmail"`
	Action      string         `gorm:"type:varchar(100);not null" json:"action"` // e.g., "key_create", "key_reset"
	Resource    string         `gorm:"type:varchar(100)" json:"resource"`        // e.g., "license_keys"
	ResourceID  string         `gorm:"type:varchar(64);index" json:"resourceId"`
	OldValue    datatypes.JSON `gorm:"type:jsonb" json:"oldValue"`
	NewValue    datatypes.JSON `gorm:"type:jsonb" json:"newValue"`
	IPAddress   string         `gorm:"type:varchar(45)" json:"ipAddress"`
	UserAgent   string         `gorm:"type:text" json:"userAgent"`
	Description string         `gorm:"type:text" json:"description"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for AdminAuditLog
func (AdminAuditLog) TableName() string {
	return "admin_audit_logs"
}
