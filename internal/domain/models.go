// Package domain defines the data structures exchanged through the gateway:
// the inbound action request and the persisted audit trail of dispatched
// actions. Types here are transport- and storage-agnostic except for the
// JSON/GORM tags they carry.
package domain

import "time"

// ActionRequest is the body accepted by POST /dynamics. Params is a
// loosely-typed bag interpreted by the resolved action handler; it defaults
// to empty and is never schema-validated beyond the presence of Action.
type ActionRequest struct {
	// Action is the registered action name, e.g. "memory_export_session".
	Action string `json:"action" binding:"required"`
	// Params carries handler-specific parameters.
	Params map[string]any `json:"params"`
}

// AuditRecord is one persisted row of the request audit trail. Bodies are
// never stored, only parameter key names.
type AuditRecord struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	CorrelationID string    `json:"correlation_id" gorm:"size:64;index"`
	Action        string    `json:"action" gorm:"size:128;index"`
	ClientIP      string    `json:"client_ip" gorm:"size:45"`
	ParamKeys     string    `json:"param_keys" gorm:"size:1024"` // CSV of parameter names
	Status        int       `json:"status"`
	Outcome       string    `json:"outcome" gorm:"size:16"` // success|error
	DurationMS    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
}

// TableName pins the table name independent of GORM pluralization rules.
func (AuditRecord) TableName() string { return "audit_records" }
