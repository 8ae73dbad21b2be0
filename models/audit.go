package models

import "time"

type AuditAction string

const (
	AuditPropertyCreated  AuditAction = "property_created"
	AuditPropertyUpdated  AuditAction = "property_updated"
	AuditPropertyDeleted  AuditAction = "property_deleted"
	AuditPropertyApproved AuditAction = "property_approved"
)

// AuditEntry records one admin action against a property.
type AuditEntry struct {
	ID         int64             `json:"id,omitempty" db:"id"`
	Action     AuditAction       `json:"action" db:"action"`
	PropertyID string            `json:"propertyId" db:"property_id"`
	Actor      string            `json:"actor" db:"actor"`
	Details    map[string]string `json:"details,omitempty" db:"details"`
	Timestamp  time.Time         `json:"timestamp" db:"timestamp"`
}
