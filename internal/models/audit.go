package models

import "time"

type AuditLog struct {
	ID           string                 `json:"id"`
	HOAID        string                 `json:"hoaId,omitempty"`
	ActorID      string                 `json:"actorId,omitempty"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resourceType,omitempty"`
	ResourceID   string                 `json:"resourceId,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	IPAddress    string                 `json:"ipAddress,omitempty"`
	CreatedAt    time.Time              `json:"createdAt,omitzero"`
}
