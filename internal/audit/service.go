package audit

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/docstore"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/tenant"
)

const Collection = "audit_logs"

const (
	ActionHOAOnboarded           = "hoa.onboarded"
	ActionHOACreated             = "hoa.created"
	ActionHOAUpdated             = "hoa.updated"
	ActionHOAStatusChanged       = "hoa.status_changed"
	ActionHOADeleted             = "hoa.deleted"
	ActionViolationStatusChanged = "violation.status_changed"
	ActionUserCreated            = "user.created"
	ActionUserDeleted            = "user.deleted"
)

type Service struct {
	store docstore.Store
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

type LogEntry struct {
	HOAID        string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]interface{}
	IPAddress    string
}

// Log records entry under the principal found in ctx, if any.
func (s *Service) Log(ctx context.Context, entry LogEntry) error {
	rec := models.AuditLog{
		ID:           uuid.NewString(),
		HOAID:        entry.HOAID,
		ActorID:      tenant.ActorID(ctx),
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
	}
	if entry.IPAddress != "" {
		if ip, err := netip.ParseAddr(entry.IPAddress); err == nil {
			rec.IPAddress = ip.String()
		}
	}

	if err := s.store.Create(ctx, Collection, rec.ID, rec); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

type AuditQuery struct {
	HOAID     string
	Action    string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// GetAuditLogs returns matching entries, newest first.
func (s *Service) GetAuditLogs(ctx context.Context, q AuditQuery) ([]models.AuditLog, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}

	query := docstore.Query{Collection: Collection, OrderBy: docstore.OrderByCreated, Desc: true}
	if q.HOAID != "" {
		query.Where = append(query.Where, docstore.Filter{Field: "hoaId", Value: q.HOAID})
	}
	if q.Action != "" {
		query.Where = append(query.Where, docstore.Filter{Field: "action", Value: q.Action})
	}

	docs, err := s.store.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}

	logs := make([]models.AuditLog, 0, q.Limit)
	skipped := 0
	for i := range docs {
		doc := &docs[i]
		if q.StartDate != nil && doc.CreatedAt.Before(*q.StartDate) {
			continue
		}
		if q.EndDate != nil && doc.CreatedAt.After(*q.EndDate) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}

		var l models.AuditLog
		if err := doc.Decode(&l); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		l.ID = doc.Key
		l.CreatedAt = doc.CreatedAt
		logs = append(logs, l)
		if len(logs) == q.Limit {
			break
		}
	}
	return logs, nil
}
