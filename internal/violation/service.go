// Package violation handles resident violation reports for an HOA.
package violation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/audit"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/docstore"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/metrics"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/queue"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/storage"
)

const Collection = "violations"

// MaxPhotos caps the photos accepted with one report.
const MaxPhotos = 5

var (
	ErrNotFound = errors.New("violation not found")
	ErrInvalid  = errors.New("invalid violation")
)

type HOAReader interface {
	GetHOA(ctx context.Context, slug string) (*models.HOA, error)
}

// Notifier is satisfied by *queue.Client.
type Notifier interface {
	EnqueueViolationNotification(ctx context.Context, payload queue.ViolationNotificationPayload) error
	EnqueueResidentNotice(ctx context.Context, payload queue.ResidentNoticePayload) error
}

type Auditor interface {
	Log(ctx context.Context, entry audit.LogEntry) error
}

type Photo struct {
	Filename    string
	ContentType string
	Data        io.Reader
}

type Submission struct {
	Type          string
	Address       string
	Description   string
	ReporterEmail string
	ReporterPhone string
	Photos        []Photo
}

type Service struct {
	store    docstore.Store
	hoas     HOAReader
	blobs    storage.Storage
	notifier Notifier
	auditor  Auditor
}

func NewService(store docstore.Store, hoas HOAReader, blobs storage.Storage) *Service {
	return &Service{store: store, hoas: hoas, blobs: blobs}
}

func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

func (s *Service) WithAuditor(a Auditor) *Service {
	s.auditor = a
	return s
}

// Submit records a new report against the HOA at slug. Photos are uploaded
// first; if any upload fails the ones already stored are removed and nothing
// is written.
func (s *Service) Submit(ctx context.Context, slug string, sub Submission) (*models.Violation, error) {
	hoa, err := s.hoas.GetHOA(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := validate(hoa, &sub); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	paths, err := s.uploadPhotos(ctx, slug, id, sub.Photos)
	if err != nil {
		return nil, err
	}

	v := models.Violation{
		ID:            id,
		HOAID:         slug,
		Type:          sub.Type,
		Address:       strings.TrimSpace(sub.Address),
		Description:   strings.TrimSpace(sub.Description),
		Photos:        make([]string, 0, len(paths)),
		PhotoPaths:    paths,
		ReporterEmail: sub.ReporterEmail,
		ReporterPhone: sub.ReporterPhone,
		Status:        models.ViolationPending,
	}
	for _, p := range paths {
		v.Photos = append(v.Photos, s.blobs.PublicURL(p))
	}

	if err := s.store.Create(ctx, Collection, id, v); err != nil {
		s.removePhotos(ctx, paths)
		return nil, fmt.Errorf("create violation: %w", err)
	}
	metrics.ViolationsSubmitted.Inc()
	slog.Info("violation submitted", "hoa", slug, "violation_id", id, "photos", len(paths))

	if s.notifier != nil {
		err := s.notifier.EnqueueViolationNotification(ctx, queue.ViolationNotificationPayload{HOAID: slug, ViolationID: id})
		if err != nil {
			slog.Error("enqueue violation notification", "violation_id", id, "error", err)
		}
	}

	return s.Get(ctx, slug, id)
}

func validate(hoa *models.HOA, sub *Submission) error {
	switch {
	case sub.Type == "":
		return fmt.Errorf("%w: violation type is required", ErrInvalid)
	case !hoa.HasViolationType(sub.Type):
		return fmt.Errorf("%w: unknown violation type %q", ErrInvalid, sub.Type)
	case strings.TrimSpace(sub.Address) == "":
		return fmt.Errorf("%w: address is required", ErrInvalid)
	case strings.TrimSpace(sub.Description) == "":
		return fmt.Errorf("%w: description is required", ErrInvalid)
	case len(sub.Photos) > MaxPhotos:
		return fmt.Errorf("%w: at most %d photos allowed", ErrInvalid, MaxPhotos)
	}
	if sub.ReporterEmail != "" {
		if _, err := mail.ParseAddress(sub.ReporterEmail); err != nil {
			return fmt.Errorf("%w: invalid reporter email", ErrInvalid)
		}
	}
	for _, p := range sub.Photos {
		if !strings.HasPrefix(p.ContentType, "image/") {
			return fmt.Errorf("%w: %s is not an image", ErrInvalid, p.Filename)
		}
	}
	return nil
}

// PhotoPath is where the n-th photo of a violation is stored.
func PhotoPath(slug, id string, n int, filename string) string {
	return "violations/" + slug + "/" + id + "/" + strconv.Itoa(n) + strings.ToLower(filepath.Ext(filename))
}

func (s *Service) uploadPhotos(ctx context.Context, slug, id string, photos []Photo) ([]string, error) {
	paths := make([]string, 0, len(photos))
	for i, p := range photos {
		path := PhotoPath(slug, id, i, p.Filename)
		if err := s.blobs.Upload(ctx, path, p.Data, p.ContentType); err != nil {
			s.removePhotos(ctx, paths)
			return nil, fmt.Errorf("upload photo %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *Service) removePhotos(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	if err := s.blobs.Delete(context.WithoutCancel(ctx), paths...); err != nil {
		slog.Error("remove violation photos", "paths", paths, "error", err)
	}
}

// List returns the HOA's violations newest first, optionally filtered by
// status.
func (s *Service) List(ctx context.Context, slug string, status models.ViolationStatus) ([]models.Violation, error) {
	docs, err := s.store.List(ctx, listQuery(slug, status))
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	return DecodeList(docs)
}

// Subscribe streams the HOA's violation list on every change.
func (s *Service) Subscribe(ctx context.Context, slug string) (*docstore.Subscription, error) {
	return s.store.Subscribe(ctx, listQuery(slug, ""))
}

func listQuery(slug string, status models.ViolationStatus) docstore.Query {
	q := docstore.Query{
		Collection: Collection,
		Where:      []docstore.Filter{{Field: "hoaId", Value: slug}},
		OrderBy:    docstore.OrderByCreated,
		Desc:       true,
	}
	if status != "" {
		q.Where = append(q.Where, docstore.Filter{Field: "status", Value: string(status)})
	}
	return q
}

// Get returns the violation only if it belongs to slug.
func (s *Service) Get(ctx context.Context, slug, id string) (*models.Violation, error) {
	doc, err := s.store.Get(ctx, Collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get violation: %w", err)
	}
	v, err := Decode(doc)
	if err != nil {
		return nil, err
	}
	if v.HOAID != slug {
		return nil, ErrNotFound
	}
	return v, nil
}

type Update struct {
	Status     *models.ViolationStatus `json:"status,omitempty"`
	AdminNotes *string                 `json:"adminNotes,omitempty"`
}

func (s *Service) Update(ctx context.Context, slug, id string, upd Update) (*models.Violation, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, *upd.Status)
	}
	current, err := s.Get(ctx, slug, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if upd.Status != nil {
		fields["status"] = *upd.Status
	}
	if upd.AdminNotes != nil {
		fields["adminNotes"] = *upd.AdminNotes
	}
	if len(fields) == 0 {
		return current, nil
	}

	err = s.store.Update(ctx, Collection, id, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update violation: %w", err)
	}

	if upd.Status != nil && *upd.Status != current.Status {
		s.audit(ctx, audit.LogEntry{
			HOAID:        slug,
			Action:       audit.ActionViolationStatusChanged,
			ResourceType: "violation",
			ResourceID:   id,
			Details:      map[string]interface{}{"from": current.Status, "to": *upd.Status},
		})
	}
	return s.Get(ctx, slug, id)
}

func (s *Service) Delete(ctx context.Context, slug, id string) error {
	v, err := s.Get(ctx, slug, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, Collection, id); err != nil {
		return fmt.Errorf("delete violation: %w", err)
	}
	s.removePhotos(ctx, v.PhotoPaths)
	return nil
}

type Notice struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// NotifyResident queues an email about the violation. The recipient defaults
// to the reporter's address and the subject to one naming the violation type.
func (s *Service) NotifyResident(ctx context.Context, slug, id string, n Notice) error {
	if s.notifier == nil {
		return errors.New("notifications are not configured")
	}
	v, err := s.Get(ctx, slug, id)
	if err != nil {
		return err
	}
	to := n.To
	if to == "" {
		to = v.ReporterEmail
	}
	if to == "" {
		return fmt.Errorf("%w: no recipient address", ErrInvalid)
	}
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("%w: invalid recipient address", ErrInvalid)
	}
	if strings.TrimSpace(n.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrInvalid)
	}
	subject := strings.TrimSpace(n.Subject)
	if subject == "" {
		subject = "Violation Notice - " + v.Type
	}

	return s.notifier.EnqueueResidentNotice(ctx, queue.ResidentNoticePayload{
		HOAID:       slug,
		ViolationID: id,
		Recipient:   addr.Address,
		Subject:     subject,
		Message:     n.Message,
	})
}

func (s *Service) audit(ctx context.Context, entry audit.LogEntry) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Log(ctx, entry); err != nil {
		slog.Error("audit", "action", entry.Action, "error", err)
	}
}

func Decode(doc *docstore.Document) (*models.Violation, error) {
	var v models.Violation
	if err := doc.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode violation %s: %w", doc.Key, err)
	}
	v.ID = doc.Key
	v.CreatedAt = doc.CreatedAt
	v.UpdatedAt = doc.UpdatedAt
	return &v, nil
}

func DecodeList(docs []docstore.Document) ([]models.Violation, error) {
	out := make([]models.Violation, 0, len(docs))
	for i := range docs {
		v, err := Decode(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}
