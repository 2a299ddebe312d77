package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edutrackers/edutrack-api/internal/authz"
	"github.com/edutrackers/edutrack-api/internal/models"
	appErrors "github.com/edutrackers/edutrack-api/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

// AnnouncementService manages broadcast messages. Everyone reads them;
// teachers author them and only the author deletes. There is no update path.
type AnnouncementService struct {
	repo      announcementRepository
	audit     auditRecorder
	evaluator *authz.Evaluator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService constructs an AnnouncementService.
func NewAnnouncementService(repo announcementRepository, audit auditRecorder, evaluator *authz.Evaluator, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AnnouncementService{repo: repo, audit: audit, evaluator: evaluator, validator: validate, logger: logger}
}

// List returns announcements, newest first.
func (s *AnnouncementService) List(ctx context.Context, requester authz.Identity, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	if requester.ID == "" {
		return []models.Announcement{}, 0, nil
	}
	announcements, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return announcements, total, nil
}

// Get returns a single announcement.
func (s *AnnouncementService) Get(ctx context.Context, requester authz.Identity, id string) (*models.Announcement, error) {
	announcement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}

	allowed, err := s.evaluator.CanRead(ctx, authz.EntityAnnouncement, authz.Row{ID: announcement.ID, OwnerID: announcement.TeacherID}, requester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
	}
	return announcement, nil
}

// Create broadcasts a new announcement authored by the requester.
func (s *AnnouncementService) Create(ctx context.Context, requester authz.Identity, req models.CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	allowed, err := s.evaluator.CanWrite(ctx, authz.EntityAnnouncement, authz.Row{OwnerID: requester.ID}, requester, authz.OpCreate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can create announcements")
	}

	announcement := &models.Announcement{
		TeacherID: requester.ID,
		Title:     req.Title,
		Message:   req.Message,
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}

	s.recordAudit(ctx, requester.ID, models.AuditActionCreate, "announcement", announcement.ID, announcement)
	return announcement, nil
}

// Delete removes an announcement authored by the requester. Edits are delete
// and recreate; there is no in-place update.
func (s *AnnouncementService) Delete(ctx context.Context, requester authz.Identity, id string) error {
	announcement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}

	allowed, err := s.evaluator.CanWrite(ctx, authz.EntityAnnouncement, authz.Row{ID: announcement.ID, OwnerID: announcement.TeacherID}, requester, authz.OpDelete)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete this announcement")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}

	s.recordAudit(ctx, requester.ID, models.AuditActionDelete, "announcement", id, nil)
	return nil
}

func (s *AnnouncementService) recordAudit(ctx context.Context, identityID, action, resource, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	var values []byte
	if payload != nil {
		values, _ = json.Marshal(payload)
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		IdentityID: &identityID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		NewValues:  values,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("resource", resource), zap.Error(err))
	}
}
