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

type assignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error)
	GetByID(ctx context.Context, id string) (*models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id string) error
}

// AssignmentService manages homework assignments. Everyone authenticated can
// read them; only the authoring teacher mutates them.
type AssignmentService struct {
	repo      assignmentRepository
	audit     auditRecorder
	evaluator *authz.Evaluator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(repo assignmentRepository, audit auditRecorder, evaluator *authz.Evaluator, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssignmentService{repo: repo, audit: audit, evaluator: evaluator, validator: validate, logger: logger}
}

// List returns assignments matching the filter. Assignments are readable by
// every authenticated profile so no per-row narrowing applies.
func (s *AssignmentService) List(ctx context.Context, requester authz.Identity, filter models.AssignmentFilter) ([]models.Assignment, int, error) {
	if requester.ID == "" {
		return []models.Assignment{}, 0, nil
	}
	assignments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, total, nil
}

// Get returns a single assignment.
func (s *AssignmentService) Get(ctx context.Context, requester authz.Identity, id string) (*models.Assignment, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	allowed, err := s.evaluator.CanRead(ctx, authz.EntityAssignment, authz.Row{ID: assignment.ID, OwnerID: assignment.TeacherID}, requester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	return assignment, nil
}

// Create publishes a new assignment authored by the requester.
func (s *AssignmentService) Create(ctx context.Context, requester authz.Identity, req models.CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	allowed, err := s.evaluator.CanWrite(ctx, authz.EntityAssignment, authz.Row{OwnerID: requester.ID}, requester, authz.OpCreate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can create assignments")
	}

	assignment := &models.Assignment{
		TeacherID:   requester.ID,
		Title:       req.Title,
		Description: req.Description,
		Course:      req.Course,
		DueDate:     req.DueDate,
		FileURL:     req.FileURL,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.recordAudit(ctx, requester.ID, models.AuditActionCreate, "assignment", assignment.ID, assignment)
	return assignment, nil
}

// Update edits an existing assignment owned by the requester.
func (s *AssignmentService) Update(ctx context.Context, requester authz.Identity, id string, req models.UpdateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	allowed, err := s.evaluator.CanWrite(ctx, authz.EntityAssignment, authz.Row{ID: assignment.ID, OwnerID: assignment.TeacherID}, requester, authz.OpUpdate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot update this assignment")
	}

	assignment.Title = req.Title
	assignment.Description = req.Description
	assignment.Course = req.Course
	assignment.DueDate = req.DueDate
	assignment.FileURL = req.FileURL

	if err := s.repo.Update(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}

	s.recordAudit(ctx, requester.ID, models.AuditActionUpdate, "assignment", assignment.ID, assignment)
	return assignment, nil
}

// Delete removes an assignment owned by the requester. Submissions pointing
// at it are removed by the cascading foreign key.
func (s *AssignmentService) Delete(ctx context.Context, requester authz.Identity, id string) error {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	allowed, err := s.evaluator.CanWrite(ctx, authz.EntityAssignment, authz.Row{ID: assignment.ID, OwnerID: assignment.TeacherID}, requester, authz.OpDelete)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete this assignment")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}

	s.recordAudit(ctx, requester.ID, models.AuditActionDelete, "assignment", id, nil)
	return nil
}

func (s *AssignmentService) recordAudit(ctx context.Context, identityID, action, resource, resourceID string, payload interface{}) {
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
