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
	"github.com/edutrackers/edutrack-api/internal/repository"
	appErrors "github.com/edutrackers/edutrack-api/pkg/errors"
)

type resultRepository interface {
	List(ctx context.Context, filter models.ResultFilter) ([]models.Result, int, error)
	GetByID(ctx context.Context, id string) (*models.Result, error)
	Create(ctx context.Context, result *models.Result) error
	Update(ctx context.Context, result *models.Result) error
	Delete(ctx context.Context, id string) error
}

// ResultService manages exam results. Students read their own; teachers
// author them and only the authoring teacher corrects or removes a row.
type ResultService struct {
	repo      resultRepository
	audit     auditRecorder
	evaluator *authz.Evaluator
	roles     authz.RoleDirectory
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResultService constructs a ResultService.
func NewResultService(repo resultRepository, audit auditRecorder, evaluator *authz.Evaluator, roles authz.RoleDirectory, validate *validator.Validate, logger *zap.Logger) *ResultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ResultService{repo: repo, audit: audit, evaluator: evaluator, roles: roles, validator: validate, logger: logger}
}

// List returns results visible to the requester, decorated with the derived
// percentage and letter grade.
func (s *ResultService) List(ctx context.Context, requester authz.Identity, filter models.ResultFilter) ([]models.ResultView, int, error) {
	isTeacher, err := s.roles.IsTeacher(ctx, requester.ID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "role lookup failed")
	}

	if !isTeacher {
		if filter.StudentID != "" && filter.StudentID != requester.ID {
			return []models.ResultView{}, 0, nil
		}
		filter.StudentID = requester.ID
	}

	results, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}

	views := make([]models.ResultView, 0, len(results))
	for _, r := range results {
		views = append(views, models.NewResultView(r))
	}
	return views, total, nil
}

// Get returns a single result view if visible.
func (s *ResultService) Get(ctx context.Context, requester authz.Identity, id string) (*models.ResultView, error) {
	result, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}

	allowed, err := s.evaluator.CanRead(ctx, authz.EntityResult, authz.Row{ID: result.ID, OwnerID: result.TeacherID, SubjectID: result.StudentID}, requester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
	}

	view := models.NewResultView(*result)
	return &view, nil
}

// Create records an exam result authored by the requester. Marks are bounded
// here because the cross-field check cannot live in struct tags.
func (s *ResultService) Create(ctx context.Context, requester authz.Identity, req models.CreateResultRequest) (*models.ResultView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid result payload")
	}
	if req.MarksObtained > req.TotalMarks {
		return nil, appErrors.Clone(appErrors.ErrValidation, "marks obtained cannot exceed total marks")
	}

	allowed, err := s.evaluator.CanWrite(ctx, authz.EntityResult, authz.Row{OwnerID: requester.ID, SubjectID: req.StudentID}, requester, authz.OpCreate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can record results")
	}

	result := &models.Result{
		StudentID:     req.StudentID,
		TeacherID:     requester.ID,
		ExamType:      req.ExamType,
		Subject:       req.Subject,
		MarksObtained: req.MarksObtained,
		TotalMarks:    req.TotalMarks,
		ExamDate:      req.ExamDate,
		Remarks:       req.Remarks,
	}
	if err := s.repo.Create(ctx, result); err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrInvalidReference, "student does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create result")
	}

	s.recordAudit(ctx, requester.ID, models.AuditActionCreate, "result", result.ID, result)
	view := models.NewResultView(*result)
	return &view, nil
}

// Update corrects a result. Only the authoring teacher may do so.
func (s *ResultService) Update(ctx context.Context, requester authz.Identity, id string, req models.UpdateResultRequest) (*models.ResultView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid result payload")
	}
	if req.MarksObtained > req.TotalMarks {
		return nil, appErrors.Clone(appErrors.ErrValidation, "marks obtained cannot exceed total marks")
	}

	result, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}

	allowed, err := s.evaluator.CanWrite(ctx, authz.EntityResult, authz.Row{ID: result.ID, OwnerID: result.TeacherID, SubjectID: result.StudentID}, requester, authz.OpUpdate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot update this result")
	}

	result.ExamType = req.ExamType
	result.Subject = req.Subject
	result.MarksObtained = req.MarksObtained
	result.TotalMarks = req.TotalMarks
	result.ExamDate = req.ExamDate
	result.Remarks = req.Remarks

	if err := s.repo.Update(ctx, result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update result")
	}

	s.recordAudit(ctx, requester.ID, models.AuditActionUpdate, "result", result.ID, result)
	view := models.NewResultView(*result)
	return &view, nil
}

// Delete removes a result. Only the authoring teacher may do so.
func (s *ResultService) Delete(ctx context.Context, requester authz.Identity, id string) error {
	result, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}

	allowed, err := s.evaluator.CanWrite(ctx, authz.EntityResult, authz.Row{ID: result.ID, OwnerID: result.TeacherID, SubjectID: result.StudentID}, requester, authz.OpDelete)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete this result")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete result")
	}

	s.recordAudit(ctx, requester.ID, models.AuditActionDelete, "result", id, nil)
	return nil
}

func (s *ResultService) recordAudit(ctx context.Context, identityID, action, resource, resourceID string, payload interface{}) {
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
