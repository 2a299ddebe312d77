package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edutrackers/edutrack-api/internal/authz"
	"github.com/edutrackers/edutrack-api/internal/models"
	"github.com/edutrackers/edutrack-api/internal/repository"
	appErrors "github.com/edutrackers/edutrack-api/pkg/errors"
)

type submissionRepository interface {
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error)
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	UpdateGrade(ctx context.Context, submission *models.Submission) error
}

// SubmissionService manages assignment hand-ins. A student submits only as
// themselves and at most once per assignment; the uniqueness lives in the
// database so concurrent duplicates lose at the data layer, not in a
// read-then-write race here.
type SubmissionService struct {
	repo      submissionRepository
	audit     auditRecorder
	evaluator *authz.Evaluator
	roles     authz.RoleDirectory
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(repo submissionRepository, audit auditRecorder, evaluator *authz.Evaluator, roles authz.RoleDirectory, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SubmissionService{repo: repo, audit: audit, evaluator: evaluator, roles: roles, validator: validate, logger: logger}
}

// List returns submissions visible to the requester. Students are narrowed to
// their own rows regardless of the requested filter; teachers see everything.
func (s *SubmissionService) List(ctx context.Context, requester authz.Identity, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	isTeacher, err := s.roles.IsTeacher(ctx, requester.ID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "role lookup failed")
	}

	if !isTeacher {
		if filter.StudentID != "" && filter.StudentID != requester.ID {
			// Asking for someone else's rows yields nothing, not an error.
			return []models.Submission{}, 0, nil
		}
		filter.StudentID = requester.ID
	}

	submissions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, total, nil
}

// Get returns a single submission if the requester may see it.
func (s *SubmissionService) Get(ctx context.Context, requester authz.Identity, id string) (*models.Submission, error) {
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	allowed, err := s.evaluator.CanRead(ctx, authz.EntitySubmission, authz.Row{ID: submission.ID, SubjectID: submission.StudentID}, requester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
	}
	return submission, nil
}

// Create hands in an assignment for the requester. The student id on the row
// is always the requester; a payload cannot submit on another's behalf.
func (s *SubmissionService) Create(ctx context.Context, requester authz.Identity, req models.CreateSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	allowed, err := s.evaluator.CanWrite(ctx, authz.EntitySubmission, authz.Row{SubjectID: requester.ID}, requester, authz.OpCreate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot create this submission")
	}

	submission := &models.Submission{
		AssignmentID: req.AssignmentID,
		StudentID:    requester.ID,
		FileURL:      req.FileURL,
	}
	if err := s.repo.Create(ctx, submission); err != nil {
		switch {
		case repository.IsUniqueViolation(err, repository.UniqueSubmissionConstraint):
			return nil, appErrors.Clone(appErrors.ErrDuplicateSubmission, "")
		case repository.IsForeignKeyViolation(err):
			return nil, appErrors.Clone(appErrors.ErrInvalidReference, "assignment does not exist")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
		}
	}

	s.recordAudit(ctx, requester.ID, models.AuditActionCreate, "submission", submission.ID, submission)
	return submission, nil
}

// Grade records a grade and feedback on a submission. Grading is the only
// update path; a student cannot touch a submission after handing it in.
func (s *SubmissionService) Grade(ctx context.Context, requester authz.Identity, id string, req models.GradeSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	allowed, err := s.evaluator.CanWrite(ctx, authz.EntitySubmission, authz.Row{ID: submission.ID, SubjectID: submission.StudentID}, requester, authz.OpUpdate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can grade submissions")
	}

	grade := req.Grade
	submission.Grade = &grade
	submission.Feedback = req.Feedback
	submission.Status = models.SubmissionStatusGraded
	submission.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateGrade(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade submission")
	}

	s.recordAudit(ctx, requester.ID, models.AuditActionUpdate, "submission", submission.ID, req)
	return submission, nil
}

func (s *SubmissionService) recordAudit(ctx context.Context, identityID, action, resource, resourceID string, payload interface{}) {
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
