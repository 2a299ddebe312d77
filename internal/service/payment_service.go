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

type paymentRepository interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	Totals(ctx context.Context, filter models.PaymentFilter) (*models.PaymentTotals, error)
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	Delete(ctx context.Context, id string) error
}

// PaymentService manages tuition fee entries. Teachers hold every write; a
// student marking their own fee as paid is not a supported operation.
type PaymentService struct {
	repo      paymentRepository
	audit     auditRecorder
	evaluator *authz.Evaluator
	roles     authz.RoleDirectory
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(repo paymentRepository, audit auditRecorder, evaluator *authz.Evaluator, roles authz.RoleDirectory, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PaymentService{repo: repo, audit: audit, evaluator: evaluator, roles: roles, validator: validate, logger: logger}
}

// List returns payments visible to the requester plus per-status amount
// totals over the same filtered set.
func (s *PaymentService) List(ctx context.Context, requester authz.Identity, filter models.PaymentFilter) ([]models.Payment, int, *models.PaymentTotals, error) {
	isTeacher, err := s.roles.IsTeacher(ctx, requester.ID)
	if err != nil {
		return nil, 0, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "role lookup failed")
	}

	if !isTeacher {
		if filter.StudentID != "" && filter.StudentID != requester.ID {
			return []models.Payment{}, 0, &models.PaymentTotals{}, nil
		}
		filter.StudentID = requester.ID
	}

	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}

	totals, err := s.repo.Totals(ctx, filter)
	if err != nil {
		return nil, 0, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum payments")
	}
	return payments, total, totals, nil
}

// Get returns a single payment if visible.
func (s *PaymentService) Get(ctx context.Context, requester authz.Identity, id string) (*models.Payment, error) {
	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	allowed, err := s.evaluator.CanRead(ctx, authz.EntityPayment, authz.Row{ID: payment.ID, SubjectID: payment.StudentID}, requester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
	}
	return payment, nil
}

// Create raises a fee entry for a student. New entries always start pending.
func (s *PaymentService) Create(ctx context.Context, requester authz.Identity, req models.CreatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	allowed, err := s.evaluator.CanWrite(ctx, authz.EntityPayment, authz.Row{SubjectID: req.StudentID}, requester, authz.OpCreate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can create payments")
	}

	payment := &models.Payment{
		StudentID:   req.StudentID,
		Amount:      req.Amount,
		PaymentType: req.PaymentType,
		Status:      models.PaymentStatusPending,
		DueDate:     req.DueDate,
		Semester:    req.Semester,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrInvalidReference, "student does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}

	s.recordAudit(ctx, requester.ID, models.AuditActionCreate, "payment", payment.ID, payment)
	return payment, nil
}

// Update edits a fee entry's descriptive fields. Status is untouched here;
// use UpdateStatus for transitions.
func (s *PaymentService) Update(ctx context.Context, requester authz.Identity, id string, req models.UpdatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	payment, err := s.loadForWrite(ctx, requester, id, authz.OpUpdate)
	if err != nil {
		return nil, err
	}

	payment.Amount = req.Amount
	payment.PaymentType = req.PaymentType
	payment.DueDate = req.DueDate
	payment.Semester = req.Semester

	if err := s.repo.Update(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
	}

	s.recordAudit(ctx, requester.ID, models.AuditActionUpdate, "payment", payment.ID, payment)
	return payment, nil
}

// UpdateStatus moves a payment out of pending. Transitions are
// one-directional: pending to paid stamps the paid date, pending to overdue
// does not. Anything else is rejected, including reversals.
func (s *PaymentService) UpdateStatus(ctx context.Context, requester authz.Identity, id string, req models.UpdatePaymentStatusRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	payment, err := s.loadForWrite(ctx, requester, id, authz.OpUpdate)
	if err != nil {
		return nil, err
	}

	if !payment.Status.CanTransitionTo(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedTransition, "")
	}

	payment.Status = req.Status
	if req.Status == models.PaymentStatusPaid {
		now := time.Now().UTC()
		payment.PaidDate = &now
	}

	if err := s.repo.Update(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment status")
	}

	s.recordAudit(ctx, requester.ID, models.AuditActionUpdate, "payment", payment.ID, req)
	return payment, nil
}

// Delete removes a fee entry.
func (s *PaymentService) Delete(ctx context.Context, requester authz.Identity, id string) error {
	if _, err := s.loadForWrite(ctx, requester, id, authz.OpDelete); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}

	s.recordAudit(ctx, requester.ID, models.AuditActionDelete, "payment", id, nil)
	return nil
}

func (s *PaymentService) loadForWrite(ctx context.Context, requester authz.Identity, id string, op authz.Op) (*models.Payment, error) {
	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	allowed, err := s.evaluator.CanWrite(ctx, authz.EntityPayment, authz.Row{ID: payment.ID, SubjectID: payment.StudentID}, requester, op)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can modify payments")
	}
	return payment, nil
}

func (s *PaymentService) recordAudit(ctx context.Context, identityID, action, resource, resourceID string, payload interface{}) {
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
