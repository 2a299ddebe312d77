package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edutrackers/edutrack-api/internal/authz"
	"github.com/edutrackers/edutrack-api/internal/models"
	appErrors "github.com/edutrackers/edutrack-api/pkg/errors"
)

type mockPaymentRepo struct {
	payments   map[string]models.Payment
	lastFilter models.PaymentFilter
}

func (m *mockPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	m.lastFilter = filter
	var out []models.Payment
	for _, p := range m.payments {
		if filter.StudentID != "" && p.StudentID != filter.StudentID {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockPaymentRepo) Totals(ctx context.Context, filter models.PaymentFilter) (*models.PaymentTotals, error) {
	totals := &models.PaymentTotals{}
	for _, p := range m.payments {
		if filter.StudentID != "" && p.StudentID != filter.StudentID {
			continue
		}
		switch p.Status {
		case models.PaymentStatusPaid:
			totals.Paid += p.Amount
		case models.PaymentStatusPending:
			totals.Pending += p.Amount
		case models.PaymentStatusOverdue:
			totals.Overdue += p.Amount
		}
	}
	return totals, nil
}

func (m *mockPaymentRepo) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	if p, ok := m.payments[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if m.payments == nil {
		m.payments = make(map[string]models.Payment)
	}
	if payment.ID == "" {
		payment.ID = "generated"
	}
	m.payments[payment.ID] = *payment
	return nil
}

func (m *mockPaymentRepo) Update(ctx context.Context, payment *models.Payment) error {
	m.payments[payment.ID] = *payment
	return nil
}

func (m *mockPaymentRepo) Delete(ctx context.Context, id string) error {
	delete(m.payments, id)
	return nil
}

func newPaymentService(repo *mockPaymentRepo, roles *stubRoles) *PaymentService {
	return NewPaymentService(repo, &stubAudit{}, newTestEvaluator(roles), roles, validator.New(), zap.NewNop())
}

const validStudentID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"

func TestPaymentMarkPaidStampsPaidDate(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]models.Payment{
		"p1": {ID: "p1", StudentID: "student-1", Amount: 100, Status: models.PaymentStatusPending},
	}}
	svc := newPaymentService(repo, &stubRoles{teachers: map[string]bool{"teacher-1": true}})

	payment, err := svc.UpdateStatus(context.Background(), authz.Identity{ID: "teacher-1"}, "p1", models.UpdatePaymentStatusRequest{Status: models.PaymentStatusPaid})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
	require.NotNil(t, payment.PaidDate)
	assert.WithinDuration(t, time.Now().UTC(), *payment.PaidDate, time.Minute)
}

func TestPaymentMarkOverdueLeavesPaidDateEmpty(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]models.Payment{
		"p1": {ID: "p1", StudentID: "student-1", Amount: 100, Status: models.PaymentStatusPending},
	}}
	svc := newPaymentService(repo, &stubRoles{teachers: map[string]bool{"teacher-1": true}})

	payment, err := svc.UpdateStatus(context.Background(), authz.Identity{ID: "teacher-1"}, "p1", models.UpdatePaymentStatusRequest{Status: models.PaymentStatusOverdue})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusOverdue, payment.Status)
	assert.Nil(t, payment.PaidDate)
}

func TestPaymentReversalRejected(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]models.Payment{
		"p1": {ID: "p1", StudentID: "student-1", Amount: 100, Status: models.PaymentStatusPaid},
	}}
	svc := newPaymentService(repo, &stubRoles{teachers: map[string]bool{"teacher-1": true}})

	_, err := svc.UpdateStatus(context.Background(), authz.Identity{ID: "teacher-1"}, "p1", models.UpdatePaymentStatusRequest{Status: models.PaymentStatusOverdue})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnsupportedTransition.Code, appErr.Code)
}

func TestPaymentStudentCannotMarkOwnFeePaid(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]models.Payment{
		"p1": {ID: "p1", StudentID: "student-1", Amount: 100, Status: models.PaymentStatusPending},
	}}
	svc := newPaymentService(repo, &stubRoles{teachers: map[string]bool{}})

	_, err := svc.UpdateStatus(context.Background(), authz.Identity{ID: "student-1"}, "p1", models.UpdatePaymentStatusRequest{Status: models.PaymentStatusPaid})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestPaymentCreateTeacherOnly(t *testing.T) {
	repo := &mockPaymentRepo{}
	svc := newPaymentService(repo, &stubRoles{teachers: map[string]bool{"teacher-1": true}})

	req := models.CreatePaymentRequest{
		StudentID:   validStudentID,
		Amount:      250,
		PaymentType: "tuition",
		DueDate:     time.Now().Add(30 * 24 * time.Hour),
	}

	payment, err := svc.Create(context.Background(), authz.Identity{ID: "teacher-1"}, req)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status, "new payments always start pending")

	_, err = svc.Create(context.Background(), authz.Identity{ID: "student-1"}, req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestPaymentListNarrowsStudentsAndSumsTotals(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]models.Payment{
		"p1": {ID: "p1", StudentID: "student-1", Amount: 100, Status: models.PaymentStatusPaid},
		"p2": {ID: "p2", StudentID: "student-1", Amount: 50, Status: models.PaymentStatusPending},
		"p3": {ID: "p3", StudentID: "student-2", Amount: 75, Status: models.PaymentStatusOverdue},
	}}
	svc := newPaymentService(repo, &stubRoles{teachers: map[string]bool{}})

	payments, total, totals, err := svc.List(context.Background(), authz.Identity{ID: "student-1"}, models.PaymentFilter{})
	require.NoError(t, err)
	assert.Len(t, payments, 2)
	assert.Equal(t, 2, total)
	assert.Equal(t, 100.0, totals.Paid)
	assert.Equal(t, 50.0, totals.Pending)
	assert.Zero(t, totals.Overdue, "another student's overdue fee must not leak into totals")
}
