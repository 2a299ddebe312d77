package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edutrackers/edutrack-api/internal/models"
)

// PaymentRepository provides persistence for tuition payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func paymentConditions(filter models.PaymentFilter) (string, []interface{}) {
	baseQuery := `FROM payments WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}
	return baseQuery, args
}

// List returns payments matching the filter with total count.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	baseQuery, args := paymentConditions(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, student_id, amount, payment_type, status, due_date, paid_date, semester, created_at, updated_at %s ORDER BY due_date DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	return payments, total, nil
}

// Totals sums amounts per status for the filtered set.
func (r *PaymentRepository) Totals(ctx context.Context, filter models.PaymentFilter) (*models.PaymentTotals, error) {
	baseQuery, args := paymentConditions(filter)
	query := fmt.Sprintf(`SELECT
COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0) AS paid,
COALESCE(SUM(amount) FILTER (WHERE status = 'pending'), 0) AS pending,
COALESCE(SUM(amount) FILTER (WHERE status = 'overdue'), 0) AS overdue
%s`, baseQuery)

	var totals models.PaymentTotals
	if err := r.db.GetContext(ctx, &totals, query, args...); err != nil {
		return nil, fmt.Errorf("payment totals: %w", err)
	}
	return &totals, nil
}

// GetByID returns a payment by identifier.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	const query = `SELECT id, student_id, amount, payment_type, status, due_date, paid_date, semester, created_at, updated_at FROM payments WHERE id = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Create inserts a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
	const query = `INSERT INTO payments (id, student_id, amount, payment_type, status, due_date, paid_date, semester, created_at, updated_at)
VALUES (:id, :student_id, :amount, :payment_type, :status, :due_date, :paid_date, :semester, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return err
	}
	return nil
}

// Update modifies an existing payment.
func (r *PaymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	payment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payments SET amount = :amount, payment_type = :payment_type, status = :status, due_date = :due_date, paid_date = :paid_date, semester = :semester, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

// Delete removes a payment.
func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return nil
}
