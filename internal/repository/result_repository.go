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

// ResultRepository provides persistence for exam results.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates the repository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// List returns results matching the filter with total count.
func (r *ResultRepository) List(ctx context.Context, filter models.ResultFilter) ([]models.Result, int, error) {
	baseQuery := `FROM results WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ExamType != "" {
		conditions = append(conditions, fmt.Sprintf("exam_type = $%d", len(args)+1))
		args = append(args, filter.ExamType)
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, student_id, teacher_id, exam_type, subject, marks_obtained, total_marks, exam_date, remarks, created_at, updated_at %s ORDER BY exam_date DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var results []models.Result
	if err := r.db.SelectContext(ctx, &results, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}

	return results, total, nil
}

// GetByID returns a result by identifier.
func (r *ResultRepository) GetByID(ctx context.Context, id string) (*models.Result, error) {
	const query = `SELECT id, student_id, teacher_id, exam_type, subject, marks_obtained, total_marks, exam_date, remarks, created_at, updated_at FROM results WHERE id = $1`
	var result models.Result
	if err := r.db.GetContext(ctx, &result, query, id); err != nil {
		return nil, err
	}
	return &result, nil
}

// Create inserts a new result.
func (r *ResultRepository) Create(ctx context.Context, result *models.Result) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now
	const query = `INSERT INTO results (id, student_id, teacher_id, exam_type, subject, marks_obtained, total_marks, exam_date, remarks, created_at, updated_at)
VALUES (:id, :student_id, :teacher_id, :exam_type, :subject, :marks_obtained, :total_marks, :exam_date, :remarks, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return err
	}
	return nil
}

// Update modifies an existing result.
func (r *ResultRepository) Update(ctx context.Context, result *models.Result) error {
	result.UpdatedAt = time.Now().UTC()
	const query = `UPDATE results SET exam_type = :exam_type, subject = :subject, marks_obtained = :marks_obtained, total_marks = :total_marks, exam_date = :exam_date, remarks = :remarks, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return fmt.Errorf("update result: %w", err)
	}
	return nil
}

// Delete removes a result.
func (r *ResultRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM results WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	return nil
}
