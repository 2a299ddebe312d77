package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrackers/edutrack-api/internal/models"
)

func TestCreateSubmissionDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec("INSERT INTO submissions").WillReturnResult(sqlmock.NewResult(1, 1))

	submission := &models.Submission{AssignmentID: "a1", StudentID: "s1"}
	err := repo.Create(context.Background(), submission)
	require.NoError(t, err)
	assert.NotEmpty(t, submission.ID)
	assert.Equal(t, models.SubmissionStatusSubmitted, submission.Status)
	assert.False(t, submission.SubmittedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSubmissionDuplicateSurfacesConstraint(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	pqErr := &pq.Error{Code: "23505", Constraint: UniqueSubmissionConstraint}
	mock.ExpectExec("INSERT INTO submissions").WillReturnError(pqErr)

	err := repo.Create(context.Background(), &models.Submission{AssignmentID: "a1", StudentID: "s1"})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, UniqueSubmissionConstraint))
	assert.False(t, IsForeignKeyViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSubmissionMissingAssignment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	pqErr := &pq.Error{Code: "23503", Constraint: "submissions_assignment_id_fkey"}
	mock.ExpectExec("INSERT INTO submissions").WillReturnError(pqErr)

	err := repo.Create(context.Background(), &models.Submission{AssignmentID: "missing", StudentID: "s1"})
	require.Error(t, err)
	assert.True(t, IsForeignKeyViolation(err))
	assert.False(t, IsUniqueViolation(err, UniqueSubmissionConstraint))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSubmissionsByStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	now := time.Now()
	listRows := sqlmock.NewRows([]string{"id", "assignment_id", "student_id", "file_url", "submitted_at", "status", "grade", "feedback", "created_at", "updated_at"}).
		AddRow("sub1", "a1", "s1", nil, now, string(models.SubmissionStatusSubmitted), nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, assignment_id, student_id, file_url, submitted_at, status, grade, feedback, created_at, updated_at FROM submissions WHERE 1=1 AND student_id = $1 ORDER BY submitted_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("s1").
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM submissions WHERE 1=1 AND student_id = $1")).
		WithArgs("s1").
		WillReturnRows(countRows)

	submissions, total, err := repo.List(context.Background(), models.SubmissionFilter{StudentID: "s1"})
	require.NoError(t, err)
	assert.Len(t, submissions, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateGradeTouchesGradingFieldsOnly(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec("UPDATE submissions SET grade").WillReturnResult(sqlmock.NewResult(0, 1))

	grade := "A"
	submission := &models.Submission{ID: "sub1", Grade: &grade, Status: models.SubmissionStatusGraded}
	err := repo.UpdateGrade(context.Background(), submission)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
