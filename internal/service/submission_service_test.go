package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edutrackers/edutrack-api/internal/authz"
	"github.com/edutrackers/edutrack-api/internal/models"
	"github.com/edutrackers/edutrack-api/internal/repository"
	appErrors "github.com/edutrackers/edutrack-api/pkg/errors"
)

type mockSubmissionRepo struct {
	submissions map[string]models.Submission
	createErr   error
	lastFilter  models.SubmissionFilter
}

func (m *mockSubmissionRepo) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	m.lastFilter = filter
	var out []models.Submission
	for _, s := range m.submissions {
		if filter.StudentID != "" && s.StudentID != filter.StudentID {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockSubmissionRepo) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	if s, ok := m.submissions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.submissions == nil {
		m.submissions = make(map[string]models.Submission)
	}
	if submission.ID == "" {
		submission.ID = "generated"
	}
	submission.Status = models.SubmissionStatusSubmitted
	m.submissions[submission.ID] = *submission
	return nil
}

func (m *mockSubmissionRepo) UpdateGrade(ctx context.Context, submission *models.Submission) error {
	m.submissions[submission.ID] = *submission
	return nil
}

func newSubmissionService(repo *mockSubmissionRepo, roles *stubRoles) *SubmissionService {
	return NewSubmissionService(repo, &stubAudit{}, newTestEvaluator(roles), roles, validator.New(), zap.NewNop())
}

const validAssignmentID = "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"

func TestSubmissionCreateForcesRequesterAsStudent(t *testing.T) {
	repo := &mockSubmissionRepo{}
	svc := newSubmissionService(repo, &stubRoles{teachers: map[string]bool{}})

	submission, err := svc.Create(context.Background(), authz.Identity{ID: "student-1"}, models.CreateSubmissionRequest{
		AssignmentID: validAssignmentID,
	})
	require.NoError(t, err)
	assert.Equal(t, "student-1", submission.StudentID)
	assert.Equal(t, models.SubmissionStatusSubmitted, submission.Status)
}

func TestSubmissionCreateDuplicateMapsToTypedError(t *testing.T) {
	repo := &mockSubmissionRepo{createErr: &pq.Error{Code: "23505", Constraint: repository.UniqueSubmissionConstraint}}
	svc := newSubmissionService(repo, &stubRoles{teachers: map[string]bool{}})

	_, err := svc.Create(context.Background(), authz.Identity{ID: "student-1"}, models.CreateSubmissionRequest{
		AssignmentID: validAssignmentID,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicateSubmission.Code, appErr.Code)
}

func TestSubmissionCreateMissingAssignmentMapsToInvalidReference(t *testing.T) {
	repo := &mockSubmissionRepo{createErr: &pq.Error{Code: "23503", Constraint: "submissions_assignment_id_fkey"}}
	svc := newSubmissionService(repo, &stubRoles{teachers: map[string]bool{}})

	_, err := svc.Create(context.Background(), authz.Identity{ID: "student-1"}, models.CreateSubmissionRequest{
		AssignmentID: validAssignmentID,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidReference.Code, appErr.Code)
}

func TestSubmissionListNarrowsStudentsToOwnRows(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s1": {ID: "s1", StudentID: "student-1"},
		"s2": {ID: "s2", StudentID: "student-2"},
	}}
	svc := newSubmissionService(repo, &stubRoles{teachers: map[string]bool{}})

	submissions, total, err := svc.List(context.Background(), authz.Identity{ID: "student-1"}, models.SubmissionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, submissions, 1)
	assert.Equal(t, "student-1", submissions[0].StudentID)
	assert.Equal(t, "student-1", repo.lastFilter.StudentID)
}

func TestSubmissionListForAnotherStudentReturnsEmpty(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s2": {ID: "s2", StudentID: "student-2"},
	}}
	svc := newSubmissionService(repo, &stubRoles{teachers: map[string]bool{}})

	submissions, total, err := svc.List(context.Background(), authz.Identity{ID: "student-1"}, models.SubmissionFilter{StudentID: "student-2"})
	require.NoError(t, err)
	assert.Empty(t, submissions)
	assert.Zero(t, total)
}

func TestSubmissionListTeacherSeesAll(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s1": {ID: "s1", StudentID: "student-1"},
		"s2": {ID: "s2", StudentID: "student-2"},
	}}
	svc := newSubmissionService(repo, &stubRoles{teachers: map[string]bool{"teacher-1": true}})

	_, total, err := svc.List(context.Background(), authz.Identity{ID: "teacher-1"}, models.SubmissionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestSubmissionGetHiddenFromOtherStudents(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s2": {ID: "s2", StudentID: "student-2"},
	}}
	svc := newSubmissionService(repo, &stubRoles{teachers: map[string]bool{}})

	_, err := svc.Get(context.Background(), authz.Identity{ID: "student-1"}, "s2")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code, "a hidden row must look like a missing row")
}

func TestSubmissionGradeTeacherOnly(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s1": {ID: "s1", StudentID: "student-1", Status: models.SubmissionStatusSubmitted},
	}}
	svc := newSubmissionService(repo, &stubRoles{teachers: map[string]bool{"teacher-1": true}})

	graded, err := svc.Grade(context.Background(), authz.Identity{ID: "teacher-1"}, "s1", models.GradeSubmissionRequest{Grade: "A"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusGraded, graded.Status)
	require.NotNil(t, graded.Grade)
	assert.Equal(t, "A", *graded.Grade)
}

func TestSubmissionGradeDeniedForStudents(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s1": {ID: "s1", StudentID: "student-1", Status: models.SubmissionStatusSubmitted},
	}}
	svc := newSubmissionService(repo, &stubRoles{teachers: map[string]bool{}})

	_, err := svc.Grade(context.Background(), authz.Identity{ID: "student-1"}, "s1", models.GradeSubmissionRequest{Grade: "A"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code, "students cannot grade, not even their own submission")
}
