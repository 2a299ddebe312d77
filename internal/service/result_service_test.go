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

type mockResultRepo struct {
	results map[string]models.Result
	deleted []string
}

func (m *mockResultRepo) List(ctx context.Context, filter models.ResultFilter) ([]models.Result, int, error) {
	var out []models.Result
	for _, r := range m.results {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *mockResultRepo) GetByID(ctx context.Context, id string) (*models.Result, error) {
	if r, ok := m.results[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockResultRepo) Create(ctx context.Context, result *models.Result) error {
	if m.results == nil {
		m.results = make(map[string]models.Result)
	}
	if result.ID == "" {
		result.ID = "generated"
	}
	m.results[result.ID] = *result
	return nil
}

func (m *mockResultRepo) Update(ctx context.Context, result *models.Result) error {
	m.results[result.ID] = *result
	return nil
}

func (m *mockResultRepo) Delete(ctx context.Context, id string) error {
	delete(m.results, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func newResultService(repo *mockResultRepo, roles *stubRoles) *ResultService {
	return NewResultService(repo, &stubAudit{}, newTestEvaluator(roles), roles, validator.New(), zap.NewNop())
}

func validResultRequest() models.CreateResultRequest {
	return models.CreateResultRequest{
		StudentID:     validStudentID,
		ExamType:      "midterm",
		Subject:       "Mathematics",
		MarksObtained: 85,
		TotalMarks:    100,
		ExamDate:      time.Now().Add(-24 * time.Hour),
	}
}

func TestResultCreateComputesDerivedFields(t *testing.T) {
	repo := &mockResultRepo{}
	svc := newResultService(repo, &stubRoles{teachers: map[string]bool{"teacher-1": true}})

	view, err := svc.Create(context.Background(), authz.Identity{ID: "teacher-1"}, validResultRequest())
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", view.TeacherID, "the authoring teacher is the requester")
	assert.InDelta(t, 85.0, view.Percentage, 0.001)
	assert.Equal(t, "A", view.LetterGrade)
}

func TestResultCreateRejectsMarksAboveTotal(t *testing.T) {
	repo := &mockResultRepo{}
	svc := newResultService(repo, &stubRoles{teachers: map[string]bool{"teacher-1": true}})

	req := validResultRequest()
	req.MarksObtained = 110
	_, err := svc.Create(context.Background(), authz.Identity{ID: "teacher-1"}, req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestResultCreateDeniedForStudents(t *testing.T) {
	repo := &mockResultRepo{}
	svc := newResultService(repo, &stubRoles{teachers: map[string]bool{}})

	_, err := svc.Create(context.Background(), authz.Identity{ID: "student-1"}, validResultRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestResultUpdateAuthorOnly(t *testing.T) {
	repo := &mockResultRepo{results: map[string]models.Result{
		"r1": {ID: "r1", StudentID: "student-1", TeacherID: "teacher-1", ExamType: "midterm", Subject: "Math", MarksObtained: 50, TotalMarks: 100, ExamDate: time.Now()},
	}}
	svc := newResultService(repo, &stubRoles{teachers: map[string]bool{"teacher-1": true, "teacher-2": true}})

	req := models.UpdateResultRequest{ExamType: "midterm", Subject: "Math", MarksObtained: 60, TotalMarks: 100, ExamDate: time.Now()}

	_, err := svc.Update(context.Background(), authz.Identity{ID: "teacher-2"}, "r1", req)
	require.Error(t, err, "another teacher cannot correct the row")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	view, err := svc.Update(context.Background(), authz.Identity{ID: "teacher-1"}, "r1", req)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, view.MarksObtained, 0.001)
}

func TestResultListNarrowsStudents(t *testing.T) {
	repo := &mockResultRepo{results: map[string]models.Result{
		"r1": {ID: "r1", StudentID: "student-1", TeacherID: "teacher-1", MarksObtained: 95, TotalMarks: 100},
		"r2": {ID: "r2", StudentID: "student-2", TeacherID: "teacher-1", MarksObtained: 40, TotalMarks: 100},
	}}
	svc := newResultService(repo, &stubRoles{teachers: map[string]bool{}})

	views, total, err := svc.List(context.Background(), authz.Identity{ID: "student-1"}, models.ResultFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, views, 1)
	assert.Equal(t, "A+", views[0].LetterGrade)
}

func TestResultDeleteAuthorOnly(t *testing.T) {
	repo := &mockResultRepo{results: map[string]models.Result{
		"r1": {ID: "r1", StudentID: "student-1", TeacherID: "teacher-1"},
	}}
	svc := newResultService(repo, &stubRoles{teachers: map[string]bool{"teacher-1": true, "teacher-2": true}})

	err := svc.Delete(context.Background(), authz.Identity{ID: "teacher-2"}, "r1")
	require.Error(t, err)

	err = svc.Delete(context.Background(), authz.Identity{ID: "teacher-1"}, "r1")
	require.NoError(t, err)
	assert.Contains(t, repo.deleted, "r1")
}
