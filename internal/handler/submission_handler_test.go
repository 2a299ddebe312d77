package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edutrackers/edutrack-api/internal/authz"
	"github.com/edutrackers/edutrack-api/internal/middleware"
	"github.com/edutrackers/edutrack-api/internal/models"
	"github.com/edutrackers/edutrack-api/internal/service"
)

func authzEvaluator(roles *fakeRoles) *authz.Evaluator {
	return authz.NewEvaluator(roles, zap.NewNop())
}

type fakeSubmissionRepo struct {
	submissions map[string]models.Submission
}

func (f *fakeSubmissionRepo) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	var out []models.Submission
	for _, s := range f.submissions {
		if filter.StudentID != "" && s.StudentID != filter.StudentID {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (f *fakeSubmissionRepo) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	if s, ok := f.submissions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	if f.submissions == nil {
		f.submissions = make(map[string]models.Submission)
	}
	submission.ID = "sub-1"
	submission.Status = models.SubmissionStatusSubmitted
	f.submissions[submission.ID] = *submission
	return nil
}

func (f *fakeSubmissionRepo) UpdateGrade(ctx context.Context, submission *models.Submission) error {
	f.submissions[submission.ID] = *submission
	return nil
}

type fakeRoles struct {
	teachers map[string]bool
}

func (f *fakeRoles) IsTeacher(ctx context.Context, identityID string) (bool, error) {
	return f.teachers[identityID], nil
}

func newSubmissionHandler(repo *fakeSubmissionRepo, roles *fakeRoles) *SubmissionHandler {
	evaluator := authzEvaluator(roles)
	svc := service.NewSubmissionService(repo, nil, evaluator, roles, validator.New(), zap.NewNop())
	return NewSubmissionHandler(svc)
}

func authedContext(t *testing.T, method, target, body, identityID string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{IdentityID: identityID})
	return c, rec
}

func TestSubmissionHandlerCreateRecordsRequester(t *testing.T) {
	repo := &fakeSubmissionRepo{}
	h := newSubmissionHandler(repo, &fakeRoles{teachers: map[string]bool{}})

	body := `{"assignment_id":"9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"}`
	c, rec := authedContext(t, http.MethodPost, "/submissions", body, "student-1")

	h.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var envelope struct {
		Data models.Submission `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "student-1", envelope.Data.StudentID)
}

func TestSubmissionHandlerGradeForbiddenForStudents(t *testing.T) {
	repo := &fakeSubmissionRepo{submissions: map[string]models.Submission{
		"sub-1": {ID: "sub-1", StudentID: "student-1", Status: models.SubmissionStatusSubmitted},
	}}
	h := newSubmissionHandler(repo, &fakeRoles{teachers: map[string]bool{}})

	c, rec := authedContext(t, http.MethodPut, "/submissions/sub-1/grade", `{"grade":"A"}`, "student-1")
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}

	h.Grade(c)

	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}

func TestSubmissionHandlerListNarrowsStudent(t *testing.T) {
	repo := &fakeSubmissionRepo{submissions: map[string]models.Submission{
		"sub-1": {ID: "sub-1", StudentID: "student-1"},
		"sub-2": {ID: "sub-2", StudentID: "student-2"},
	}}
	h := newSubmissionHandler(repo, &fakeRoles{teachers: map[string]bool{}})

	c, rec := authedContext(t, http.MethodGet, "/submissions", "", "student-1")

	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data       []models.Submission `json:"data"`
		Pagination *models.Pagination  `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "student-1", envelope.Data[0].StudentID)
	assert.Equal(t, 1, envelope.Pagination.TotalCount)
}
