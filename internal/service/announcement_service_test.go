package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edutrackers/edutrack-api/internal/authz"
	"github.com/edutrackers/edutrack-api/internal/models"
	appErrors "github.com/edutrackers/edutrack-api/pkg/errors"
)

type mockAnnouncementRepo struct {
	announcements map[string]models.Announcement
	deleted       []string
}

func (m *mockAnnouncementRepo) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	var out []models.Announcement
	for _, a := range m.announcements {
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *mockAnnouncementRepo) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	if a, ok := m.announcements[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAnnouncementRepo) Create(ctx context.Context, announcement *models.Announcement) error {
	if m.announcements == nil {
		m.announcements = make(map[string]models.Announcement)
	}
	if announcement.ID == "" {
		announcement.ID = "generated"
	}
	m.announcements[announcement.ID] = *announcement
	return nil
}

func (m *mockAnnouncementRepo) Delete(ctx context.Context, id string) error {
	delete(m.announcements, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func newAnnouncementService(repo *mockAnnouncementRepo, roles *stubRoles) *AnnouncementService {
	return NewAnnouncementService(repo, &stubAudit{}, newTestEvaluator(roles), validator.New(), zap.NewNop())
}

func TestAnnouncementCreateTeacherOnly(t *testing.T) {
	repo := &mockAnnouncementRepo{}
	svc := newAnnouncementService(repo, &stubRoles{teachers: map[string]bool{"teacher-1": true}})

	req := models.CreateAnnouncementRequest{Title: "Exam Week", Message: "Midterms start Monday."}

	announcement, err := svc.Create(context.Background(), authz.Identity{ID: "teacher-1"}, req)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", announcement.TeacherID)

	_, err = svc.Create(context.Background(), authz.Identity{ID: "student-1"}, req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAnnouncementDeleteAuthorOnly(t *testing.T) {
	repo := &mockAnnouncementRepo{announcements: map[string]models.Announcement{
		"a1": {ID: "a1", TeacherID: "teacher-1", Title: "T", Message: "M"},
	}}
	svc := newAnnouncementService(repo, &stubRoles{teachers: map[string]bool{"teacher-1": true, "teacher-2": true}})

	err := svc.Delete(context.Background(), authz.Identity{ID: "teacher-2"}, "a1")
	require.Error(t, err, "other teachers cannot delete an author's announcement")

	err = svc.Delete(context.Background(), authz.Identity{ID: "teacher-1"}, "a1")
	require.NoError(t, err)
	assert.Contains(t, repo.deleted, "a1")
}

func TestAnnouncementListVisibleToStudents(t *testing.T) {
	repo := &mockAnnouncementRepo{announcements: map[string]models.Announcement{
		"a1": {ID: "a1", TeacherID: "teacher-1", Title: "T", Message: "M"},
	}}
	svc := newAnnouncementService(repo, &stubRoles{teachers: map[string]bool{"teacher-1": true}})

	announcements, total, err := svc.List(context.Background(), authz.Identity{ID: "student-1"}, models.AnnouncementFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, announcements, 1)
}
