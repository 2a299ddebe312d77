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

type mockProfileRepo struct {
	profiles map[string]models.Profile
	updated  []string
}

func (m *mockProfileRepo) FindProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	if p, ok := m.profiles[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProfileRepo) ListProfiles(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error) {
	var out []models.Profile
	for _, p := range m.profiles {
		if filter.Role != nil && p.Role != *filter.Role {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockProfileRepo) UpdateProfile(ctx context.Context, profile *models.Profile) error {
	m.profiles[profile.ID] = *profile
	m.updated = append(m.updated, profile.ID)
	return nil
}

func newProfileService(repo *mockProfileRepo, roles *stubRoles) *ProfileService {
	return NewProfileService(repo, newTestEvaluator(roles), roles, validator.New(), zap.NewNop())
}

func TestProfileGetOwnAllowed(t *testing.T) {
	repo := &mockProfileRepo{profiles: map[string]models.Profile{
		"student-1": {ID: "student-1", Role: models.RoleStudent},
	}}
	svc := newProfileService(repo, &stubRoles{teachers: map[string]bool{}})

	profile, err := svc.Get(context.Background(), authz.Identity{ID: "student-1"}, "student-1")
	require.NoError(t, err)
	assert.Equal(t, "student-1", profile.ID)
}

func TestProfileGetOtherStudentHidden(t *testing.T) {
	repo := &mockProfileRepo{profiles: map[string]models.Profile{
		"student-2": {ID: "student-2", Role: models.RoleStudent},
	}}
	svc := newProfileService(repo, &stubRoles{teachers: map[string]bool{}})

	_, err := svc.Get(context.Background(), authz.Identity{ID: "student-1"}, "student-2")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestProfileListCollapsesToSelfForStudents(t *testing.T) {
	repo := &mockProfileRepo{profiles: map[string]models.Profile{
		"student-1": {ID: "student-1", Role: models.RoleStudent},
		"student-2": {ID: "student-2", Role: models.RoleStudent},
	}}
	svc := newProfileService(repo, &stubRoles{teachers: map[string]bool{}})

	profiles, total, err := svc.List(context.Background(), authz.Identity{ID: "student-1"}, models.ProfileFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, profiles, 1)
	assert.Equal(t, "student-1", profiles[0].ID)
}

func TestProfileListTeacherSeesAll(t *testing.T) {
	repo := &mockProfileRepo{profiles: map[string]models.Profile{
		"student-1": {ID: "student-1", Role: models.RoleStudent},
		"teacher-1": {ID: "teacher-1", Role: models.RoleTeacher},
	}}
	svc := newProfileService(repo, &stubRoles{teachers: map[string]bool{"teacher-1": true}})

	_, total, err := svc.List(context.Background(), authz.Identity{ID: "teacher-1"}, models.ProfileFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestProfileUpdateMeKeepsRoleAndEmail(t *testing.T) {
	repo := &mockProfileRepo{profiles: map[string]models.Profile{
		"student-1": {ID: "student-1", Email: "s1@example.com", FullName: "Old", Role: models.RoleStudent},
	}}
	svc := newProfileService(repo, &stubRoles{teachers: map[string]bool{}})

	updated, err := svc.UpdateMe(context.Background(), authz.Identity{ID: "student-1"}, models.UpdateProfileRequest{FullName: "New Name"})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.FullName)
	assert.Equal(t, models.RoleStudent, updated.Role)
	assert.Equal(t, "s1@example.com", updated.Email)
}
