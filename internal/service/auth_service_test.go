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
	"golang.org/x/crypto/bcrypt"

	"github.com/edutrackers/edutrack-api/internal/models"
	appErrors "github.com/edutrackers/edutrack-api/pkg/errors"
)

type mockIdentityRepo struct {
	identities    map[string]models.Identity
	profiles      map[string]models.Profile
	refreshTokens map[string]models.RefreshToken
	auditLogs     []models.AuditLog
	revokedAll    []string
	createErr     error
}

func newMockIdentityRepo() *mockIdentityRepo {
	return &mockIdentityRepo{
		identities:    make(map[string]models.Identity),
		profiles:      make(map[string]models.Profile),
		refreshTokens: make(map[string]models.RefreshToken),
	}
}

func (m *mockIdentityRepo) CreateWithProfile(ctx context.Context, identity *models.Identity, profile *models.Profile) error {
	if m.createErr != nil {
		return m.createErr
	}
	if identity.ID == "" {
		identity.ID = "identity-" + identity.Email
	}
	profile.ID = identity.ID
	m.identities[identity.ID] = *identity
	m.profiles[profile.ID] = *profile
	return nil
}

func (m *mockIdentityRepo) FindIdentityByEmail(ctx context.Context, email string) (*models.Identity, error) {
	for _, id := range m.identities {
		if id.Email == email {
			found := id
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockIdentityRepo) FindIdentityByID(ctx context.Context, id string) (*models.Identity, error) {
	if identity, ok := m.identities[id]; ok {
		return &identity, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockIdentityRepo) FindProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	if profile, ok := m.profiles[id]; ok {
		return &profile, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockIdentityRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	identity := m.identities[id]
	identity.LastLogin = &ts
	m.identities[id] = identity
	return nil
}

func (m *mockIdentityRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	identity := m.identities[id]
	identity.PasswordHash = passwordHash
	m.identities[id] = identity
	return nil
}

func (m *mockIdentityRepo) RevokeIdentityRefreshTokens(ctx context.Context, identityID string) error {
	m.revokedAll = append(m.revokedAll, identityID)
	return nil
}

func (m *mockIdentityRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = *token
	return nil
}

func (m *mockIdentityRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.refreshTokens[token]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockIdentityRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for key, t := range m.refreshTokens {
		if t.ID == id {
			t.Revoked = true
			m.refreshTokens[key] = t
		}
	}
	return nil
}

func (m *mockIdentityRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, *log)
	return nil
}

func newAuthService(repo *mockIdentityRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "edutrack-test",
	})
}

func seedIdentity(t *testing.T, repo *mockIdentityRepo, email, password string, role models.Role) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	identity := &models.Identity{Email: email, PasswordHash: string(hash)}
	profile := &models.Profile{Email: email, FullName: "Seeded", Role: role}
	require.NoError(t, repo.CreateWithProfile(context.Background(), identity, profile))
	return identity.ID
}

func TestRegisterDefaultsRoleAndFullName(t *testing.T) {
	repo := newMockIdentityRepo()
	svc := newAuthService(repo)

	profile, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "new@example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, profile.Role)
	assert.Equal(t, "New User", profile.FullName)
	assert.NotEmpty(t, profile.ID)

	identity, err := repo.FindIdentityByID(context.Background(), profile.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, profile.ID, "profile and identity share one id")
}

func TestRegisterTeacherRoleHonoured(t *testing.T) {
	repo := newMockIdentityRepo()
	svc := newAuthService(repo)

	profile, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "teach@example.com",
		Password: "secret1",
		FullName: "Ms. Frizzle",
		Role:     models.RoleTeacher,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, profile.Role)
	assert.Equal(t, "Ms. Frizzle", profile.FullName)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	repo := newMockIdentityRepo()
	svc := newAuthService(repo)
	seedIdentity(t, repo, "taken@example.com", "secret1", models.RoleStudent)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "taken@example.com",
		Password: "secret1",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestLoginIssuesTokens(t *testing.T) {
	repo := newMockIdentityRepo()
	svc := newAuthService(repo)
	identityID := seedIdentity(t, repo, "user@example.com", "secret1", models.RoleStudent)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, identityID, resp.Profile.ID)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, identityID, claims.IdentityID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newMockIdentityRepo()
	svc := newAuthService(repo)
	seedIdentity(t, repo, "user@example.com", "secret1", models.RoleStudent)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "nope123"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestRefreshTokenRotates(t *testing.T) {
	repo := newMockIdentityRepo()
	svc := newAuthService(repo)
	seedIdentity(t, repo, "user@example.com", "secret1", models.RoleStudent)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "secret1"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken, "refresh must rotate the token")

	used := repo.refreshTokens[login.RefreshToken]
	assert.True(t, used.Revoked, "the used refresh token is revoked")
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	repo := newMockIdentityRepo()
	svc := newAuthService(repo)
	identityID := seedIdentity(t, repo, "user@example.com", "secret1", models.RoleStudent)

	err := svc.ChangePassword(context.Background(), identityID, models.ChangePasswordRequest{
		OldPassword: "secret1",
		NewPassword: "secret2",
	})
	require.NoError(t, err)
	assert.Contains(t, repo.revokedAll, identityID)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "secret2"})
	require.NoError(t, err)
}
