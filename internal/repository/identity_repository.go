package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edutrackers/edutrack-api/internal/models"
)

// IdentityRepository provides database access for identities, profiles,
// refresh tokens and audit logs.
type IdentityRepository struct {
	db *sqlx.DB
}

// NewIdentityRepository creates a new instance of IdentityRepository.
func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// CreateWithProfile inserts the identity and its profile in one transaction.
// Either both rows exist afterwards or neither does; an identity can never be
// left without a profile.
func (r *IdentityRepository) CreateWithProfile(ctx context.Context, identity *models.Identity, profile *models.Profile) error {
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	profile.ID = identity.ID
	now := time.Now().UTC()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin provisioning tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const identityQuery = `INSERT INTO identities (id, email, password_hash, created_at) VALUES (:id, :email, :password_hash, :created_at)`
	if _, err := tx.NamedExecContext(ctx, identityQuery, identity); err != nil {
		return fmt.Errorf("create identity: %w", err)
	}

	const profileQuery = `INSERT INTO profiles (id, email, full_name, role, roll_number, course, department, phone, created_at, updated_at)
VALUES (:id, :email, :full_name, :role, :roll_number, :course, :department, :phone, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, profileQuery, profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit provisioning tx: %w", err)
	}
	return nil
}

// FindIdentityByEmail returns an identity by email address.
func (r *IdentityRepository) FindIdentityByEmail(ctx context.Context, email string) (*models.Identity, error) {
	const query = `SELECT id, email, password_hash, last_login, created_at FROM identities WHERE email = $1 LIMIT 1`
	var identity models.Identity
	if err := r.db.GetContext(ctx, &identity, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find identity by email: %w", err)
	}
	return &identity, nil
}

// FindIdentityByID returns an identity by identifier.
func (r *IdentityRepository) FindIdentityByID(ctx context.Context, id string) (*models.Identity, error) {
	const query = `SELECT id, email, password_hash, last_login, created_at FROM identities WHERE id = $1 LIMIT 1`
	var identity models.Identity
	if err := r.db.GetContext(ctx, &identity, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find identity by id: %w", err)
	}
	return &identity, nil
}

// FindProfileByID returns the profile for an identity.
func (r *IdentityRepository) FindProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	const query = `SELECT id, email, full_name, role, roll_number, course, department, phone, created_at, updated_at FROM profiles WHERE id = $1 LIMIT 1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile by id: %w", err)
	}
	return &profile, nil
}

// IsTeacher is the privileged role lookup backing the policy evaluator. It
// reads the profiles table directly, without any row-level scoping, so it can
// be called from inside a profile-visibility predicate without re-entering
// policy evaluation.
func (r *IdentityRepository) IsTeacher(ctx context.Context, identityID string) (bool, error) {
	if identityID == "" {
		return false, nil
	}
	const query = `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1 AND role = 'teacher')`
	var isTeacher bool
	if err := r.db.GetContext(ctx, &isTeacher, query, identityID); err != nil {
		return false, fmt.Errorf("role lookup: %w", err)
	}
	return isTeacher, nil
}

// ListProfiles returns profiles based on filters with total count.
func (r *IdentityRepository) ListProfiles(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error) {
	baseQuery := `FROM profiles WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(full_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
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

	listQuery := fmt.Sprintf("SELECT id, email, full_name, role, roll_number, course, department, phone, created_at, updated_at %s ORDER BY full_name ASC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var profiles []models.Profile
	if err := r.db.SelectContext(ctx, &profiles, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list profiles: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}

	return profiles, total, nil
}

// UpdateProfile updates the self-service fields of a profile. Role is not in
// the statement on purpose; it is fixed at provisioning.
func (r *IdentityRepository) UpdateProfile(ctx context.Context, profile *models.Profile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `UPDATE profiles SET full_name = :full_name, roll_number = :roll_number, course = :course, department = :department, phone = :phone, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last_login timestamp for an identity.
func (r *IdentityRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE identities SET last_login = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *IdentityRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE identities SET password_hash = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// DeleteIdentity removes an identity; the profile row follows via the
// ON DELETE CASCADE constraint, keeping the 1:1 lifecycle intact.
func (r *IdentityRepository) DeleteIdentity(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *IdentityRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, identity_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:id, :identity_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *IdentityRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, identity_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *IdentityRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeIdentityRefreshTokens revokes all refresh tokens for an identity.
func (r *IdentityRepository) RevokeIdentityRefreshTokens(ctx context.Context, identityID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE identity_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, identityID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke identity refresh tokens: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *IdentityRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, identity_id, action, resource, resource_id, new_values, ip_address, user_agent, created_at) VALUES (:id, :identity_id, :action, :resource, :resource_id, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
