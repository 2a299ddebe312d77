package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edutrackers/edutrack-api/internal/authz"
	"github.com/edutrackers/edutrack-api/internal/models"
	appErrors "github.com/edutrackers/edutrack-api/pkg/errors"
)

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type profileRepository interface {
	FindProfileByID(ctx context.Context, id string) (*models.Profile, error)
	ListProfiles(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error)
	UpdateProfile(ctx context.Context, profile *models.Profile) error
}

// ProfileService exposes role-scoped access to profiles. Students see only
// their own profile; teachers see every profile. Updates are always
// self-only, teacher or not.
type ProfileService struct {
	repo      profileRepository
	evaluator *authz.Evaluator
	roles     authz.RoleDirectory
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs a ProfileService.
func NewProfileService(repo profileRepository, evaluator *authz.Evaluator, roles authz.RoleDirectory, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProfileService{repo: repo, evaluator: evaluator, roles: roles, validator: validate, logger: logger}
}

// Get returns a single profile if the requester may see it. A profile hidden
// by policy is indistinguishable from one that does not exist.
func (s *ProfileService) Get(ctx context.Context, requester authz.Identity, id string) (*models.Profile, error) {
	profile, err := s.repo.FindProfileByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}

	allowed, err := s.evaluator.CanRead(ctx, authz.EntityProfile, authz.Row{ID: profile.ID}, requester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
	}
	return profile, nil
}

// Me returns the requester's own profile.
func (s *ProfileService) Me(ctx context.Context, requester authz.Identity) (*models.Profile, error) {
	return s.Get(ctx, requester, requester.ID)
}

// List returns the profiles visible to the requester. For students the
// listing collapses to their own row instead of erroring.
func (s *ProfileService) List(ctx context.Context, requester authz.Identity, filter models.ProfileFilter) ([]models.Profile, int, error) {
	isTeacher, err := s.roles.IsTeacher(ctx, requester.ID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "role lookup failed")
	}

	if !isTeacher {
		profile, err := s.repo.FindProfileByID(ctx, requester.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return []models.Profile{}, 0, nil
			}
			return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
		}
		if filter.Role != nil && *filter.Role != profile.Role {
			return []models.Profile{}, 0, nil
		}
		return []models.Profile{*profile}, 1, nil
	}

	profiles, total, err := s.repo.ListProfiles(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list profiles")
	}
	return profiles, total, nil
}

// UpdateMe edits the requester's own profile. The rule table permits profile
// updates for the owner only, so no other id is accepted here.
func (s *ProfileService) UpdateMe(ctx context.Context, requester authz.Identity, req models.UpdateProfileRequest) (*models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	profile, err := s.repo.FindProfileByID(ctx, requester.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}

	allowed, err := s.evaluator.CanWrite(ctx, authz.EntityProfile, authz.Row{ID: profile.ID}, requester, authz.OpUpdate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "authorization check failed")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot update this profile")
	}

	profile.FullName = req.FullName
	profile.RollNumber = req.RollNumber
	profile.Course = req.Course
	profile.Department = req.Department
	profile.Phone = req.Phone
	profile.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateProfile(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return profile, nil
}
