package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/edutrackers/edutrack-api/internal/authz"
	"github.com/edutrackers/edutrack-api/internal/models"
)

// stubRoles answers teacher checks from a fixed set.
type stubRoles struct {
	teachers map[string]bool
	err      error
}

func (s *stubRoles) IsTeacher(ctx context.Context, identityID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.teachers[identityID], nil
}

func newTestEvaluator(roles *stubRoles) *authz.Evaluator {
	return authz.NewEvaluator(roles, zap.NewNop())
}

// stubAudit collects audit log writes.
type stubAudit struct {
	logs []models.AuditLog
}

func (s *stubAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, *log)
	return nil
}
