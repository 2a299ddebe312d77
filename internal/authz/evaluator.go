package authz

import (
	"context"

	"go.uber.org/zap"
)

// Metrics receives authorization decision observations.
type Metrics interface {
	ObserveAuthzDecision(entity Entity, op Op, allowed bool)
}

// Evaluator decides allow/deny for every row operation. It is stateless apart
// from its collaborators and safe for concurrent use.
type Evaluator struct {
	dir     RoleDirectory
	logger  *zap.Logger
	metrics Metrics
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMetrics attaches a decision observer.
func WithMetrics(m Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// NewEvaluator constructs an Evaluator over the given role directory.
func NewEvaluator(dir RoleDirectory, logger *zap.Logger, opts ...Option) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Evaluator{dir: dir, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CanRead reports whether the requester may see the row. Callers surface a
// denial as an empty result set, never as an error.
func (e *Evaluator) CanRead(ctx context.Context, entity Entity, row Row, requester Identity) (bool, error) {
	return e.decide(ctx, entity, OpRead, row, requester)
}

// CanWrite reports whether the requester may perform the mutating op on the
// row. OpRead is rejected; use CanRead.
func (e *Evaluator) CanWrite(ctx context.Context, entity Entity, row Row, requester Identity, op Op) (bool, error) {
	if op == OpRead {
		return false, nil
	}
	return e.decide(ctx, entity, op, row, requester)
}

func (e *Evaluator) decide(ctx context.Context, entity Entity, op Op, row Row, requester Identity) (bool, error) {
	predicate, ok := rules[ruleKey{entity, op}]
	if !ok {
		// No rule matched: deny. Unsupported operations are not errors.
		e.observe(entity, op, false)
		return false, nil
	}

	allowed, err := predicate(ctx, e.dir, requester, row)
	if err != nil {
		return false, err
	}

	e.observe(entity, op, allowed)
	if !allowed {
		e.logger.Debug("authorization denied",
			zap.String("entity", string(entity)),
			zap.String("op", string(op)),
			zap.String("requester", requester.ID),
			zap.String("row", row.ID),
		)
	}
	return allowed, nil
}

func (e *Evaluator) observe(entity Entity, op Op, allowed bool) {
	if e.metrics != nil {
		e.metrics.ObserveAuthzDecision(entity, op, allowed)
	}
}
