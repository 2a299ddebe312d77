// Package authz is the row-level authorization core. Every read or write of a
// guarded entity is decided here from {requesting identity, row projection,
// operation} against an explicit rule table, independent of the storage
// engine, so the same rules are unit-testable without a database.
package authz

import "context"

// Entity names a guarded table.
type Entity string

const (
	EntityProfile      Entity = "profile"
	EntityAssignment   Entity = "assignment"
	EntitySubmission   Entity = "submission"
	EntityResult       Entity = "result"
	EntityPayment      Entity = "payment"
	EntityAnnouncement Entity = "announcement"
)

// Op is a row operation.
type Op string

const (
	OpRead   Op = "read"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Identity is the requesting principal. It is always passed explicitly; there
// is no ambient current-user state.
type Identity struct {
	ID string
}

// Row is the projection of a stored row that predicates may inspect.
// OwnerID is the authoring teacher where the entity has one; SubjectID is the
// student the row concerns. Fields not applicable to an entity stay empty.
type Row struct {
	ID        string
	OwnerID   string
	SubjectID string
}

// RoleDirectory answers role questions through a privileged path that
// bypasses row-level filtering. A predicate guarding the profile table needs
// the caller's role from that same table; routing the lookup through the
// directory instead of the evaluator keeps policy evaluation non-reentrant.
type RoleDirectory interface {
	IsTeacher(ctx context.Context, identityID string) (bool, error)
}

// Predicate decides a single (entity, op) rule. Predicates are pure functions
// of their inputs plus the directory snapshot and must be safe under
// arbitrary concurrent invocation.
type Predicate func(ctx context.Context, dir RoleDirectory, requester Identity, row Row) (bool, error)
