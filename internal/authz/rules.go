package authz

import "context"

type ruleKey struct {
	Entity Entity
	Op     Op
}

// The rule table. Absent (entity, op) pairs deny: profiles are never created
// or deleted through the data API (provisioning owns that lifecycle),
// submissions are never deleted, announcements are never updated in place.
var rules = map[ruleKey]Predicate{
	{EntityProfile, OpRead}:   selfOrTeacher(rowID),
	{EntityProfile, OpUpdate}: self(rowID),

	{EntityAssignment, OpRead}:   everyone,
	{EntityAssignment, OpCreate}: teacherOnly,
	{EntityAssignment, OpUpdate}: self(rowOwner),
	{EntityAssignment, OpDelete}: self(rowOwner),

	{EntitySubmission, OpRead}:   selfOrTeacher(rowSubject),
	{EntitySubmission, OpCreate}: self(rowSubject),
	{EntitySubmission, OpUpdate}: teacherOnly,

	{EntityResult, OpRead}:   selfOrTeacher(rowSubject),
	{EntityResult, OpCreate}: teacherOnly,
	{EntityResult, OpUpdate}: self(rowOwner),
	{EntityResult, OpDelete}: self(rowOwner),

	{EntityPayment, OpRead}:   selfOrTeacher(rowSubject),
	{EntityPayment, OpCreate}: teacherOnly,
	{EntityPayment, OpUpdate}: teacherOnly,
	{EntityPayment, OpDelete}: teacherOnly,

	{EntityAnnouncement, OpRead}:   everyone,
	{EntityAnnouncement, OpCreate}: teacherOnly,
	{EntityAnnouncement, OpDelete}: self(rowOwner),
}

// Row field selectors keep the predicate combinators entity-agnostic.

func rowID(row Row) string      { return row.ID }
func rowOwner(row Row) string   { return row.OwnerID }
func rowSubject(row Row) string { return row.SubjectID }

func everyone(ctx context.Context, dir RoleDirectory, requester Identity, row Row) (bool, error) {
	return true, nil
}

func teacherOnly(ctx context.Context, dir RoleDirectory, requester Identity, row Row) (bool, error) {
	return dir.IsTeacher(ctx, requester.ID)
}

// self allows the requester when the selected row field matches their id.
func self(field func(Row) string) Predicate {
	return func(ctx context.Context, dir RoleDirectory, requester Identity, row Row) (bool, error) {
		return requester.ID != "" && requester.ID == field(row), nil
	}
}

// selfOrTeacher allows the matching principal, falling back to the teacher
// check only when the cheap identity comparison fails.
func selfOrTeacher(field func(Row) string) Predicate {
	return func(ctx context.Context, dir RoleDirectory, requester Identity, row Row) (bool, error) {
		if requester.ID != "" && requester.ID == field(row) {
			return true, nil
		}
		return dir.IsTeacher(ctx, requester.ID)
	}
}
