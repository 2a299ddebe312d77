package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubDirectory struct {
	teachers map[string]bool
	calls    int
}

func (d *stubDirectory) IsTeacher(ctx context.Context, identityID string) (bool, error) {
	d.calls++
	return d.teachers[identityID], nil
}

func newTestEvaluator(teachers ...string) (*Evaluator, *stubDirectory) {
	dir := &stubDirectory{teachers: map[string]bool{}}
	for _, t := range teachers {
		dir.teachers[t] = true
	}
	return NewEvaluator(dir, zap.NewNop()), dir
}

func TestProfileReadOwnAndAny(t *testing.T) {
	eval, _ := newTestEvaluator("teacher-1")
	ctx := context.Background()

	row := Row{ID: "student-1"}

	ok, err := eval.CanRead(ctx, EntityProfile, row, Identity{ID: "student-1"})
	require.NoError(t, err)
	assert.True(t, ok, "a profile is readable by its own holder")

	ok, err = eval.CanRead(ctx, EntityProfile, row, Identity{ID: "teacher-1"})
	require.NoError(t, err)
	assert.True(t, ok, "teachers read any profile")

	ok, err = eval.CanRead(ctx, EntityProfile, row, Identity{ID: "student-2"})
	require.NoError(t, err)
	assert.False(t, ok, "students never read other profiles")
}

func TestProfileUpdateSelfOnly(t *testing.T) {
	eval, _ := newTestEvaluator("teacher-1")
	ctx := context.Background()

	row := Row{ID: "student-1"}

	ok, err := eval.CanWrite(ctx, EntityProfile, row, Identity{ID: "student-1"}, OpUpdate)
	require.NoError(t, err)
	assert.True(t, ok)

	// Even teachers cannot update someone else's profile.
	ok, err = eval.CanWrite(ctx, EntityProfile, row, Identity{ID: "teacher-1"}, OpUpdate)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAssignmentRules(t *testing.T) {
	eval, _ := newTestEvaluator("teacher-1", "teacher-2")
	ctx := context.Background()

	row := Row{ID: "a1", OwnerID: "teacher-1"}

	ok, err := eval.CanRead(ctx, EntityAssignment, row, Identity{ID: "student-1"})
	require.NoError(t, err)
	assert.True(t, ok, "assignments are readable by everyone")

	ok, err = eval.CanWrite(ctx, EntityAssignment, Row{}, Identity{ID: "student-1"}, OpCreate)
	require.NoError(t, err)
	assert.False(t, ok, "students cannot create assignments")

	ok, err = eval.CanWrite(ctx, EntityAssignment, Row{}, Identity{ID: "teacher-1"}, OpCreate)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eval.CanWrite(ctx, EntityAssignment, row, Identity{ID: "teacher-2"}, OpUpdate)
	require.NoError(t, err)
	assert.False(t, ok, "only the owning teacher mutates an assignment")

	ok, err = eval.CanWrite(ctx, EntityAssignment, row, Identity{ID: "teacher-1"}, OpDelete)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSubmissionRules(t *testing.T) {
	eval, _ := newTestEvaluator("teacher-1")
	ctx := context.Background()

	row := Row{ID: "sub1", SubjectID: "student-1"}

	ok, err := eval.CanWrite(ctx, EntitySubmission, row, Identity{ID: "student-1"}, OpCreate)
	require.NoError(t, err)
	assert.True(t, ok, "students create their own submissions")

	ok, err = eval.CanWrite(ctx, EntitySubmission, row, Identity{ID: "student-2"}, OpCreate)
	require.NoError(t, err)
	assert.False(t, ok, "students cannot submit on behalf of others")

	ok, err = eval.CanRead(ctx, EntitySubmission, row, Identity{ID: "student-2"})
	require.NoError(t, err)
	assert.False(t, ok, "a student cannot read another student's submission")

	ok, err = eval.CanRead(ctx, EntitySubmission, row, Identity{ID: "teacher-1"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eval.CanWrite(ctx, EntitySubmission, row, Identity{ID: "student-1"}, OpUpdate)
	require.NoError(t, err)
	assert.False(t, ok, "submission content is immutable to the student; grading is teacher-only")

	ok, err = eval.CanWrite(ctx, EntitySubmission, row, Identity{ID: "teacher-1"}, OpUpdate)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eval.CanWrite(ctx, EntitySubmission, row, Identity{ID: "teacher-1"}, OpDelete)
	require.NoError(t, err)
	assert.False(t, ok, "submissions have no delete rule")
}

func TestResultRules(t *testing.T) {
	eval, _ := newTestEvaluator("teacher-1", "teacher-2")
	ctx := context.Background()

	row := Row{ID: "r1", OwnerID: "teacher-1", SubjectID: "student-1"}

	ok, err := eval.CanRead(ctx, EntityResult, row, Identity{ID: "student-1"})
	require.NoError(t, err)
	assert.True(t, ok, "the subject student reads their result")

	ok, err = eval.CanRead(ctx, EntityResult, row, Identity{ID: "student-2"})
	require.NoError(t, err)
	assert.False(t, ok, "other students cannot read the result")

	ok, err = eval.CanRead(ctx, EntityResult, row, Identity{ID: "teacher-2"})
	require.NoError(t, err)
	assert.True(t, ok, "any teacher reads any result")

	ok, err = eval.CanWrite(ctx, EntityResult, Row{}, Identity{ID: "student-1"}, OpCreate)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = eval.CanWrite(ctx, EntityResult, row, Identity{ID: "teacher-2"}, OpUpdate)
	require.NoError(t, err)
	assert.False(t, ok, "only the authoring teacher updates a result")

	ok, err = eval.CanWrite(ctx, EntityResult, row, Identity{ID: "teacher-1"}, OpUpdate)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPaymentRules(t *testing.T) {
	eval, _ := newTestEvaluator("teacher-1")
	ctx := context.Background()

	row := Row{ID: "p1", SubjectID: "student-1"}

	ok, err := eval.CanRead(ctx, EntityPayment, row, Identity{ID: "student-1"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eval.CanRead(ctx, EntityPayment, row, Identity{ID: "student-2"})
	require.NoError(t, err)
	assert.False(t, ok, "payments are invisible to other students")

	// The subject student still cannot write their own payment: marking a fee
	// as paid is a teacher-mediated update.
	ok, err = eval.CanWrite(ctx, EntityPayment, row, Identity{ID: "student-1"}, OpUpdate)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, op := range []Op{OpCreate, OpUpdate, OpDelete} {
		ok, err = eval.CanWrite(ctx, EntityPayment, row, Identity{ID: "teacher-1"}, op)
		require.NoError(t, err)
		assert.True(t, ok, "teacher payment op %s", op)
	}
}

func TestAnnouncementRules(t *testing.T) {
	eval, _ := newTestEvaluator("teacher-1", "teacher-2")
	ctx := context.Background()

	row := Row{ID: "an1", OwnerID: "teacher-1"}

	ok, err := eval.CanRead(ctx, EntityAnnouncement, row, Identity{ID: "student-1"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eval.CanWrite(ctx, EntityAnnouncement, row, Identity{ID: "teacher-2"}, OpDelete)
	require.NoError(t, err)
	assert.False(t, ok, "other teachers cannot delete someone else's announcement")

	ok, err = eval.CanWrite(ctx, EntityAnnouncement, row, Identity{ID: "teacher-1"}, OpDelete)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eval.CanWrite(ctx, EntityAnnouncement, row, Identity{ID: "teacher-1"}, OpUpdate)
	require.NoError(t, err)
	assert.False(t, ok, "announcements are not updatable in place")
}

func TestUnknownRuleDenies(t *testing.T) {
	eval, _ := newTestEvaluator("teacher-1")
	ctx := context.Background()

	ok, err := eval.CanWrite(ctx, EntityProfile, Row{ID: "x"}, Identity{ID: "teacher-1"}, OpCreate)
	require.NoError(t, err)
	assert.False(t, ok, "profile creation is owned by provisioning, not the data API")

	ok, err = eval.CanWrite(ctx, EntityAssignment, Row{OwnerID: "teacher-1"}, Identity{ID: "teacher-1"}, OpRead)
	require.NoError(t, err)
	assert.False(t, ok, "CanWrite rejects the read op")
}

func TestSelfMatchSkipsDirectory(t *testing.T) {
	eval, dir := newTestEvaluator("teacher-1")
	ctx := context.Background()

	_, err := eval.CanRead(ctx, EntityResult, Row{SubjectID: "student-1"}, Identity{ID: "student-1"})
	require.NoError(t, err)
	assert.Zero(t, dir.calls, "subject match must not hit the role directory")
}

func TestEmptyIdentityDenied(t *testing.T) {
	eval, _ := newTestEvaluator()
	ctx := context.Background()

	ok, err := eval.CanWrite(ctx, EntitySubmission, Row{SubjectID: ""}, Identity{}, OpCreate)
	require.NoError(t, err)
	assert.False(t, ok, "an anonymous requester never matches a subject row")
}
