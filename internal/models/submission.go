package models

import "time"

// SubmissionStatus tracks grading state of a submission.
type SubmissionStatus string

const (
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusGraded    SubmissionStatus = "graded"
)

// Submission is a student's response to an assignment. At most one row may
// exist per (assignment_id, student_id); the database enforces this with a
// unique constraint so concurrent duplicates lose at the data layer.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	AssignmentID string           `db:"assignment_id" json:"assignment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	FileURL      *string          `db:"file_url" json:"file_url,omitempty"`
	SubmittedAt  time.Time        `db:"submitted_at" json:"submitted_at"`
	Status       SubmissionStatus `db:"status" json:"status"`
	Grade        *string          `db:"grade" json:"grade,omitempty"`
	Feedback     *string          `db:"feedback" json:"feedback,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// SubmissionFilter captures list criteria for submissions.
type SubmissionFilter struct {
	AssignmentID string
	StudentID    string
	Status       *SubmissionStatus
	Page         int
	PageSize     int
}

// CreateSubmissionRequest is the payload for handing in an assignment. The
// student is always the requester; there is no field for submitting on
// another student's behalf.
type CreateSubmissionRequest struct {
	AssignmentID string  `json:"assignment_id" validate:"required,uuid"`
	FileURL      *string `json:"file_url"`
}

// GradeSubmissionRequest is the payload a teacher sends when grading.
type GradeSubmissionRequest struct {
	Grade    string  `json:"grade" validate:"required,max=5"`
	Feedback *string `json:"feedback"`
}
