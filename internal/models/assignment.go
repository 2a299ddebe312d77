package models

import "time"

// Assignment is homework distributed by a teacher. Readable by every
// authenticated profile; mutable only by its owning teacher.
type Assignment struct {
	ID          string     `db:"id" json:"id"`
	TeacherID   string     `db:"teacher_id" json:"teacher_id"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	Course      *string    `db:"course" json:"course,omitempty"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	FileURL     *string    `db:"file_url" json:"file_url,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// AssignmentFilter captures list criteria for assignments.
type AssignmentFilter struct {
	TeacherID string
	Course    string
	Search    string
	Page      int
	PageSize  int
}

// CreateAssignmentRequest is the payload for publishing an assignment.
type CreateAssignmentRequest struct {
	Title       string     `json:"title" validate:"required,min=3,max=255"`
	Description *string    `json:"description"`
	Course      *string    `json:"course"`
	DueDate     *time.Time `json:"due_date"`
	FileURL     *string    `json:"file_url"`
}

// UpdateAssignmentRequest is the payload for editing an assignment.
type UpdateAssignmentRequest struct {
	Title       string     `json:"title" validate:"required,min=3,max=255"`
	Description *string    `json:"description"`
	Course      *string    `json:"course"`
	DueDate     *time.Time `json:"due_date"`
	FileURL     *string    `json:"file_url"`
}
