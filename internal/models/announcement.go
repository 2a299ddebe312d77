package models

import "time"

// Announcement is a broadcast message authored by a teacher. There is no
// update path; edits are delete and recreate.
type Announcement struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AnnouncementFilter captures list criteria for announcements.
type AnnouncementFilter struct {
	TeacherID string
	Page      int
	PageSize  int
}

// CreateAnnouncementRequest is the payload for broadcasting an announcement.
type CreateAnnouncementRequest struct {
	Title   string `json:"title" validate:"required,min=3,max=255"`
	Message string `json:"message" validate:"required"`
}
