package models

import "time"

// Role is the application-level role bound to a profile at signup.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

// Identity is an authenticated principal stored in the identities table.
// It carries credentials only; application data lives on the Profile.
type Identity struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Profile binds an identity to a role and role-specific fields. Exactly one
// profile exists per identity (same id), created in the same transaction.
type Profile struct {
	ID         string    `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	FullName   string    `db:"full_name" json:"full_name"`
	Role       Role      `db:"role" json:"role"`
	RollNumber *string   `db:"roll_number" json:"roll_number,omitempty"`
	Course     *string   `db:"course" json:"course,omitempty"`
	Department *string   `db:"department" json:"department,omitempty"`
	Phone      *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// UpdateProfileRequest is the payload for editing one's own profile. Role and
// email are deliberately absent; neither changes after provisioning.
type UpdateProfileRequest struct {
	FullName   string  `json:"full_name" validate:"required,min=1,max=255"`
	RollNumber *string `json:"roll_number"`
	Course     *string `json:"course"`
	Department *string `json:"department"`
	Phone      *string `json:"phone"`
}

// ProfileFilter captures filtering criteria for listing profiles.
type ProfileFilter struct {
	Role     *Role
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
