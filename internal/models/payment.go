package models

import "time"

// PaymentStatus is one-directional: pending -> paid or pending -> overdue.
// Reversals are not supported.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusOverdue PaymentStatus = "overdue"
)

// Valid reports whether the status is a known value.
func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusPending || s == PaymentStatusPaid || s == PaymentStatusOverdue
}

// CanTransitionTo reports whether the transition is permitted.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return s == PaymentStatusPending && (next == PaymentStatusPaid || next == PaymentStatusOverdue)
}

// Payment is a tuition fee entry created by a teacher for a student. Only
// teachers write payments; a student marking their own fee as paid is not a
// supported operation regardless of what a client UI offers.
type Payment struct {
	ID          string        `db:"id" json:"id"`
	StudentID   string        `db:"student_id" json:"student_id"`
	Amount      float64       `db:"amount" json:"amount"`
	PaymentType string        `db:"payment_type" json:"payment_type"`
	Status      PaymentStatus `db:"status" json:"status"`
	DueDate     time.Time     `db:"due_date" json:"due_date"`
	PaidDate    *time.Time    `db:"paid_date" json:"paid_date,omitempty"`
	Semester    *string       `db:"semester" json:"semester,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentFilter captures list criteria for payments.
type PaymentFilter struct {
	StudentID string
	Status    *PaymentStatus
	Semester  string
	Page      int
	PageSize  int
}

// PaymentTotals summarises amounts per status for a filtered listing.
type PaymentTotals struct {
	Paid    float64 `db:"paid" json:"paid"`
	Pending float64 `db:"pending" json:"pending"`
	Overdue float64 `db:"overdue" json:"overdue"`
}

// CreatePaymentRequest is the payload for raising a fee entry.
type CreatePaymentRequest struct {
	StudentID   string    `json:"student_id" validate:"required,uuid"`
	Amount      float64   `json:"amount" validate:"gt=0"`
	PaymentType string    `json:"payment_type" validate:"required,max=100"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	Semester    *string   `json:"semester"`
}

// UpdatePaymentRequest is the payload for editing a fee entry. Status is not
// part of this payload; status moves only through the transition endpoint.
type UpdatePaymentRequest struct {
	Amount      float64   `json:"amount" validate:"gt=0"`
	PaymentType string    `json:"payment_type" validate:"required,max=100"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	Semester    *string   `json:"semester"`
}

// UpdatePaymentStatusRequest moves a payment out of pending.
type UpdatePaymentStatusRequest struct {
	Status PaymentStatus `json:"status" validate:"required,oneof=paid overdue"`
}
