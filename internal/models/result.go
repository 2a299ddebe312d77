package models

import "time"

// Result is an exam result authored by a teacher for one student.
type Result struct {
	ID            string    `db:"id" json:"id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	TeacherID     string    `db:"teacher_id" json:"teacher_id"`
	ExamType      string    `db:"exam_type" json:"exam_type"`
	Subject       string    `db:"subject" json:"subject"`
	MarksObtained float64   `db:"marks_obtained" json:"marks_obtained"`
	TotalMarks    float64   `db:"total_marks" json:"total_marks"`
	ExamDate      time.Time `db:"exam_date" json:"exam_date"`
	Remarks       *string   `db:"remarks" json:"remarks,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Percentage returns the score percentage. TotalMarks > 0 is validated at
// write time, so the division is always defined for stored rows.
func (r Result) Percentage() float64 {
	if r.TotalMarks <= 0 {
		return 0
	}
	return r.MarksObtained / r.TotalMarks * 100
}

// LetterGrade maps the percentage onto a letter band.
func (r Result) LetterGrade() string {
	p := r.Percentage()
	switch {
	case p >= 90:
		return "A+"
	case p >= 80:
		return "A"
	case p >= 70:
		return "B"
	case p >= 60:
		return "C"
	case p >= 50:
		return "D"
	default:
		return "F"
	}
}

// ResultFilter captures list criteria for results.
type ResultFilter struct {
	StudentID string
	ExamType  string
	Subject   string
	Page      int
	PageSize  int
}

// CreateResultRequest is the payload for recording an exam result.
// MarksObtained may not exceed TotalMarks; the service enforces the bound
// since validator cannot compare the two fields numerically across types.
type CreateResultRequest struct {
	StudentID     string    `json:"student_id" validate:"required,uuid"`
	ExamType      string    `json:"exam_type" validate:"required,max=100"`
	Subject       string    `json:"subject" validate:"required,max=100"`
	MarksObtained float64   `json:"marks_obtained" validate:"gte=0"`
	TotalMarks    float64   `json:"total_marks" validate:"gt=0"`
	ExamDate      time.Time `json:"exam_date" validate:"required"`
	Remarks       *string   `json:"remarks"`
}

// UpdateResultRequest is the payload for correcting an exam result.
type UpdateResultRequest struct {
	ExamType      string    `json:"exam_type" validate:"required,max=100"`
	Subject       string    `json:"subject" validate:"required,max=100"`
	MarksObtained float64   `json:"marks_obtained" validate:"gte=0"`
	TotalMarks    float64   `json:"total_marks" validate:"gt=0"`
	ExamDate      time.Time `json:"exam_date" validate:"required"`
	Remarks       *string   `json:"remarks"`
}

// ResultView decorates a stored result with the derived score fields.
type ResultView struct {
	Result
	Percentage  float64 `json:"percentage"`
	LetterGrade string  `json:"letter_grade"`
}

// NewResultView computes the derived fields for a result.
func NewResultView(r Result) ResultView {
	return ResultView{Result: r, Percentage: r.Percentage(), LetterGrade: r.LetterGrade()}
}
