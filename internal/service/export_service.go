package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edutrackers/edutrack-api/internal/authz"
	"github.com/edutrackers/edutrack-api/internal/models"
	appErrors "github.com/edutrackers/edutrack-api/pkg/errors"
	"github.com/edutrackers/edutrack-api/pkg/export"
	"github.com/edutrackers/edutrack-api/pkg/storage"
)

type exportResultLister interface {
	List(ctx context.Context, filter models.ResultFilter) ([]models.Result, int, error)
}

type exportPaymentLister interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
}

// ExportService renders result and payment listings to CSV or PDF files on
// local storage and hands out signed, expiring download tokens. Exports are
// teacher-only: they cut across students, so per-row narrowing cannot apply.
type ExportService struct {
	results  exportResultLister
	payments exportPaymentLister
	roles    authz.RoleDirectory
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	store    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(results exportResultLister, payments exportPaymentLister, roles authz.RoleDirectory, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		results:  results,
		payments: payments,
		roles:    roles,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		store:    store,
		signer:   signer,
		logger:   logger,
	}
}

// ExportResults renders the filtered results listing.
func (s *ExportService) ExportResults(ctx context.Context, requester authz.Identity, filter models.ResultFilter, format models.ExportFormat) (*models.ExportResponse, error) {
	if err := s.requireTeacher(ctx, requester); err != nil {
		return nil, err
	}
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	filter.Page = 1
	filter.PageSize = 100
	var rows []map[string]string
	for {
		results, _, err := s.results.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect results")
		}
		for _, r := range results {
			view := models.NewResultView(r)
			rows = append(rows, map[string]string{
				"Student":    r.StudentID,
				"Exam":       r.ExamType,
				"Subject":    r.Subject,
				"Marks":      fmt.Sprintf("%.1f/%.1f", r.MarksObtained, r.TotalMarks),
				"Percentage": fmt.Sprintf("%.1f", view.Percentage),
				"Grade":      view.LetterGrade,
				"Exam Date":  r.ExamDate.Format("2006-01-02"),
			})
		}
		if len(results) < filter.PageSize {
			break
		}
		filter.Page++
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Exam", "Subject", "Marks", "Percentage", "Grade", "Exam Date"},
		Rows:    rows,
	}
	return s.render(dataset, "results", "Exam Results", format)
}

// ExportPayments renders the filtered payments listing.
func (s *ExportService) ExportPayments(ctx context.Context, requester authz.Identity, filter models.PaymentFilter, format models.ExportFormat) (*models.ExportResponse, error) {
	if err := s.requireTeacher(ctx, requester); err != nil {
		return nil, err
	}
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	filter.Page = 1
	filter.PageSize = 100
	var rows []map[string]string
	for {
		payments, _, err := s.payments.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect payments")
		}
		for _, p := range payments {
			paidDate := ""
			if p.PaidDate != nil {
				paidDate = p.PaidDate.Format("2006-01-02")
			}
			semester := ""
			if p.Semester != nil {
				semester = *p.Semester
			}
			rows = append(rows, map[string]string{
				"Student":   p.StudentID,
				"Type":      p.PaymentType,
				"Amount":    fmt.Sprintf("%.2f", p.Amount),
				"Status":    string(p.Status),
				"Due Date":  p.DueDate.Format("2006-01-02"),
				"Paid Date": paidDate,
				"Semester":  semester,
			})
		}
		if len(payments) < filter.PageSize {
			break
		}
		filter.Page++
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Type", "Amount", "Status", "Due Date", "Paid Date", "Semester"},
		Rows:    rows,
	}
	return s.render(dataset, "payments", "Tuition Payments", format)
}

// Download validates a signed token and opens the referenced export file.
func (s *ExportService) Download(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return file, relPath, nil
}

// CleanupExpired removes export files older than the TTL.
func (s *ExportService) CleanupExpired(ttl time.Duration) {
	deleted, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("failed to clean up expired exports", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("cleaned up expired exports", zap.Int("count", len(deleted)))
	}
}

func (s *ExportService) requireTeacher(ctx context.Context, requester authz.Identity) error {
	isTeacher, err := s.roles.IsTeacher(ctx, requester.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "role lookup failed")
	}
	if !isTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "only teachers can export data")
	}
	return nil
}

func (s *ExportService) render(dataset export.Dataset, kind, title string, format models.ExportFormat) (*models.ExportResponse, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case models.ExportFormatCSV:
		data, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		data, err = s.pdf.Render(dataset, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	fileID := uuid.NewString()
	fileName := fmt.Sprintf("%s/%s_%s.%s", kind, kind, time.Now().UTC().Format("20060102_150405"), format)
	relPath, err := s.store.Save(fileName, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(fileID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	return &models.ExportResponse{
		FileID:      fileID,
		FileName:    fileName,
		Format:      string(format),
		RowCount:    len(dataset.Rows),
		DownloadURL: "/api/v1/exports/download/" + token,
		ExpiresAt:   expiresAt,
	}, nil
}
