package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edutrackers/edutrack-api/internal/authz"
	"github.com/edutrackers/edutrack-api/internal/models"
	appErrors "github.com/edutrackers/edutrack-api/pkg/errors"
	"github.com/edutrackers/edutrack-api/pkg/storage"
)

// allowedAttachmentExts limits uploads to document and image formats. The
// stored name is always a generated id, so the extension is the only part of
// the client filename that survives.
var allowedAttachmentExts = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".zip":  "application/zip",
}

// AttachmentService stores uploaded files referenced by assignments and
// submissions. Any authenticated profile may upload; the resulting signed URL
// is what gets persisted in the file_url column.
type AttachmentService struct {
	store    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	maxBytes int64
	logger   *zap.Logger
}

// NewAttachmentService constructs an AttachmentService.
func NewAttachmentService(store *storage.LocalStorage, signer *storage.SignedURLSigner, maxBytes int64, logger *zap.Logger) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentService{
		store:    store,
		signer:   signer,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Upload validates and stores a file, returning its signed download URL.
func (s *AttachmentService) Upload(requester authz.Identity, fileName string, size int64, r io.Reader) (*models.AttachmentResponse, error) {
	if requester.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.maxBytes))
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	contentType, ok := allowedAttachmentExts[ext]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported file type")
	}

	fileID := uuid.NewString()
	relPath := filepath.Join("attachments", fileID+ext)
	// LimitReader guards against clients that lie about the declared size.
	stored, err := s.store.SaveStream(relPath, io.LimitReader(r, size))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
	}

	token, _, err := s.signer.Generate(fileID, stored)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	s.logger.Info("attachment uploaded",
		zap.String("identity_id", requester.ID),
		zap.String("file_id", fileID),
		zap.Int64("size_bytes", size))

	return &models.AttachmentResponse{
		FileID:      fileID,
		FileName:    filepath.Base(fileName),
		ContentType: contentType,
		SizeBytes:   size,
		FileURL:     "/api/v1/attachments/download/" + token,
	}, nil
}

// Download validates a signed token and opens the referenced attachment.
// Attachment tokens are validated for signature only; unlike exports, the
// stored URL lives in assignment and submission rows indefinitely.
func (s *AttachmentService) Download(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, true)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
	}
	return file, relPath, nil
}
