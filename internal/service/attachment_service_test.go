package service

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edutrackers/edutrack-api/internal/authz"
	appErrors "github.com/edutrackers/edutrack-api/pkg/errors"
	"github.com/edutrackers/edutrack-api/pkg/storage"
)

func newAttachmentService(t *testing.T, maxBytes int64) *AttachmentService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewAttachmentService(store, signer, maxBytes, zap.NewNop())
}

func TestAttachmentUploadRoundtrip(t *testing.T) {
	svc := newAttachmentService(t, 1024)
	content := "homework solution"

	resp, err := svc.Upload(authz.Identity{ID: "student-1"}, "solution.txt", int64(len(content)), strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "solution.txt", resp.FileName)
	assert.Equal(t, "text/plain", resp.ContentType)
	require.True(t, strings.HasPrefix(resp.FileURL, "/api/v1/attachments/download/"))

	token := strings.TrimPrefix(resp.FileURL, "/api/v1/attachments/download/")
	file, _, err := svc.Download(token)
	require.NoError(t, err)
	defer file.Close()

	stored, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, content, string(stored))
}

func TestAttachmentUploadRequiresAuthentication(t *testing.T) {
	svc := newAttachmentService(t, 1024)

	_, err := svc.Upload(authz.Identity{}, "notes.pdf", 10, strings.NewReader("0123456789"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAttachmentUploadEnforcesSizeLimit(t *testing.T) {
	svc := newAttachmentService(t, 5)

	_, err := svc.Upload(authz.Identity{ID: "student-1"}, "big.txt", 10, strings.NewReader("0123456789"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttachmentUploadRejectsUnsupportedType(t *testing.T) {
	svc := newAttachmentService(t, 1024)

	_, err := svc.Upload(authz.Identity{ID: "student-1"}, "malware.exe", 4, strings.NewReader("test"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttachmentDownloadRejectsTamperedToken(t *testing.T) {
	svc := newAttachmentService(t, 1024)

	resp, err := svc.Upload(authz.Identity{ID: "teacher-1"}, "syllabus.pdf", 4, strings.NewReader("%PDF"))
	require.NoError(t, err)

	token := strings.TrimPrefix(resp.FileURL, "/api/v1/attachments/download/")
	_, _, err = svc.Download(token + "0")
	require.Error(t, err)
}
