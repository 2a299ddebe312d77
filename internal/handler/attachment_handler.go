package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/edutrackers/edutrack-api/internal/service"
	appErrors "github.com/edutrackers/edutrack-api/pkg/errors"
	"github.com/edutrackers/edutrack-api/pkg/response"
)

// AttachmentHandler exposes file upload and download endpoints.
type AttachmentHandler struct {
	attachments *service.AttachmentService
}

// NewAttachmentHandler constructs AttachmentHandler.
func NewAttachmentHandler(attachments *service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments}
}

// Upload godoc
// @Summary Upload an attachment
// @Description Stores a file and returns a signed URL for the file_url field of assignments and submissions.
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /attachments [post]
func (h *AttachmentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "missing file field"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable file"))
		return
	}
	defer file.Close() //nolint:errcheck

	resp, err := h.attachments.Upload(requesterFromContext(c), fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// Download godoc
// @Summary Download an attachment
// @Description Streams a stored attachment. The token carries an HMAC signature.
// @Tags Attachments
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attachments/download/{token} [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	file, relPath, err := h.attachments.Download(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(relPath))
	http.ServeContent(c.Writer, c.Request, filepath.Base(relPath), fileModTime(file), file)
}
