package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edutrackers/edutrack-api/internal/models"
	"github.com/edutrackers/edutrack-api/internal/service"
	"github.com/edutrackers/edutrack-api/pkg/response"
)

// ExportHandler exposes dataset export endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// ExportResults godoc
// @Summary Export results
// @Description Teachers only. Renders the filtered result listing to CSV or PDF and returns a signed download URL.
// @Tags Exports
// @Produce json
// @Param format query string false "csv or pdf" default(csv)
// @Param studentId query string false "Filter by student"
// @Param examType query string false "Filter by exam type"
// @Param subject query string false "Filter by subject"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /exports/results [get]
func (h *ExportHandler) ExportResults(c *gin.Context) {
	var filter models.ResultFilter
	filter.StudentID = c.Query("studentId")
	filter.ExamType = c.Query("examType")
	filter.Subject = c.Query("subject")
	format := models.ExportFormat(c.DefaultQuery("format", "csv"))

	resp, err := h.exports.ExportResults(c.Request.Context(), requesterFromContext(c), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// ExportPayments godoc
// @Summary Export payments
// @Description Teachers only. Renders the filtered payment listing to CSV or PDF and returns a signed download URL.
// @Tags Exports
// @Produce json
// @Param format query string false "csv or pdf" default(csv)
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param semester query string false "Filter by semester"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /exports/payments [get]
func (h *ExportHandler) ExportPayments(c *gin.Context) {
	var filter models.PaymentFilter
	filter.StudentID = c.Query("studentId")
	if raw := c.Query("status"); raw != "" {
		status := models.PaymentStatus(raw)
		filter.Status = &status
	}
	filter.Semester = c.Query("semester")
	format := models.ExportFormat(c.DefaultQuery("format", "csv"))

	resp, err := h.exports.ExportPayments(c.Request.Context(), requesterFromContext(c), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Download godoc
// @Summary Download an export
// @Description Streams a previously rendered export. The token embeds the expiry and an HMAC signature.
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, relPath, err := h.exports.Download(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(relPath))
	c.Header("Cache-Control", "no-store")
	http.ServeContent(c.Writer, c.Request, filepath.Base(relPath), fileModTime(file), file)
}

func fileModTime(file *os.File) time.Time {
	info, err := file.Stat()
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
