package models

import "time"

// ExportFormat selects the rendered file type for dataset exports.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// Valid reports whether the format is supported.
func (f ExportFormat) Valid() bool {
	return f == ExportFormatCSV || f == ExportFormatPDF
}

// ExportResponse describes a rendered export and its download token.
type ExportResponse struct {
	FileID      string    `json:"file_id"`
	FileName    string    `json:"file_name"`
	Format      string    `json:"format"`
	RowCount    int       `json:"row_count"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}
