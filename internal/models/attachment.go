package models

// AttachmentResponse describes an uploaded file. FileURL is an opaque signed
// download path; the raw storage location is never exposed.
type AttachmentResponse struct {
	FileID      string `json:"file_id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	FileURL     string `json:"file_url"`
}
