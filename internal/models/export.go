package models

import "time"

// ExportFormat enumerates supported document formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportType enumerates supported export documents.
type ExportType string

const (
	ExportTypeOrders     ExportType = "orders"
	ExportTypeInvoice    ExportType = "invoice"
	ExportTypeTranscript ExportType = "transcript"
	ExportTypeDiplomas   ExportType = "diplomas"
)

// Export job lifecycle states.
const (
	ExportStatusPending   = "PENDING"
	ExportStatusCompleted = "COMPLETED"
	ExportStatusFailed    = "FAILED"
)

// ExportJob tracks one asynchronous document request.
type ExportJob struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Type        ExportType   `json:"type"`
	Format      ExportFormat `json:"format"`
	TargetID    string       `json:"target_id,omitempty"`
	Status      string       `json:"status"`
	Error       string       `json:"error,omitempty"`
	DownloadURL string       `json:"download_url,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	RequestedAt time.Time    `json:"requested_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}
