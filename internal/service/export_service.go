package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-market-api/internal/models"
	appErrors "github.com/noah-isme/course-market-api/pkg/errors"
	"github.com/noah-isme/course-market-api/pkg/export"
	"github.com/noah-isme/course-market-api/pkg/jobs"
	"github.com/noah-isme/course-market-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type exportOrderReader interface {
	FindByIDForUser(ctx context.Context, id, userID string) (*models.Order, error)
	ItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
}

type exportCertificateReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.CertificateDetail, error)
}

type exportDiplomaReader interface {
	ListByStudentDetailed(ctx context.Context, studentID string) ([]models.DiplomaDetail, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	Workers   int
	Retries   int
}

// ExportRequest asks for one document.
type ExportRequest struct {
	Type     models.ExportType   `json:"type" validate:"required"`
	Format   models.ExportFormat `json:"format" validate:"required"`
	TargetID string              `json:"target_id,omitempty"`
}

// ExportService renders order and certificate documents in the background.
// Jobs are tracked in memory for the process lifetime; finished files are
// fetched through signed download tokens.
type ExportService struct {
	orders   exportOrderReader
	certs    exportCertificateReader
	diplomas exportDiplomaReader
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	queue    *jobs.Queue
	logger   *zap.Logger
	cfg      ExportConfig

	mu      sync.RWMutex
	tracked map[string]*models.ExportJob
}

// NewExportService constructs an ExportService and its worker queue. Call
// Start before accepting requests.
func NewExportService(orders exportOrderReader, certs exportCertificateReader, diplomas exportDiplomaReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	s := &ExportService{
		orders:   orders,
		certs:    certs,
		diplomas: diplomas,
		storage:  store,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
		tracked:  make(map[string]*models.ExportJob),
	}
	s.queue = jobs.NewQueue("exports", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Request enqueues a document render for the user and returns the pending job.
func (s *ExportService) Request(ctx context.Context, userID string, req ExportRequest) (*models.ExportJob, error) {
	switch req.Type {
	case models.ExportTypeOrders, models.ExportTypeTranscript, models.ExportTypeDiplomas:
	case models.ExportTypeInvoice:
		if req.TargetID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invoice export requires a target order id")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export type %q", req.Type))
	}
	if req.Format != models.ExportFormatCSV && req.Format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", req.Format))
	}

	job := &models.ExportJob{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        req.Type,
		Format:      req.Format,
		TargetID:    req.TargetID,
		Status:      models.ExportStatusPending,
		RequestedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.tracked[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(req.Type), Payload: job.ID}); err != nil {
		s.mu.Lock()
		delete(s.tracked, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}
	return s.snapshot(job.ID), nil
}

// Status returns the current state of an export job owned by the user.
func (s *ExportService) Status(jobID, userID string) (*models.ExportJob, error) {
	job := s.snapshot(jobID)
	if job == nil || job.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return job, nil
}

// ParseToken validates a download token and returns the stored file path.
func (s *ExportService) ParseToken(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	return relPath, nil
}

// Open returns a handle to a stored export file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes rendered files older than the configured TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	tracked := s.snapshot(job.ID)
	if tracked == nil {
		return fmt.Errorf("export job %s not tracked", job.ID)
	}

	dataset, title, err := s.buildDataset(ctx, tracked)
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	var payload []byte
	switch tracked.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	filename := fmt.Sprintf("%s/%s-%s.%s", tracked.UserID, tracked.Type, tracked.ID, tracked.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	token, expiresAt, err := s.signer.Generate(tracked.ID, relPath)
	if err != nil {
		s.fail(job.ID, err)
		return err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	now := time.Now().UTC()
	s.mu.Lock()
	if current, ok := s.tracked[job.ID]; ok {
		current.Status = models.ExportStatusCompleted
		current.DownloadURL = fmt.Sprintf("%s/exports/download/%s", prefix, token)
		current.ExpiresAt = &expiresAt
		current.CompletedAt = &now
		current.Error = ""
	}
	s.mu.Unlock()

	s.logger.Info("export completed",
		zap.String("job_id", job.ID),
		zap.String("type", string(tracked.Type)),
		zap.String("format", string(tracked.Format)))
	return nil
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ExportTypeOrders:
		return s.ordersDataset(ctx, job.UserID)
	case models.ExportTypeInvoice:
		return s.invoiceDataset(ctx, job.TargetID, job.UserID)
	case models.ExportTypeTranscript:
		return s.transcriptDataset(ctx, job.UserID)
	case models.ExportTypeDiplomas:
		return s.diplomasDataset(ctx, job.UserID)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export type %q", job.Type)
	}
}

func (s *ExportService) ordersDataset(ctx context.Context, userID string) (export.Dataset, string, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("list orders: %w", err)
	}
	dataset := export.Dataset{Headers: []string{"Order ID", "Invoice", "Status", "Total", "Date"}}
	for _, order := range orders {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Order ID": order.ID,
			"Invoice":  order.InvoiceID,
			"Status":   string(order.Status),
			"Total":    strconv.FormatInt(order.TotalPrice, 10),
			"Date":     order.OrderDate.Format("2006-01-02"),
		})
	}
	return dataset, "Order History", nil
}

func (s *ExportService) invoiceDataset(ctx context.Context, orderID, userID string) (export.Dataset, string, error) {
	order, err := s.orders.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load order: %w", err)
	}
	items, err := s.orders.ItemsByOrder(ctx, order.ID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load order items: %w", err)
	}
	dataset := export.Dataset{Headers: []string{"Course", "Price"}}
	for _, item := range items {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Course": item.CourseName,
			"Price":  strconv.FormatInt(item.Price, 10),
		})
	}
	dataset.Rows = append(dataset.Rows, map[string]string{
		"Course": "TOTAL",
		"Price":  strconv.FormatInt(order.TotalPrice, 10),
	})
	return dataset, fmt.Sprintf("Invoice %s", order.InvoiceID), nil
}

func (s *ExportService) transcriptDataset(ctx context.Context, studentID string) (export.Dataset, string, error) {
	certs, err := s.certs.ListByStudent(ctx, studentID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("list certificates: %w", err)
	}
	dataset := export.Dataset{Headers: []string{"Course", "Grade", "Issued"}}
	for _, cert := range certs {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Course": cert.CourseName,
			"Grade":  strconv.FormatFloat(cert.Grade, 'f', 2, 64),
			"Issued": cert.IssueDate.Format("2006-01-02"),
		})
	}
	return dataset, "Academic Transcript", nil
}

func (s *ExportService) diplomasDataset(ctx context.Context, studentID string) (export.Dataset, string, error) {
	diplomas, err := s.diplomas.ListByStudentDetailed(ctx, studentID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("list diplomas: %w", err)
	}
	dataset := export.Dataset{Headers: []string{"Curriculum", "Issued"}}
	for _, diploma := range diplomas {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Curriculum": diploma.CurriculumName,
			"Issued":     diploma.IssueDate.Format("2006-01-02"),
		})
	}
	return dataset, "Diplomas", nil
}

func (s *ExportService) fail(jobID string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.tracked[jobID]; ok {
		job.Status = models.ExportStatusFailed
		job.Error = cause.Error()
	}
}

func (s *ExportService) snapshot(jobID string) *models.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.tracked[jobID]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}
