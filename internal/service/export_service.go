package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
	"github.com/fleetcircle/shuttle-ops-api/pkg/export"
	"github.com/fleetcircle/shuttle-ops-api/pkg/storage"
)

type exportScheduleSource interface {
	ListForDate(ctx context.Context, date string) ([]models.Schedule, error)
}

type exportMaintenanceSource interface {
	List(ctx context.Context, filter models.MaintenanceFilter) ([]models.MaintenanceRecord, int, error)
}

type exportDriverSource interface {
	List(ctx context.Context, filter models.DriverFilter) ([]models.Driver, int, error)
}

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

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets from the fleet repositories and
// persists the rendered files behind signed download tokens.
type ExportService struct {
	schedules   exportScheduleSource
	maintenance exportMaintenanceSource
	drivers     exportDriverSource
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs an ExportService. Nil renderers fall back
// to the package defaults.
func NewExportService(schedules exportScheduleSource, maintenance exportMaintenanceSource, drivers exportDriverSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		schedules:   schedules,
		maintenance: maintenance,
		drivers:     drivers,
		storage:     store,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the dataset described by the job, renders it in the
// requested format and stores the result behind a signed token.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("export: nil job")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	payload, err := s.render(dataset, title, job.Params.Format)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          s.downloadURL(token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *ExportService) render(dataset export.Dataset, title string, format models.ReportFormat) ([]byte, error) {
	switch format {
	case models.ReportFormatCSV:
		return s.csv.Render(dataset)
	case models.ReportFormatPDF:
		return s.pdf.Render(dataset, title)
	default:
		return nil, fmt.Errorf("export: unsupported format %s", format)
	}
}

func (s *ExportService) downloadURL(token string) string {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/export/%s", prefix, token)
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	datePart := sanitizeFilename(job.Params.Date)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), datePart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeScheduleManifest:
		return s.buildScheduleManifest(ctx, job.Params)
	case models.ReportTypeMaintenanceHistory:
		return s.buildMaintenanceHistory(ctx, job.Params)
	case models.ReportTypeDriverRoster:
		return s.buildDriverRoster(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildScheduleManifest(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	rows, err := s.schedules.ListForDate(ctx, params.Date)
	if err != nil {
		return export.Dataset{}, "", err
	}
	shuttleID := deref(params.ShuttleID)

	dataset := export.Dataset{
		Headers: []string{"Time", "Driver", "Shuttle", "Route", "Client", "Status", "Notes"},
	}
	for _, row := range rows {
		if shuttleID != "" && row.ShuttleID != shuttleID {
			continue
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Time":    row.Time,
			"Driver":  row.DriverID,
			"Shuttle": row.ShuttleID,
			"Route":   row.RouteID,
			"Client":  deref(row.ClientID),
			"Status":  string(row.Status),
			"Notes":   deref(row.Notes),
		})
	}
	title := fmt.Sprintf("Schedule Manifest %s", params.Date)
	return dataset, title, nil
}

func (s *ExportService) buildMaintenanceHistory(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	dataset := export.Dataset{
		Headers: []string{"Shuttle", "Description", "Status", "Cost", "Started", "Closed"},
	}
	filter := models.MaintenanceFilter{
		ShuttleID: deref(params.ShuttleID),
		PageSize:  100,
		SortBy:    "started_at",
		SortOrder: "asc",
	}
	for page := 1; ; page++ {
		filter.Page = page
		records, total, err := s.maintenance.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", err
		}
		for _, record := range records {
			cost := ""
			if record.Cost != nil {
				cost = strconv.FormatFloat(*record.Cost, 'f', 2, 64)
			}
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Shuttle":     record.ShuttleID,
				"Description": record.Description,
				"Status":      string(record.Status),
				"Cost":        cost,
				"Started":     record.StartedAt.Format("2006-01-02 15:04"),
				"Closed":      formatReportTime(record.ClosedAt),
			})
		}
		if len(records) == 0 || len(dataset.Rows) >= total {
			break
		}
	}
	return dataset, "Maintenance History", nil
}

func (s *ExportService) buildDriverRoster(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	dataset := export.Dataset{
		Headers: []string{"Name", "Email", "Phone", "License", "License Expiry", "Active"},
	}
	filter := models.DriverFilter{
		CompanyID: deref(params.CompanyID),
		PageSize:  100,
		SortBy:    "full_name",
		SortOrder: "asc",
	}
	for page := 1; ; page++ {
		filter.Page = page
		drivers, total, err := s.drivers.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", err
		}
		for _, driver := range drivers {
			expiry := ""
			if driver.LicenseExpiry != nil {
				expiry = driver.LicenseExpiry.Format("2006-01-02")
			}
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Name":           driver.FullName,
				"Email":          driver.Email,
				"Phone":          deref(driver.Phone),
				"License":        driver.LicenseNumber,
				"License Expiry": expiry,
				"Active":         strconv.FormatBool(driver.Active),
			})
		}
		if len(drivers) == 0 || len(dataset.Rows) >= total {
			break
		}
	}
	return dataset, "Driver Roster", nil
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
