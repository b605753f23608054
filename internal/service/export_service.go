package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-coverage-api/internal/models"
	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
	"github.com/noah-isme/sma-coverage-api/pkg/export"
	"github.com/noah-isme/sma-coverage-api/pkg/storage"
)

// ExportFormat enumerates the coverage sheet renderings.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type coverageSheetSource interface {
	ListByDate(ctx context.Context, date time.Time) ([]models.CoverageAssignment, error)
}

type teacherDirectory interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, error)
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
	ExportID     string
	RelativePath string
	Token        string
	URL          string
	Format       ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders committed coverage into printable sheets.
type ExportService struct {
	assignments coverageSheetSource
	teachers    teacherDirectory
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
	now         func() time.Time
}

var coverageSheetHeaders = []string{"Period", "Absent Teacher", "Subject", "Room", "Cover", "Kind", "Match"}

// NewExportService constructs an ExportService.
func NewExportService(assignments coverageSheetSource, teachers teacherDirectory, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
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
		pdf = export.NewPDFExporter(export.Landscape)
	}
	return &ExportService{
		assignments: assignments,
		teachers:    teachers,
		storage:     storage,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Generate renders the committed coverage sheet for date and stores it.
func (s *ExportService) Generate(ctx context.Context, date time.Time, format ExportFormat) (*ExportResult, error) {
	assignments, err := s.assignments.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load coverage assignments")
	}
	if len(assignments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no committed coverage for date")
	}

	dataset := s.buildDataset(ctx, assignments)
	title := fmt.Sprintf("Coverage Sheet %s", date.Format("Monday 2006-01-02"))

	var payload []byte
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render coverage sheet")
	}

	exportID := uuid.NewString()
	relPath, err := s.storage.Save(s.buildFilename(date, format), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store coverage sheet")
	}

	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("coverage sheet exported",
		zap.String("export_id", exportID),
		zap.String("date", date.Format("2006-01-02")),
		zap.String("format", string(format)),
		zap.Int("rows", len(dataset.Rows)),
	)

	return &ExportResult{
		ExportID:     exportID,
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/coverage/exports/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (exportID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(date time.Time, format ExportFormat) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("coverage/%s/coverage_%s_%s.%s", date.Format("2006-01"), sanitizeFilename(date.Format("2006-01-02")), timestamp, format)
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

func (s *ExportService) buildDataset(ctx context.Context, assignments []models.CoverageAssignment) export.Dataset {
	names := s.teacherNames(ctx)
	rows := make([]map[string]string, 0, len(assignments))
	uncovered := 0
	for _, a := range assignments {
		absent := a.TeacherID
		if name, ok := names[a.TeacherID]; ok {
			absent = name
		}
		period := a.PeriodLabel
		if period == "" {
			period = strconv.Itoa(a.Period)
		}
		cover := "UNCOVERED"
		if a.CandidateName != nil && *a.CandidateName != "" {
			cover = *a.CandidateName
		} else if a.CandidateID != nil {
			cover = *a.CandidateID
		} else {
			uncovered++
		}
		rows = append(rows, map[string]string{
			"Period":         period,
			"Absent Teacher": absent,
			"Subject":        a.Subject,
			"Room":           a.Room,
			"Cover":          cover,
			"Kind":           deref(a.CandidateKind),
			"Match":          a.MatchQuality,
		})
	}
	return export.Dataset{
		Headers: coverageSheetHeaders,
		Rows:    rows,
		Summary: []export.SummaryLine{
			{Label: "Periods", Value: strconv.Itoa(len(assignments))},
			{Label: "Covered", Value: strconv.Itoa(len(assignments) - uncovered)},
			{Label: "Uncovered", Value: strconv.Itoa(uncovered)},
		},
	}
}

// teacherNames is best effort; the sheet falls back to teacher IDs.
func (s *ExportService) teacherNames(ctx context.Context) map[string]string {
	names := make(map[string]string)
	if s.teachers == nil {
		return names
	}
	teachers, err := s.teachers.List(ctx, models.TeacherFilter{})
	if err != nil {
		s.logger.Warn("teacher lookup for coverage sheet failed", zap.Error(err))
		return names
	}
	for _, t := range teachers {
		names[t.ID] = t.FullName
	}
	return names
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
