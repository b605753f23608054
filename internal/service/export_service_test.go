package service

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-coverage-api/internal/models"
	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
	"github.com/noah-isme/sma-coverage-api/pkg/export"
	"github.com/noah-isme/sma-coverage-api/pkg/storage"
)

type assignmentListerStub struct {
	assignments []models.CoverageAssignment
	err         error
}

func (s assignmentListerStub) ListByDate(context.Context, time.Time) ([]models.CoverageAssignment, error) {
	return s.assignments, s.err
}

type teacherDirectoryStub struct {
	teachers []models.Teacher
	err      error
}

func (s teacherDirectoryStub) List(context.Context, models.TeacherFilter) ([]models.Teacher, error) {
	return s.teachers, s.err
}

func stringPtr(v string) *string {
	return &v
}

func sampleAssignments() []models.CoverageAssignment {
	return []models.CoverageAssignment{
		{AbsenceID: "abs-1", TeacherID: "t1", Period: 1, PeriodLabel: "1st", Subject: "Math", Room: "R1",
			CandidateID: stringPtr("sub-1"), CandidateName: stringPtr("Sub One"), CandidateKind: stringPtr("external"), MatchQuality: "specialty-match"},
		{AbsenceID: "abs-1", TeacherID: "t1", Period: 2, Subject: "Math", Room: "R1", MatchQuality: "uncovered"},
	}
}

func newExportServiceForTest(t *testing.T, source coverageSheetSource, teachers teacherDirectory) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1/", ResultTTL: time.Hour}
	svc := NewExportService(source, teachers, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), nil)
	return svc, store
}

func TestExportServiceGenerateCSV(t *testing.T) {
	teachers := teacherDirectoryStub{teachers: []models.Teacher{{ID: "t1", FullName: "Ibu Sari"}}}
	svc, store := newExportServiceForTest(t, assignmentListerStub{assignments: sampleAssignments()}, teachers)

	result, err := svc.Generate(context.Background(), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, result.Format)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/coverage/exports/"))
	assert.Contains(t, result.RelativePath, "coverage_2025-03-03_")

	file, err := store.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "Period,Absent Teacher,Subject,Room,Cover,Kind,Match", lines[0])
	assert.Equal(t, "1st,Ibu Sari,Math,R1,Sub One,external,specialty-match", lines[1])
	assert.Equal(t, "2,Ibu Sari,Math,R1,UNCOVERED,,uncovered", lines[2])
	assert.Equal(t, "", lines[3])
	assert.Equal(t, []string{"Periods,2", "Covered,1", "Uncovered,1"}, lines[4:])

	exportID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, result.ExportID, exportID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc, store := newExportServiceForTest(t, assignmentListerStub{assignments: sampleAssignments()}, teacherDirectoryStub{err: errors.New("db down")})

	result, err := svc.Generate(context.Background(), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, ExportFormatPDF, result.Format)

	info, err := os.Stat(store.Path(result.RelativePath))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportServiceGenerateErrors(t *testing.T) {
	date := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	svc, _ := newExportServiceForTest(t, assignmentListerStub{}, nil)
	_, err := svc.Generate(context.Background(), date, ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	svc, _ = newExportServiceForTest(t, assignmentListerStub{err: errors.New("boom")}, nil)
	_, err = svc.Generate(context.Background(), date, ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	svc, _ = newExportServiceForTest(t, assignmentListerStub{assignments: sampleAssignments()}, nil)
	_, err = svc.Generate(context.Background(), date, ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
