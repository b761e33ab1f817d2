package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog"
)

const (
	pdfMargin     = 20.0
	pdfTopMargin  = 25.0
	pdfLineHeight = 6.0
	pdfLabelWidth = 35.0
)

// ExportService renders finalized feedback as a printable PDF.
type ExportService interface {
	FeedbackPDF(ctx context.Context, title, student string) ([]byte, error)
}

type exportService struct {
	assignments AssignmentService
	grading     GradingService
	location    *time.Location
	logger      zerolog.Logger
}

func NewExportService(assignments AssignmentService, grading GradingService, location *time.Location, logger zerolog.Logger) ExportService {
	if location == nil {
		location = time.Local
	}
	return &exportService{
		assignments: assignments,
		grading:     grading,
		location:    location,
		logger:      logger,
	}
}

func (s *exportService) FeedbackPDF(ctx context.Context, title, student string) ([]byte, error) {
	assignment, err := s.assignments.GetAssignment(ctx, title)
	if err != nil {
		return nil, err
	}
	feedback, err := s.grading.Feedback(ctx, title, student)
	if err != nil {
		return nil, err
	}

	data, err := renderFeedbackPDF(assignment, feedback, s.location)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("title", title).
		Str("student", student).
		Int("size", len(data)).
		Msg("Feedback PDF rendered")

	return data, nil
}

func renderFeedbackPDF(assignment *models.Assignment, feedback *models.FeedbackBlob, loc *time.Location) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfTopMargin, pdfMargin)
	pdf.SetTitle(assignment.Title+" - "+feedback.Student, true)
	pdf.SetCreator("EvalMate", true)
	pdf.AddPage()

	// Встроенные шрифты понимают только cp1252
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Times", "B", 20)
	pdf.CellFormat(0, 10, tr(assignment.Title), "", 1, "C", false, 0, "")
	if assignment.Subject != "" {
		pdf.SetFont("Times", "B", 15)
		pdf.CellFormat(0, 8, tr(assignment.Subject), "", 1, "C", false, 0, "")
	}
	pdf.Ln(8)

	header := [][2]string{
		{"Student:", feedback.Student},
		{"Deadline:", assignment.Deadline.In(loc).Format(models.DeadlineLayout)},
		{"Graded:", feedback.UpdatedAt.In(loc).Format(models.DeadlineLayout)},
	}
	for _, row := range header {
		pdf.SetFont("Times", "B", 12)
		pdf.Cell(pdfLabelWidth, pdfLineHeight, row[0])
		pdf.SetFont("Times", "", 12)
		pdf.Cell(0, pdfLineHeight, tr(row[1]))
		pdf.Ln(pdfLineHeight)
	}
	pdf.Ln(6)

	pdf.SetFont("Times", "B", 14)
	pdf.CellFormat(0, 8, "Feedback", "B", 1, "L", false, 0, "")
	pdf.Ln(3)
	pdf.SetFont("Times", "", 12)
	pdf.MultiCell(0, pdfLineHeight, tr(feedback.Text), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render feedback pdf: %w", err)
	}
	return buf.Bytes(), nil
}
