package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/rs/zerolog"
)

// PageRasterizer renders every page of a PDF to a PNG image.
type PageRasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([][]byte, error)
}

// DocumentTextDetector runs full-page handwriting recognition on one image.
type DocumentTextDetector interface {
	DetectDocumentText(ctx context.Context, image []byte) (string, error)
}

// MathRecognizer splits a page into text and formula fragments and turns formula crops into LaTeX.
type MathRecognizer interface {
	Segment(ctx context.Context, image []byte) ([]models.Fragment, error)
	RecognizeFormula(ctx context.Context, image []byte) (string, error)
}

// ProgressFunc is called after each page with the number of pages processed so far.
type ProgressFunc func(done, total int)

type ExtractionService interface {
	Extract(ctx context.Context, pdf []byte, subject string, progress ProgressFunc) (string, error)
}

type extractionService struct {
	rasterizer  PageRasterizer
	detector    DocumentTextDetector
	math        MathRecognizer
	pageTimeout time.Duration
	pageRetries int
	logger      zerolog.Logger
}

func NewExtractionService(
	rasterizer PageRasterizer,
	detector DocumentTextDetector,
	math MathRecognizer,
	pageTimeout time.Duration,
	pageRetries int,
	logger zerolog.Logger,
) ExtractionService {
	if pageTimeout <= 0 {
		pageTimeout = 60 * time.Second
	}
	if pageRetries < 0 {
		pageRetries = 0
	}
	return &extractionService{
		rasterizer:  rasterizer,
		detector:    detector,
		math:        math,
		pageTimeout: pageTimeout,
		pageRetries: pageRetries,
		logger:      logger,
	}
}

var delimiterRe = regexp.MustCompile(`\\(?:left|right)\b`)

// SanitizeLatex strips \left and \right sizing commands but keeps commands like \rightarrow.
func SanitizeLatex(latex string) string {
	return delimiterRe.ReplaceAllString(latex, "")
}

func (s *extractionService) Extract(ctx context.Context, pdf []byte, subject string, progress ProgressFunc) (string, error) {
	pipeline := Route(subject)

	pages, err := s.rasterizer.Rasterize(ctx, pdf)
	if err != nil {
		return "", &ExtractionError{Err: fmt.Errorf("failed to read PDF: %w", err)}
	}
	if len(pages) == 0 {
		return "", &ExtractionError{Err: ErrEmptyExtraction}
	}

	s.logger.Info().
		Str("pipeline", pipeline.String()).
		Int("pages", len(pages)).
		Msg("Starting extraction")

	var (
		parts       []string
		failedPages []int
		lastErr     error
	)
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return "", &ExtractionError{Err: err, PartialText: strings.Join(parts, "\n\n"), FailedPages: failedPages}
		}

		text, err := s.extractPage(ctx, pipeline, i+1, page)
		if err != nil {
			failedPages = append(failedPages, i+1)
			lastErr = err
			s.logger.Error().Err(err).Int("page", i+1).Msg("Page extraction failed")
		} else if text != "" {
			parts = append(parts, text)
		}

		if progress != nil {
			progress(i+1, len(pages))
		}
	}

	text := strings.TrimSpace(strings.Join(parts, "\n\n"))

	if len(failedPages) > 0 {
		return "", &ExtractionError{
			Err:         fmt.Errorf("%d of %d pages failed: %w", len(failedPages), len(pages), lastErr),
			PartialText: text,
			FailedPages: failedPages,
		}
	}
	if text == "" {
		s.logger.Warn().Str("pipeline", pipeline.String()).Msg("Extraction produced no text")
		return "", &ExtractionError{Err: ErrEmptyExtraction}
	}

	return text, nil
}

// extractPage runs one page with its own timeout, retrying a failed attempt pageRetries times.
func (s *extractionService) extractPage(ctx context.Context, pipeline models.PipelineKind, pageNo int, page []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.pageRetries; attempt++ {
		if attempt > 0 {
			s.logger.Warn().Err(lastErr).Int("page", pageNo).Int("attempt", attempt+1).Msg("Retrying page")
		}

		pageCtx, cancel := context.WithTimeout(ctx, s.pageTimeout)
		var (
			text string
			err  error
		)
		if pipeline == models.MathPipeline {
			text, err = s.extractMathPage(pageCtx, page)
		} else {
			text, err = s.detector.DetectDocumentText(pageCtx, page)
		}
		cancel()

		if err == nil {
			return strings.TrimSpace(text), nil
		}
		lastErr = err

		// Родительский контекст отменён, повтор бессмысленен
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (s *extractionService) extractMathPage(ctx context.Context, page []byte) (string, error) {
	fragments, err := s.math.Segment(ctx, page)
	if err != nil {
		return "", fmt.Errorf("failed to segment page: %w", err)
	}

	var b strings.Builder
	for _, fragment := range fragments {
		switch fragment.Type {
		case models.FragmentText:
			b.WriteString(strings.TrimSpace(fragment.Text))
			b.WriteString("\n")
		case models.FragmentFormula:
			latex := fragment.Text
			if fragment.Image != "" {
				crop, err := base64.StdEncoding.DecodeString(fragment.Image)
				if err != nil {
					return "", fmt.Errorf("failed to decode formula image: %w", err)
				}
				latex, err = s.math.RecognizeFormula(ctx, crop)
				if err != nil {
					return "", fmt.Errorf("failed to recognize formula: %w", err)
				}
			}
			b.WriteString(strings.TrimSpace(SanitizeLatex(latex)))
			b.WriteString("\n")
		default:
			s.logger.Warn().Str("type", fragment.Type).Msg("Skipping unsupported fragment")
		}
	}
	return b.String(), nil
}
