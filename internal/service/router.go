package service

import (
	"strings"

	"github.com/RubachokBoss/evalmate/internal/models"
)

const mathSubject = "maths"

// Route picks the extraction pipeline for a subject. Only an exact "maths"
// (trimmed, case-insensitive) gets the math pipeline.
func Route(subject string) models.PipelineKind {
	if strings.ToLower(strings.TrimSpace(subject)) == mathSubject {
		return models.MathPipeline
	}
	return models.HandwritingPipeline
}
