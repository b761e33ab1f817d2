package service

import (
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
)

// DeriveNotices computes today's notices for a student. feedbackModified maps a title to the
// last-modified time of the student's feedback blob; titles without feedback are absent.
func DeriveNotices(assignments []models.Assignment, student string, feedbackModified map[string]time.Time, today time.Time, loc *time.Location) []models.Notice {
	notices := []models.Notice{}
	for i := range assignments {
		a := &assignments[i]

		if sameDate(a.Deadline, today, loc) && !a.HasSubmission(student) {
			notices = append(notices, models.Notice{Kind: models.NoticeMissedDeadline, Title: a.Title})
		}

		if modified, ok := feedbackModified[a.Title]; ok && sameDate(modified, today, loc) {
			notices = append(notices, models.Notice{Kind: models.NoticeGradedToday, Title: a.Title})
		}
	}
	return notices
}
