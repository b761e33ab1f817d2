package service

import (
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
)

// Categorize partitions assignments for the teacher dashboard, keeping input order in each group.
func Categorize(assignments []models.Assignment) models.Categories {
	categories := models.Categories{
		NoSubmissions:  []models.Assignment{},
		PendingGrading: []models.Assignment{},
		Finalized:      []models.Assignment{},
	}
	for i := range assignments {
		a := &assignments[i]
		switch {
		case len(a.ExtractedTexts) == 0:
			categories.NoSubmissions = append(categories.NoSubmissions, *a)
		case a.AllFinalized():
			categories.Finalized = append(categories.Finalized, *a)
		default:
			categories.PendingGrading = append(categories.PendingGrading, *a)
		}
	}
	return categories
}

// BuildStudentView partitions assignments for one student. graded holds the titles that
// have a feedback blob for the student.
func BuildStudentView(assignments []models.Assignment, student string, graded map[string]bool, today time.Time, loc *time.Location) models.StudentView {
	view := models.StudentView{
		Upcoming:  []models.AssignmentSummary{},
		PastDue:   []models.AssignmentSummary{},
		Graded:    []models.AssignmentSummary{},
		Submitted: []models.AssignmentSummary{},
	}
	todayDate := dateOf(today, loc)

	for i := range assignments {
		a := &assignments[i]
		summary := models.Summarize(a)
		switch {
		case a.HasSubmission(student) && graded[a.Title]:
			view.Graded = append(view.Graded, summary)
		case a.HasSubmission(student):
			view.Submitted = append(view.Submitted, summary)
		case !todayDate.After(dateOf(a.Deadline, loc)):
			view.Upcoming = append(view.Upcoming, summary)
		default:
			view.PastDue = append(view.PastDue, summary)
		}
	}
	return view
}

// dateOf truncates t to midnight of its calendar date in loc.
func dateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func sameDate(a, b time.Time, loc *time.Location) bool {
	return dateOf(a, loc).Equal(dateOf(b, loc))
}
