package models

import (
	"time"
)

type NoticeKind string

const (
	NoticeMissedDeadline NoticeKind = "missed_deadline"
	NoticeGradedToday    NoticeKind = "graded_today"
)

type Notice struct {
	Kind  NoticeKind `json:"kind"`
	Title string     `json:"title"`
}

// Categories is the teacher-side partition of assignments.
type Categories struct {
	NoSubmissions  []Assignment `json:"no_submissions"`
	PendingGrading []Assignment `json:"pending_grading"`
	Finalized      []Assignment `json:"finalized"`
}

type AssignmentSummary struct {
	Title    string    `json:"title"`
	Subject  string    `json:"subject"`
	Deadline time.Time `json:"deadline"`
}

func Summarize(a *Assignment) AssignmentSummary {
	return AssignmentSummary{
		Title:    a.Title,
		Subject:  a.Subject,
		Deadline: a.Deadline,
	}
}

// StudentView is the student-side partition of assignments.
type StudentView struct {
	Upcoming  []AssignmentSummary `json:"upcoming"`
	PastDue   []AssignmentSummary `json:"past_due"`
	Graded    []AssignmentSummary `json:"graded"`
	Submitted []AssignmentSummary `json:"submitted"`
}

type TeacherDashboard struct {
	Categories Categories `json:"categories"`
	Subjects   []string   `json:"subjects"`
}

type StudentDashboard struct {
	View          StudentView `json:"view"`
	Notifications []Notice    `json:"notifications"`
	Subjects      []string    `json:"subjects"`
}
