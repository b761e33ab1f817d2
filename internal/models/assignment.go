package models

import (
	"time"
)

const (
	SchemaVersion = 1

	// DeadlineLayout формат дедлайна во входящих запросах
	DeadlineLayout = "2006-01-02 15:04:05"
)

type Assignment struct {
	Title          string                   `json:"title"`
	Subject        string                   `json:"subject"`
	Deadline       time.Time                `json:"deadline"`
	ModelAnswer    string                   `json:"model_answer"`
	ExtractedTexts map[string]string        `json:"extracted_texts"`
	GradedStudents map[string]GradedStudent `json:"graded_students"`
	SubmittedFiles []string                 `json:"submitted_files"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

type GradedStudent struct {
	Feedback  string `json:"feedback"`
	Finalized bool   `json:"finalized"`
}

func (a *Assignment) HasSubmission(student string) bool {
	_, ok := a.ExtractedTexts[student]
	return ok
}

func (a *Assignment) IsFinalized(student string) bool {
	graded, ok := a.GradedStudents[student]
	return ok && graded.Finalized
}

// AllFinalized is true when every student with an extracted text has finalized feedback.
func (a *Assignment) AllFinalized() bool {
	for student := range a.ExtractedTexts {
		if !a.IsFinalized(student) {
			return false
		}
	}
	return true
}

func (a *Assignment) normalize() {
	if a.ExtractedTexts == nil {
		a.ExtractedTexts = make(map[string]string)
	}
	if a.GradedStudents == nil {
		a.GradedStudents = make(map[string]GradedStudent)
	}
	if a.SubmittedFiles == nil {
		a.SubmittedFiles = []string{}
	}
}

// AssignmentIndex is the persisted collection of all assignments, kept in insertion order.
type AssignmentIndex struct {
	SchemaVersion int          `json:"schema_version"`
	Revision      int64        `json:"revision"`
	Assignments   []Assignment `json:"assignments"`
}

func (idx *AssignmentIndex) GetRevision() int64  { return idx.Revision }
func (idx *AssignmentIndex) SetRevision(r int64) { idx.Revision = r }

func (idx *AssignmentIndex) Normalize() {
	idx.SchemaVersion = SchemaVersion
	if idx.Assignments == nil {
		idx.Assignments = []Assignment{}
	}
	for i := range idx.Assignments {
		idx.Assignments[i].normalize()
	}
}

// Find returns a pointer into the index, or nil when the title is unknown.
func (idx *AssignmentIndex) Find(title string) *Assignment {
	for i := range idx.Assignments {
		if idx.Assignments[i].Title == title {
			return &idx.Assignments[i]
		}
	}
	return nil
}

func (idx *AssignmentIndex) Add(a Assignment) {
	a.normalize()
	idx.Assignments = append(idx.Assignments, a)
}

// Remove deletes the assignment and reports whether it was present.
func (idx *AssignmentIndex) Remove(title string) bool {
	for i := range idx.Assignments {
		if idx.Assignments[i].Title == title {
			idx.Assignments = append(idx.Assignments[:i], idx.Assignments[i+1:]...)
			return true
		}
	}
	return false
}
