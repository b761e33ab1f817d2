package models

// SubmissionIndex maps a student to the titles they have submitted, in submission order.
type SubmissionIndex struct {
	SchemaVersion int                 `json:"schema_version"`
	Revision      int64               `json:"revision"`
	Students      map[string][]string `json:"students"`
}

func (idx *SubmissionIndex) GetRevision() int64  { return idx.Revision }
func (idx *SubmissionIndex) SetRevision(r int64) { idx.Revision = r }

func (idx *SubmissionIndex) Normalize() {
	idx.SchemaVersion = SchemaVersion
	if idx.Students == nil {
		idx.Students = make(map[string][]string)
	}
}

func (idx *SubmissionIndex) Has(student, title string) bool {
	for _, t := range idx.Students[student] {
		if t == title {
			return true
		}
	}
	return false
}

// Add appends title to the student's history unless it is already there.
func (idx *SubmissionIndex) Add(student, title string) {
	if idx.Has(student, title) {
		return
	}
	idx.Students[student] = append(idx.Students[student], title)
}

func (idx *SubmissionIndex) Remove(student, title string) {
	titles := idx.Students[student]
	for i, t := range titles {
		if t == title {
			idx.Students[student] = append(titles[:i:i], titles[i+1:]...)
			break
		}
	}
	if len(idx.Students[student]) == 0 {
		delete(idx.Students, student)
	}
}

// RemoveTitle drops title from every student's history.
func (idx *SubmissionIndex) RemoveTitle(title string) {
	for student := range idx.Students {
		idx.Remove(student, title)
	}
}

func (idx *SubmissionIndex) Titles(student string) []string {
	return append([]string(nil), idx.Students[student]...)
}
