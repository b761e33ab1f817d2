package repository

import (
	"net/url"
	"strings"
)

const (
	AssignmentsPath = "assignments/assignments.json"
	SubmissionsPath = "submissions/submissions.json"

	extractedTextsPrefix = "extracted_texts"
	feedbacksPrefix      = "feedbacks"
	uploadsPrefix        = "uploads"
	jobsPrefix           = "jobs"
)

// SanitizeSegment encodes a title or username as one path segment. The encoding is
// reversible, so distinct names never share a blob prefix ("HW 1" and "HW_1" stay apart).
func SanitizeSegment(s string) string {
	switch s {
	case "":
		// PathEscape always emits %XX triplets, so a lone % is never produced for a real name
		return "%"
	case ".", "..":
		return strings.ReplaceAll(s, ".", "%2E")
	}
	return url.PathEscape(s)
}

func ExtractedTextPath(title, student string) string {
	return extractedTextsPrefix + "/" + SanitizeSegment(title) + "/" + SanitizeSegment(student) + ".txt"
}

func FeedbackPath(title, student string) string {
	return feedbacksPrefix + "/" + SanitizeSegment(title) + "/" + SanitizeSegment(student) + ".txt"
}

func UploadPath(title, student string) string {
	return uploadsPrefix + "/" + SanitizeSegment(title) + "/" + SanitizeSegment(student) + ".pdf"
}

func JobPath(id string) string {
	return jobsPrefix + "/" + SanitizeSegment(id) + ".json"
}

// AssignmentPrefixes lists the blob prefixes owned by one assignment.
func AssignmentPrefixes(title string) []string {
	t := SanitizeSegment(title)
	return []string{
		extractedTextsPrefix + "/" + t + "/",
		feedbacksPrefix + "/" + t + "/",
		uploadsPrefix + "/" + t + "/",
	}
}
