package models

import (
	"time"
)

type ExtractionRequestedEvent struct {
	JobID     string    `json:"job_id"`
	Title     string    `json:"title"`
	Student   string    `json:"student"`
	Timestamp time.Time `json:"timestamp"`
}

type SubmissionRecordedEvent struct {
	Title     string    `json:"title"`
	Student   string    `json:"student"`
	TextPath  string    `json:"text_path"`
	Timestamp time.Time `json:"timestamp"`
}

type FeedbackFinalizedEvent struct {
	Title     string    `json:"title"`
	Student   string    `json:"student"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatMessage is one entry of a chat-completion conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
