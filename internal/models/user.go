package models

import (
	"time"
)

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// Session is the authenticated identity attached to a request.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type FeedbackBlob struct {
	Title     string    `json:"title"`
	Student   string    `json:"student"`
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}
