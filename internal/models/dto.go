package models

type CreateAssignmentRequest struct {
	Title       string `json:"title" validate:"notblank,max=200"`
	Subject     string `json:"subject" validate:"max=100"`
	Deadline    string `json:"deadline" validate:"required,datetime=2006-01-02 15:04:05"`
	ModelAnswer string `json:"model_answer" validate:"notblank"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"notblank"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role" validate:"required,oneof=teacher student"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	ExpiresAt string `json:"expires_at"`
}

type GenerateFeedbackRequest struct {
	Instructions string `json:"instructions" validate:"max=4000"`
}

type FinalizeFeedbackRequest struct {
	Feedback string `json:"feedback" validate:"notblank"`
}

type FeedbackDraftResponse struct {
	Title   string `json:"title"`
	Student string `json:"student"`
	Draft   string `json:"draft"`
}

type UploadResponse struct {
	Title      string `json:"title"`
	Student    string `json:"student"`
	UploadPath string `json:"upload_path"`
	SHA256     string `json:"sha256"`
	Size       int64  `json:"size"`
}
