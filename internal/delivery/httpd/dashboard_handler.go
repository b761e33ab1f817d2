package httpd

import (
	"net/http"

	"github.com/RubachokBoss/evalmate/internal/service"
)

func (h *Handler) TeacherDashboard(w http.ResponseWriter, r *http.Request) {
	subject := getStringQueryParam(r, "subject", service.AllSubjects)

	dashboard, err := h.dashboardService.Teacher(r.Context(), subject)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, dashboard)
}

func (h *Handler) StudentDashboard(w http.ResponseWriter, r *http.Request) {
	subject := getStringQueryParam(r, "subject", service.AllSubjects)
	session := sessionFromContext(r.Context())

	dashboard, err := h.dashboardService.Student(r.Context(), session.Username, subject)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, dashboard)
}
