package httpd

import (
	"context"
	"net/http"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/RubachokBoss/evalmate/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

type Handler struct {
	authService       service.AuthService
	assignmentService service.AssignmentService
	submissionService service.SubmissionService
	jobService        service.JobService
	gradingService    service.GradingService
	dashboardService  service.DashboardService
	exportService     service.ExportService
	maxUploadSize     int64
	readiness         map[string]ReadinessCheck
	stats             func() map[string]interface{}
	logger            zerolog.Logger
}

type Services struct {
	Auth        service.AuthService
	Assignments service.AssignmentService
	Submissions service.SubmissionService
	Jobs        service.JobService
	Grading     service.GradingService
	Dashboards  service.DashboardService
	Exports     service.ExportService
}

func NewHandler(services Services, maxUploadSize int64, logger zerolog.Logger) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = 32 << 20
	}
	return &Handler{
		authService:       services.Auth,
		assignmentService: services.Assignments,
		submissionService: services.Submissions,
		jobService:        services.Jobs,
		gradingService:    services.Grading,
		dashboardService:  services.Dashboards,
		exportService:     services.Exports,
		maxUploadSize:     maxUploadSize,
		readiness:         make(map[string]ReadinessCheck),
		logger:            logger,
	}
}

// AddReadinessCheck registers a dependency checked by /ready.
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.readiness[name] = check
}

// SetStats exposes worker statistics on /ready.
func (h *Handler) SetStats(stats func() map[string]interface{}) {
	h.stats = stats
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.HealthCheck)
	router.Get("/ready", h.ReadyCheck)

	router.Route("/api/v1", func(api chi.Router) {
		api.Post("/auth/login", h.Login)

		api.Group(func(r chi.Router) {
			r.Use(h.Authenticate)

			r.Post("/auth/logout", h.Logout)

			r.Route("/assignments", func(r chi.Router) {
				r.Get("/", h.ListAssignments)
				r.With(RequireRole(models.RoleTeacher)).Post("/", h.CreateAssignment)

				r.Route("/{title}", func(r chi.Router) {
					r.Get("/", h.GetAssignment)
					r.With(RequireRole(models.RoleTeacher)).Delete("/", h.DeleteAssignment)

					r.Group(func(r chi.Router) {
						r.Use(RequireRole(models.RoleStudent))
						r.Put("/submission", h.UploadSubmission)
						r.Post("/submission/extract", h.RequestExtraction)
					})

					r.Route("/students/{student}", func(r chi.Router) {
						r.With(RequireRole(models.RoleTeacher)).Post("/feedback/draft", h.GenerateFeedback)
						r.With(RequireRole(models.RoleTeacher)).Get("/feedback/draft", h.GetDraft)
						r.With(RequireRole(models.RoleTeacher)).Post("/feedback", h.FinalizeFeedback)
						r.Get("/feedback", h.GetFeedback)
						r.Get("/feedback.pdf", h.GetFeedbackPDF)
					})
				})
			})

			r.Route("/jobs/{id}", func(r chi.Router) {
				r.Get("/", h.GetJob)
				r.Post("/retry", h.RetryJob)
			})

			r.Route("/dashboard", func(r chi.Router) {
				r.With(RequireRole(models.RoleTeacher)).Get("/teacher", h.TeacherDashboard)
				r.With(RequireRole(models.RoleStudent)).Get("/student", h.StudentDashboard)
			})
		})
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"service":   "evalmate",
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.readiness))
	for name, check := range h.readiness {
		if err := check(ctx); err != nil {
			h.logger.Warn().Err(err).Str("check", name).Msg("Readiness check failed")
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	response := map[string]interface{}{
		"status":    "ready",
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	}
	if status != http.StatusOK {
		response["status"] = "not_ready"
	}
	if h.stats != nil {
		response["workers"] = h.stats()
	}

	writeJSON(w, status, response)
}
