package httpd

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

type contextKey string

const sessionKey contextKey = "session"

func RequestLogger(log zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			start := time.Now()
			defer func() {
				event := log.Info()
				if ww.Status() >= http.StatusInternalServerError {
					event = log.Error()
				}
				event.
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("query", r.URL.RawQuery).
					Str("ip", r.RemoteAddr).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

func Recovery(log zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil && rvr != http.ErrAbortHandler {
					log.Error().
						Interface("recover", rvr).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Str("request_id", middleware.GetReqID(r.Context())).
						Msg("Panic recovered")

					writeError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

func NewCORS(allowedOrigins, allowedMethods, allowedHeaders, exposedHeaders []string,
	allowCredentials bool, maxAge int) func(http.Handler) http.Handler {

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})
}

// Authenticate requires a valid bearer token and stores the session in the request context.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}

		session, err := h.authService.Authenticate(strings.TrimSpace(token))
		if err != nil {
			h.handleServiceError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole lets through only sessions with one of roles.
func RequireRole(roles ...models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sessionFromContext(r.Context())
			if session == nil {
				writeError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			for _, role := range roles {
				if session.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Not allowed for role "+session.Role.String())
		})
	}
}

func sessionFromContext(ctx context.Context) *models.Session {
	session, _ := ctx.Value(sessionKey).(*models.Session)
	return session
}

// canSeeStudent: teachers see everyone, students only themselves.
func canSeeStudent(session *models.Session, student string) bool {
	if session == nil {
		return false
	}
	return session.Role == models.RoleTeacher || session.Username == student
}
