package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"pollhub/internal/domain/poll"
	"pollhub/internal/domain/user"
	jwtpkg "pollhub/internal/platform/jwt"
	"pollhub/internal/worker"
)

type Handler struct {
	userSvc *user.Service
	pollSvc *poll.Service
	jwtMgr  *jwtpkg.Manager
	voteCh  chan<- worker.VoteEvent
	db      *sql.DB
}

func NewRouter(
	userSvc *user.Service,
	pollSvc *poll.Service,
	jwtMgr *jwtpkg.Manager,
	voteCh chan<- worker.VoteEvent,
	db *sql.DB,
) http.Handler {
	h := &Handler{
		userSvc: userSvc,
		pollSvc: pollSvc,
		jwtMgr:  jwtMgr,
		voteCh:  voteCh,
		db:      db,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(RequestLogger)
	r.Use(CORSMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", h.handleReady)
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/register", h.handleRegister)

		r.Get("/user/checkUsernameAvailability", h.handleUsernameAvailability)
		r.Get("/user/checkEmailAvailability", h.handleEmailAvailability)

		r.Group(func(r chi.Router) {
			r.Use(OptionalAuth(jwtMgr))

			r.Get("/polls", h.handleListPolls)
			r.Get("/polls/{pollId}", h.handleGetPoll)
			r.Get("/users/{username}", h.handleUserProfile)
			r.Get("/users/{username}/polls", h.handleUserPolls)
			r.Get("/users/{username}/votes", h.handleUserVotes)
		})

		r.Group(func(r chi.Router) {
			r.Use(Auth(jwtMgr))
			r.Use(RequireRole(user.RoleUser))

			r.Get("/user/me", h.handleMe)
			r.Post("/polls", h.handleCreatePoll)
			r.With(RateLimitVotes(rate.Every(time.Minute/10), 3)).
				Post("/polls/{pollId}/votes", h.handleCastVote)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	idStr := chi.URLParam(r, name)
	return strconv.ParseInt(idStr, 10, 64)
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiResponse{
			Success: false,
			Message: "database not configured",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, apiResponse{
			Success: false,
			Message: "database not ready",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
