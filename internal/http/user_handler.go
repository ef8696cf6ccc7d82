package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pollhub/internal/paging"
	"pollhub/internal/platform/apperr"
)

// @Summary     Current user summary
// @Tags        users
// @Security    BearerAuth
// @Produce     json
// @Success     200  {object}  user.Summary
// @Failure     401  {object}  apiResponse
// @Router      /api/user/me [get]
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	summary, err := h.userSvc.Me(r.Context(), callerFromCtx(r))
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// @Summary     Check username availability
// @Tags        users
// @Produce     json
// @Param       username  query     string  true  "Username"
// @Success     200       {object}  user.Availability
// @Router      /api/user/checkUsernameAvailability [get]
func (h *Handler) handleUsernameAvailability(w http.ResponseWriter, r *http.Request) {
	availability, err := h.userSvc.UsernameAvailable(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}

// @Summary     Check email availability
// @Tags        users
// @Produce     json
// @Param       email  query     string  true  "Email"
// @Success     200    {object}  user.Availability
// @Router      /api/user/checkEmailAvailability [get]
func (h *Handler) handleEmailAvailability(w http.ResponseWriter, r *http.Request) {
	availability, err := h.userSvc.EmailAvailable(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}

// @Summary     Public user profile with poll and vote counts
// @Tags        users
// @Produce     json
// @Param       username  path      string  true  "Username"
// @Success     200       {object}  user.Profile
// @Failure     404       {object}  apiResponse
// @Router      /api/users/{username} [get]
func (h *Handler) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.userSvc.Profile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// @Summary     Polls created by a user
// @Tags        users
// @Produce     json
// @Param       username  path      string  true   "Username"
// @Param       page      query     int     false  "Page number (zero-based)"
// @Param       size      query     int     false  "Page size"
// @Success     200       {object}  paging.Page[poll.Response]
// @Failure     400       {object}  apiResponse
// @Failure     404       {object}  apiResponse
// @Router      /api/users/{username}/polls [get]
func (h *Handler) handleUserPolls(w http.ResponseWriter, r *http.Request) {
	pg, err := pageableFromRequest(r)
	if err != nil {
		errorResponse(w, err)
		return
	}

	page, err := h.pollSvc.ListPollsCreatedBy(r.Context(), chi.URLParam(r, "username"), callerFromCtx(r), pg)
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// @Summary     Polls a user has voted in
// @Tags        users
// @Produce     json
// @Param       username  path      string  true   "Username"
// @Param       page      query     int     false  "Page number (zero-based)"
// @Param       size      query     int     false  "Page size"
// @Success     200       {object}  paging.Page[poll.Response]
// @Failure     400       {object}  apiResponse
// @Failure     404       {object}  apiResponse
// @Router      /api/users/{username}/votes [get]
func (h *Handler) handleUserVotes(w http.ResponseWriter, r *http.Request) {
	pg, err := pageableFromRequest(r)
	if err != nil {
		errorResponse(w, err)
		return
	}

	page, err := h.pollSvc.ListPollsVotedBy(r.Context(), chi.URLParam(r, "username"), callerFromCtx(r), pg)
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func pageableFromRequest(r *http.Request) (paging.Pageable, error) {
	q := r.URL.Query()
	pg, err := paging.FromQuery(q.Get("page"), q.Get("size"))
	if err != nil {
		return paging.Pageable{}, apperr.FromError(err)
	}
	return pg, nil
}
