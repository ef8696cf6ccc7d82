package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"pollhub/internal/domain/poll"
	"pollhub/internal/platform/apperr"
	"pollhub/internal/worker"
)

type pollRequest struct {
	Question   string          `json:"question"`
	Choices    []choiceRequest `json:"choices"`
	PollLength poll.Length     `json:"pollLength"`
}

type choiceRequest struct {
	Text string `json:"text"`
}

type voteRequest struct {
	ChoiceID int64 `json:"choiceId"`
}

// @Summary     List all polls, newest first
// @Tags        polls
// @Produce     json
// @Param       page  query     int  false  "Page number (zero-based)"
// @Param       size  query     int  false  "Page size"
// @Success     200   {object}  paging.Page[poll.Response]
// @Failure     400   {object}  apiResponse
// @Router      /api/polls [get]
func (h *Handler) handleListPolls(w http.ResponseWriter, r *http.Request) {
	pg, err := pageableFromRequest(r)
	if err != nil {
		errorResponse(w, err)
		return
	}

	page, err := h.pollSvc.ListPolls(r.Context(), callerFromCtx(r), pg)
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// @Summary     Create a poll
// @Tags        polls
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       request  body      pollRequest  true  "Poll definition"
// @Success     201      {object}  apiResponse
// @Failure     400      {object}  apiResponse
// @Router      /api/polls [post]
func (h *Handler) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	var req pollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	choices := make([]string, 0, len(req.Choices))
	for _, c := range req.Choices {
		choices = append(choices, c.Text)
	}

	p, err := h.pollSvc.CreatePoll(r.Context(), callerFromCtx(r), poll.CreateInput{
		Question: req.Question,
		Choices:  choices,
		Length:   req.PollLength,
	})
	if err != nil {
		errorResponse(w, err)
		return
	}

	w.Header().Set("Location", "/api/polls/"+strconv.FormatInt(p.ID, 10))
	writeJSON(w, http.StatusCreated, apiResponse{
		Success: true,
		Message: "Poll created successfully",
	})
}

// @Summary     Get a poll by id
// @Tags        polls
// @Produce     json
// @Param       pollId  path      int64  true  "Poll ID"
// @Success     200     {object}  poll.Response
// @Failure     404     {object}  apiResponse
// @Router      /api/polls/{pollId} [get]
func (h *Handler) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	pollID, err := parseIDParam(r, "pollId")
	if err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid poll id", err))
		return
	}

	resp, err := h.pollSvc.GetPoll(r.Context(), pollID, callerFromCtx(r))
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// @Summary     Cast a vote and return the updated poll
// @Tags        polls
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       pollId   path      int64        true  "Poll ID"
// @Param       request  body      voteRequest  true  "Chosen choice"
// @Success     200      {object}  poll.Response
// @Failure     400      {object}  apiResponse  "expired poll or duplicate vote"
// @Failure     404      {object}  apiResponse
// @Router      /api/polls/{pollId}/votes [post]
func (h *Handler) handleCastVote(w http.ResponseWriter, r *http.Request) {
	pollID, err := parseIDParam(r, "pollId")
	if err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid poll id", err))
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}
	if req.ChoiceID == 0 {
		errorResponse(w, apperr.BadRequest("invalid_input", "choiceId is required", nil))
		return
	}

	caller := callerFromCtx(r)
	resp, err := h.pollSvc.CastVote(r.Context(), caller, pollID, req.ChoiceID)
	if err != nil {
		errorResponse(w, err)
		return
	}

	select {
	case h.voteCh <- worker.VoteEvent{PollID: pollID, ChoiceID: req.ChoiceID, UserID: caller.ID}:
	default:
	}

	writeJSON(w, http.StatusOK, resp)
}
