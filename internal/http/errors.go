package api

import (
	"database/sql"
	"errors"
	"net/http"

	"pollhub/internal/domain/poll"
	"pollhub/internal/domain/user"
	"pollhub/internal/domain/vote"
	"pollhub/internal/platform/apperr"
)

// apiResponse is the uniform body for error responses and simple acks.
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func errorResponse(w http.ResponseWriter, err error) {
	appErr := mapError(err)
	if appErr.StatusCode() >= http.StatusInternalServerError {
		slogLogger.Error("request failed", "code", appErr.Code, "err", appErr.Unwrap())
	}
	writeJSON(w, appErr.StatusCode(), apiResponse{
		Success: false,
		Message: appErr.Message,
	})
}

func mapError(err error) *apperr.AppError {
	if err == nil {
		return apperr.Internal("internal_error", "internal server error", nil)
	}

	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, user.ErrUsernameTaken):
		return apperr.BadRequest("username_taken", "Username is already taken", err)
	case errors.Is(err, user.ErrEmailTaken):
		return apperr.BadRequest("email_taken", "Email address already in use", err)
	case errors.Is(err, user.ErrInvalidCredentials):
		return apperr.Unauthorized("invalid_credentials", "invalid username or password", err)
	case errors.Is(err, vote.ErrAlreadyVoted):
		return apperr.BadRequest("already_voted", "Already voted in this poll", err)
	case errors.Is(err, user.ErrNotFound), errors.Is(err, poll.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return apperr.NotFound("not_found", "resource not found", err)
	default:
		return apperr.Internal("internal_error", http.StatusText(http.StatusInternalServerError), err)
	}
}
