package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"

	"pollhub/internal/domain/user"
	"pollhub/internal/platform/apperr"
)

type loginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
}

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// @Summary     Authenticate with username or email
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request  body      loginRequest  true  "Credentials"
// @Success     200      {object}  loginResponse
// @Failure     401      {object}  apiResponse
// @Router      /api/auth/login [post]
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}
	if req.UsernameOrEmail == "" || req.Password == "" {
		errorResponse(w, apperr.BadRequest("invalid_input", "usernameOrEmail and password are required", nil))
		return
	}

	u, err := h.userSvc.Login(r.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		errorResponse(w, err)
		return
	}

	token, err := h.jwtMgr.Generate(u.ID, u.Username, u.Roles)
	if err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
	})
}

// @Summary     Register a new user
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request  body      registerRequest  true  "New account"
// @Success     201      {object}  apiResponse
// @Failure     400      {object}  apiResponse  "validation failure or duplicate username/email"
// @Router      /api/auth/register [post]
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}
	if err := validateRegister(req); err != nil {
		errorResponse(w, err)
		return
	}

	u, err := h.userSvc.Register(r.Context(), user.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		errorResponse(w, err)
		return
	}

	w.Header().Set("Location", "/api/users/"+u.Username)
	writeJSON(w, http.StatusCreated, apiResponse{
		Success: true,
		Message: "User registered successfully",
	})
}

func validateRegister(req registerRequest) error {
	if req.FirstName == "" || req.LastName == "" {
		return apperr.BadRequest("invalid_input", "firstName and lastName are required", nil)
	}
	if len(req.Username) < 3 || len(req.Username) > 15 {
		return apperr.BadRequest("invalid_input", "username must be 3..15 characters", nil)
	}
	if len(req.Password) < 6 || len(req.Password) > 20 {
		return apperr.BadRequest("invalid_input", "password must be 6..20 characters", nil)
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		return apperr.BadRequest("invalid_input", fmt.Sprintf("invalid email address: %q", req.Email), nil)
	}
	return nil
}
