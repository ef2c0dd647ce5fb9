package handlers

import (
	"net/http"

	"github.com/xelth-com/sealflow/internal/accounts"
	"github.com/xelth-com/sealflow/internal/models"
	"github.com/xelth-com/sealflow/internal/utils"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// login handles user login
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var loginReq LoginRequest
	if !decode(w, req, &loginReq) {
		return
	}

	user, err := r.accounts.Authenticate(req.Context(), loginReq.Email, loginReq.Password)
	if err != nil {
		r.fail(w, req, err)
		return
	}
	r.respondWithTokens(w, http.StatusOK, user, "Logged in successfully")
}

// register creates an applicant account and logs it in
func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var creds accounts.Credentials
	if !decode(w, req, &creds) {
		return
	}
	// Self-registration always yields an applicant
	creds.Role = ""

	user, err := r.accounts.Register(req.Context(), creds)
	if err != nil {
		r.fail(w, req, err)
		return
	}
	r.respondWithTokens(w, http.StatusCreated, user, "User registered successfully")
}

func (r *Router) respondWithTokens(w http.ResponseWriter, status int, user *models.UserAuth, message string) {
	accessToken, refreshToken, err := utils.GenerateTokens(user, r.cfg)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}
	respondJSON(w, status, map[string]interface{}{
		"message": message,
		"tokens": map[string]string{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
		"user": user,
	})
}

// logout handles user logout
func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	// Tokens are stateless; the client drops them
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
