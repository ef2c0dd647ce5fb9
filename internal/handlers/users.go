package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/xelth-com/sealflow/internal/accounts"
)

// listUsers returns the reviewer accounts the caller manages
func (r *Router) listUsers(w http.ResponseWriter, req *http.Request) {
	users, err := r.accounts.ListManaged(req.Context(), principal(req))
	if err != nil {
		r.fail(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// createUser creates a reviewer account
func (r *Router) createUser(w http.ResponseWriter, req *http.Request) {
	var creds accounts.Credentials
	if !decode(w, req, &creds) {
		return
	}

	user, err := r.accounts.CreateReviewer(req.Context(), principal(req), creds)
	if err != nil {
		r.fail(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"userId":  user.ID,
		"user":    user,
		"message": fmt.Sprintf("%s account created successfully", strings.ReplaceAll(string(user.Role), "_", " ")),
	})
}

// deleteUser removes a reviewer account
func (r *Router) deleteUser(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if err := r.accounts.DeleteReviewer(req.Context(), principal(req), id); err != nil {
		r.fail(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      id,
		"message": "User account disabled successfully",
	})
}
