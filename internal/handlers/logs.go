package handlers

import (
	"net/http"
	"strconv"

	"github.com/xelth-com/sealflow/internal/access"
	"github.com/xelth-com/sealflow/internal/apperr"
	"github.com/xelth-com/sealflow/internal/audit"
	"github.com/xelth-com/sealflow/internal/models"
)

// listLogs returns the activity log, admin only
func (r *Router) listLogs(w http.ResponseWriter, req *http.Request) {
	if err := access.RequireAdmin(principal(req)); err != nil {
		r.fail(w, req, err)
		return
	}

	query := req.URL.Query()
	q := audit.Query{ActorID: query.Get("actorId")}
	if s := query.Get("actionType"); s != "" {
		t, ok := models.ParseActivityType(s)
		if !ok {
			r.fail(w, req, apperr.BadRequest("Unknown actionType "+strconv.Quote(s)))
			return
		}
		q.ActionType = t
	}
	if s := query.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		q.Limit = n
	}

	logs, err := r.audit.List(req.Context(), q)
	if err != nil {
		r.fail(w, req, apperr.Collaborator("Failed to fetch activity logs", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}
