package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/xelth-com/sealflow/internal/review"
)

// createApplication submits a new application
func (r *Router) createApplication(w http.ResponseWriter, req *http.Request) {
	var in review.CreateInput
	if !decode(w, req, &in) {
		return
	}

	app, err := r.apps.Create(req.Context(), principal(req), in)
	if err != nil {
		r.fail(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success":       true,
		"applicationId": app.ID,
	})
}

// listApplications lists what the caller may see, optionally by status
func (r *Router) listApplications(w http.ResponseWriter, req *http.Request) {
	apps, err := r.apps.List(req.Context(), principal(req), req.URL.Query().Get("status"))
	if err != nil {
		r.fail(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"applications": apps})
}

// getApplication returns one application with the caller's rights on it
func (r *Router) getApplication(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	v, err := r.apps.Get(req.Context(), principal(req), id)
	if err != nil {
		r.fail(w, req, err)
		return
	}

	var downloadURL interface{}
	switch {
	case v.DownloadURL != "":
		downloadURL = v.DownloadURL
	case v.CanDownload:
		downloadURL = r.prefix + "/api/applications/" + id + "/download"
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"application": v.Application,
		"downloadUrl": downloadURL,
		"canReview":   v.CanReview,
	})
}

// downloadApplication streams the document the caller may download
func (r *Router) downloadApplication(w http.ResponseWriter, req *http.Request) {
	d, err := r.apps.OpenDownload(req.Context(), principal(req), mux.Vars(req)["id"])
	if err != nil {
		r.fail(w, req, err)
		return
	}
	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Data)))
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(d.FileName))
	w.WriteHeader(http.StatusOK)
	w.Write(d.Data)
}

// ReviewRequest is a reviewer's decision
type ReviewRequest struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

// reviewApplication records an approve or reject decision
func (r *Router) reviewApplication(w http.ResponseWriter, req *http.Request) {
	var body ReviewRequest
	if !decode(w, req, &body) {
		return
	}

	res, err := r.apps.SubmitReview(req.Context(), principal(req), mux.Vars(req)["id"], body.Action, body.Comment)
	if err != nil {
		r.fail(w, req, err)
		return
	}

	out := map[string]interface{}{
		"success":     true,
		"newStatus":   res.NewStatus,
		"currentStep": res.CurrentStep,
		"message":     res.Message,
	}
	if res.VerificationCode != "" {
		out["verificationCode"] = res.VerificationCode
	}
	respondJSON(w, http.StatusOK, out)
}

// resubmitApplication swaps the document of a rejected application
func (r *Router) resubmitApplication(w http.ResponseWriter, req *http.Request) {
	var in review.DocumentInput
	if !decode(w, req, &in) {
		return
	}

	app, err := r.apps.Resubmit(req.Context(), principal(req), mux.Vars(req)["id"], in)
	if err != nil {
		r.fail(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"application": app,
	})
}

// verify is the public lookup behind the QR code on a sealed document
func (r *Router) verify(w http.ResponseWriter, req *http.Request) {
	v, err := r.apps.Verify(req.Context(), mux.Vars(req)["code"])
	if err != nil {
		r.fail(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":    true,
		"document": v,
	})
}
