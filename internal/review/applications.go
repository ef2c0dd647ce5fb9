package review

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xelth-com/sealflow/internal/access"
	"github.com/xelth-com/sealflow/internal/apperr"
	"github.com/xelth-com/sealflow/internal/identity"
	"github.com/xelth-com/sealflow/internal/models"
	"github.com/xelth-com/sealflow/internal/sealing"
	"github.com/xelth-com/sealflow/internal/storage"
	"github.com/xelth-com/sealflow/internal/store"
	"github.com/xelth-com/sealflow/internal/workflow"
)

// CreateInput is an applicant's submission
type CreateInput struct {
	FullName             string `json:"fullName"`
	FatherHusbandName    string `json:"fatherHusbandName"`
	Age                  int    `json:"age"`
	Phone                string `json:"phone"`
	Email                string `json:"email"`
	Address              string `json:"address"`
	AadharNumber         string `json:"aadharNumber"`
	DigitalSignature     string `json:"digitalSignature"`
	DocumentType         string `json:"documentType"`
	RequiredByDate       string `json:"requiredByDate"`
	GovernmentDepartment string `json:"governmentDepartment,omitempty"`
	S3Key                string `json:"s3Key"`
	FileName             string `json:"fileName"`
	FileSize             int64  `json:"fileSize"`
}

// missingField returns the first empty required field, by its JSON name
func (in CreateInput) missingField() string {
	required := []struct {
		name  string
		empty bool
	}{
		{"fullName", strings.TrimSpace(in.FullName) == ""},
		{"fatherHusbandName", strings.TrimSpace(in.FatherHusbandName) == ""},
		{"age", in.Age <= 0},
		{"phone", strings.TrimSpace(in.Phone) == ""},
		{"email", strings.TrimSpace(in.Email) == ""},
		{"address", strings.TrimSpace(in.Address) == ""},
		{"aadharNumber", strings.TrimSpace(in.AadharNumber) == ""},
		{"digitalSignature", strings.TrimSpace(in.DigitalSignature) == ""},
		{"documentType", strings.TrimSpace(in.DocumentType) == ""},
		{"requiredByDate", strings.TrimSpace(in.RequiredByDate) == ""},
		{"s3Key", in.S3Key == ""},
		{"fileName", in.FileName == ""},
		{"fileSize", in.FileSize <= 0},
	}
	for _, f := range required {
		if f.empty {
			return f.name
		}
	}
	return ""
}

// DocumentInput replaces the document of a rejected application
type DocumentInput struct {
	S3Key    string `json:"s3Key"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

// ownDocument checks that key was issued under the caller's upload prefix.
// The key must be canonical, as path.Clean would leave it.
func ownDocument(p identity.Principal, key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") || path.Clean(key) != key {
		return apperr.BadRequest("Document does not belong to you")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." {
			return apperr.BadRequest("Document does not belong to you")
		}
	}
	if !strings.HasPrefix(key, "documents/"+p.ID+"/") {
		return apperr.BadRequest("Document does not belong to you")
	}
	return nil
}

// Create stores a new application in submitted state
func (s *Service) Create(ctx context.Context, p identity.Principal, in CreateInput) (*models.Application, error) {
	if field := in.missingField(); field != "" {
		return nil, apperr.BadRequest("Missing required field: " + field)
	}
	if err := ownDocument(p, in.S3Key); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	app := &models.Application{
		ID:                   uuid.New().String(),
		OwnerID:              p.ID,
		FullName:             strings.TrimSpace(in.FullName),
		GuardianName:         strings.TrimSpace(in.FatherHusbandName),
		Age:                  in.Age,
		Phone:                strings.TrimSpace(in.Phone),
		Email:                strings.TrimSpace(in.Email),
		Address:              strings.TrimSpace(in.Address),
		NationalID:           strings.TrimSpace(in.AadharNumber),
		DigitalSignature:     strings.TrimSpace(in.DigitalSignature),
		DocumentType:         strings.TrimSpace(in.DocumentType),
		RequiredByDate:       in.RequiredByDate,
		GovernmentDepartment: strings.TrimSpace(in.GovernmentDepartment),
		Document:             models.DocumentRef{Key: in.S3Key, FileName: in.FileName, Size: in.FileSize},
		Status:               models.StatusSubmitted,
		CurrentStep:          models.StepJunior,
		Reviews:              []models.Review{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.apps.CreateApplication(ctx, app); err != nil {
		return nil, apperr.Collaborator("Failed to create application", err)
	}
	s.log.Info("Application submitted",
		zap.String("application", app.ID), zap.String("owner", p.ID), zap.String("type", app.DocumentType))
	return app, nil
}

// List returns the applications p may see, newest first. An empty status
// or "all" lists every status.
func (s *Service) List(ctx context.Context, p identity.Principal, status string) ([]models.Application, error) {
	var filter store.ApplicationFilter
	if status != "" && status != "all" {
		st, ok := models.ParseStatus(status)
		if !ok {
			return nil, apperr.BadRequest(fmt.Sprintf("Unknown status %q", status))
		}
		filter.Status = st
	}
	if !p.Role.CanReview() {
		filter.OwnerID = p.ID
	}

	apps, err := s.apps.ListApplications(ctx, filter)
	if err != nil {
		return nil, apperr.Collaborator("Failed to fetch applications", err)
	}
	if apps == nil {
		apps = []models.Application{}
	}
	return apps, nil
}

// View is a single application as seen by one principal
type View struct {
	Application *models.Application
	// DownloadURL is a presigned URL; empty when the backend cannot sign,
	// in which case CanDownload says whether the streaming endpoint works
	DownloadURL string
	CanDownload bool
	CanReview   bool
}

// Get returns the application with the caller's download and review rights
func (s *Service) Get(ctx context.Context, p identity.Principal, id string) (*View, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireView(p, app); err != nil {
		return nil, err
	}

	v := &View{Application: app, CanReview: access.CanReview(p, app)}
	if key := access.DownloadKey(p, app); key != "" {
		v.CanDownload = true
		url, err := s.blobs.PresignGet(ctx, key, s.opts.PresignTTL)
		switch {
		case err == nil:
			v.DownloadURL = url
		case !errors.Is(err, storage.ErrPresignUnsupported):
			s.log.Warn("Failed to presign download", zap.String("application", id), zap.Error(err))
		}
	}
	return v, nil
}

// Download is a document ready to stream
type Download struct {
	FileName    string
	ContentType string
	Data        []byte
}

// OpenDownload fetches the artifact p is allowed to download
func (s *Service) OpenDownload(ctx context.Context, p identity.Principal, id string) (*Download, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := access.RequireDownload(p, app)
	if err != nil {
		return nil, err
	}

	data, err := s.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("Document not found")
		}
		return nil, apperr.Collaborator("Failed to fetch document", err)
	}

	name := app.Document.FileName
	if app.IsSealed() && key == app.SignedKey {
		name = sealing.SealedKey(name)
	}
	ct := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Download{FileName: name, ContentType: ct, Data: data}, nil
}

// Resubmit replaces the document of the caller's rejected application and
// restarts review at the junior stage. Earlier reviews stay in the history.
func (s *Service) Resubmit(ctx context.Context, p identity.Principal, id string, in DocumentInput) (*models.Application, error) {
	if !s.opts.AllowResubmission {
		return nil, apperr.Forbidden("Resubmission is not enabled")
	}
	if in.S3Key == "" || in.FileName == "" || in.FileSize <= 0 {
		return nil, apperr.BadRequest("Missing required field: s3Key, fileName and fileSize are required")
	}
	if err := ownDocument(p, in.S3Key); err != nil {
		return nil, err
	}

	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.OwnerID != p.ID {
		return nil, apperr.Forbidden("Only the applicant can resubmit an application")
	}
	if app.Status != models.StatusRejected {
		return nil, apperr.BadRequest("Only rejected applications can be resubmitted")
	}

	doc := models.DocumentRef{Key: in.S3Key, FileName: in.FileName, Size: in.FileSize}
	if err := s.apps.Resubmit(ctx, id, doc, s.now().UTC()); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return nil, apperr.New(apperr.KindConflict, "Application changed while resubmitting. Refresh and try again")
		case errors.Is(err, store.ErrNotFound):
			return nil, apperr.NotFound("Application not found")
		}
		return nil, apperr.Collaborator("Failed to resubmit application", err)
	}

	s.log.Info("Application resubmitted", zap.String("application", id), zap.String("owner", p.ID))
	return s.load(ctx, id)
}

// Verification is the public record behind a verification code
type Verification struct {
	VerificationCode      string    `json:"verificationCode"`
	DocumentType          string    `json:"documentType"`
	ApplicantName         string    `json:"applicantName"`
	JuniorReviewerName    string    `json:"juniorReviewerName,omitempty"`
	ComplianceOfficerName string    `json:"complianceOfficerName,omitempty"`
	ApprovedAt            time.Time `json:"approvedAt"`
	Digest                string    `json:"digest"`
}

// Verify looks up a sealed document by its code. Malformed and unknown
// codes look the same to the caller.
func (s *Service) Verify(ctx context.Context, code string) (*Verification, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !sealing.ValidCode(code) {
		return nil, apperr.NotFound("Verification code not found")
	}

	app, err := s.apps.FindByVerificationCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Verification code not found")
		}
		return nil, apperr.Collaborator("Failed to verify document", err)
	}

	v := &Verification{
		VerificationCode: app.VerificationCode,
		DocumentType:     app.DocumentType,
		ApplicantName:    app.FullName,
		Digest:           app.SignedDigest,
	}
	if app.SignedAt != nil {
		v.ApprovedAt = *app.SignedAt
	}
	if junior, ok := workflow.JuniorApproval(app.Reviews); ok {
		v.JuniorReviewerName = junior.ReviewerName
	}
	for i := len(app.Reviews) - 1; i >= 0; i-- {
		if r := app.Reviews[i]; r.ReviewerRole == models.RoleComplianceOfficer && r.Action == models.ReviewApproved {
			v.ComplianceOfficerName = r.ReviewerName
			break
		}
	}
	return v, nil
}
