package review

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xelth-com/sealflow/internal/apperr"
	"github.com/xelth-com/sealflow/internal/audit"
	"github.com/xelth-com/sealflow/internal/models"
	"github.com/xelth-com/sealflow/internal/storage"
	"github.com/xelth-com/sealflow/internal/store"
	"github.com/xelth-com/sealflow/internal/store/memory"
)

func TestCreateValidation(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()
	key := storage.DocumentKey(dave.ID, "income.pdf", time.Now())

	valid := CreateInput{
		FullName: "Dave", FatherHusbandName: "Ed", Age: 30, Phone: "1", Email: "d@example.com",
		Address: "Pune", AadharNumber: "1234", DigitalSignature: "Dave", DocumentType: "income_certificate",
		RequiredByDate: "2026-12-31", S3Key: key, FileName: "income.pdf", FileSize: 10,
	}

	tests := []struct {
		name   string
		mutate func(*CreateInput)
		want   string
	}{
		{"missing name", func(in *CreateInput) { in.FullName = "  " }, "Missing required field: fullName"},
		{"zero age", func(in *CreateInput) { in.Age = 0 }, "Missing required field: age"},
		{"missing key", func(in *CreateInput) { in.S3Key = "" }, "Missing required field: s3Key"},
		{"foreign key", func(in *CreateInput) { in.S3Key = "documents/erin/1-x.pdf" }, "Document does not belong to you"},
		{"climbs into another prefix", func(in *CreateInput) { in.S3Key = "documents/dave/../erin/1-x.pdf" }, "Document does not belong to you"},
		{"dot segment", func(in *CreateInput) { in.S3Key = "documents/dave/./1-x.pdf" }, "Document does not belong to you"},
		{"double slash", func(in *CreateInput) { in.S3Key = "documents/dave//1-x.pdf" }, "Document does not belong to you"},
		{"absolute", func(in *CreateInput) { in.S3Key = "/documents/dave/1-x.pdf" }, "Document does not belong to you"},
		{"backslash", func(in *CreateInput) { in.S3Key = "documents/dave/..\\erin\\1-x.pdf" }, "Document does not belong to you"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := fx.svc.Create(ctx, dave, in)
			expectKind(t, err, apperr.KindBadRequest)
			if msg := apperr.PublicMessage(err); msg != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, msg)
			}
		})
	}

	app, err := fx.svc.Create(ctx, dave, valid)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if app.Status != models.StatusSubmitted || app.CurrentStep != models.StepJunior || app.OwnerID != dave.ID {
		t.Errorf("Unexpected new application %+v", app)
	}
	if app.Reviews == nil || len(app.Reviews) != 0 {
		t.Errorf("Expected an empty review list, got %v", app.Reviews)
	}
}

func TestCreateCannotReachAnotherApplicantsFile(t *testing.T) {
	ctx := context.Background()
	blobs, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	if err := blobs.Put(ctx, "documents/erin/1-secret.txt", []byte("ERIN PRIVATE"), "text/plain"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	st := memory.New()
	log := zap.NewNop()
	svc := NewService(st, blobs, &fakeSealer{}, audit.New(st, log), log, Options{})

	in := CreateInput{
		FullName: "Dave", FatherHusbandName: "Ed", Age: 30, Phone: "1", Email: "d@example.com",
		Address: "Pune", AadharNumber: "1234", DigitalSignature: "Dave", DocumentType: "income_certificate",
		RequiredByDate: "2026-12-31", S3Key: "documents/dave/../erin/1-secret.txt", FileName: "secret.txt", FileSize: 12,
	}
	_, err = svc.Create(ctx, dave, in)
	expectKind(t, err, apperr.KindBadRequest)

	apps, _ := st.ListApplications(ctx, store.ApplicationFilter{})
	if len(apps) != 0 {
		t.Fatalf("Expected no application to be stored, got %d", len(apps))
	}

	in.S3Key = "documents/dave/1-own.txt"
	if err := blobs.Put(ctx, in.S3Key, []byte("DAVE"), "text/plain"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	app, err := svc.Create(ctx, dave, in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	svc.SubmitReview(ctx, alice, app.ID, "approved", "")
	svc.SubmitReview(ctx, bob, app.ID, "approved", "")
	dl, err := svc.OpenDownload(ctx, dave, app.ID)
	if err != nil {
		t.Fatalf("OpenDownload failed: %v", err)
	}
	if string(dl.Data) != "DAVE" {
		t.Errorf("Expected the applicant's own file, got %q", dl.Data)
	}
}

func TestListScopesByRole(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()
	mine := fx.submit(t, dave, "a.pdf")
	fx.submit(t, erin, "b.pdf")
	fx.svc.SubmitReview(ctx, alice, mine.ID, "approved", "")

	own, err := fx.svc.List(ctx, dave, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(own) != 1 || own[0].ID != mine.ID {
		t.Errorf("Applicants should only see their own applications, got %d", len(own))
	}

	all, _ := fx.svc.List(ctx, alice, "all")
	if len(all) != 2 {
		t.Errorf("Reviewers should see every application, got %d", len(all))
	}

	pending, _ := fx.svc.List(ctx, bob, string(models.StatusComplianceReview))
	if len(pending) != 1 || pending[0].ID != mine.ID {
		t.Errorf("Status filter not applied, got %d", len(pending))
	}

	empty, err := fx.svc.List(ctx, erin, string(models.StatusApproved))
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("Expected an empty non-nil list, got %v %v", empty, err)
	}

	_, err = fx.svc.List(ctx, alice, "pending")
	expectKind(t, err, apperr.KindBadRequest)
}

func TestGetRights(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()
	app := fx.submit(t, dave, "income.pdf")

	v, err := fx.svc.Get(ctx, dave, app.ID)
	if err != nil {
		t.Fatalf("Owner Get failed: %v", err)
	}
	if v.CanDownload || v.CanReview || v.DownloadURL != "" {
		t.Errorf("Owner should not download or review before approval: %+v", v)
	}

	v, err = fx.svc.Get(ctx, alice, app.ID)
	if err != nil {
		t.Fatalf("Reviewer Get failed: %v", err)
	}
	if !v.CanDownload || !v.CanReview {
		t.Errorf("Junior reviewer should download and review: %+v", v)
	}

	v, _ = fx.svc.Get(ctx, bob, app.ID)
	if v.CanReview {
		t.Error("Compliance officer cannot review at the junior stage")
	}

	_, err = fx.svc.Get(ctx, erin, app.ID)
	expectKind(t, err, apperr.KindForbidden)

	_, err = fx.svc.Get(ctx, alice, "missing")
	expectKind(t, err, apperr.KindNotFound)
}

func TestOpenDownload(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()
	app := fx.submit(t, dave, "income.pdf")

	_, err := fx.svc.OpenDownload(ctx, dave, app.ID)
	expectKind(t, err, apperr.KindForbidden)

	d, err := fx.svc.OpenDownload(ctx, alice, app.ID)
	if err != nil {
		t.Fatalf("Reviewer download failed: %v", err)
	}
	if d.FileName != "income.pdf" || d.ContentType != "application/pdf" || !strings.HasPrefix(string(d.Data), "%PDF") {
		t.Errorf("Unexpected download %+v", d.FileName)
	}

	fx.svc.SubmitReview(ctx, alice, app.ID, "approved", "")
	fx.svc.SubmitReview(ctx, bob, app.ID, "approved", "")
	sealed := fx.stored(t, app.ID)
	if err := fx.blobs.Put(ctx, sealed.SignedKey, []byte("%PDF-1.4 sealed"), "application/pdf"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	d, err = fx.svc.OpenDownload(ctx, dave, app.ID)
	if err != nil {
		t.Fatalf("Owner download after approval failed: %v", err)
	}
	if d.FileName != "income_VERIFIED.pdf" || string(d.Data) != "%PDF-1.4 sealed" {
		t.Errorf("Owner should receive the sealed copy, got %s %q", d.FileName, d.Data)
	}

	_, err = fx.svc.OpenDownload(ctx, erin, app.ID)
	expectKind(t, err, apperr.KindForbidden)
}

func TestResubmit(t *testing.T) {
	ctx := context.Background()
	key := func(owner string) string { return storage.DocumentKey(owner, "fixed.pdf", time.Now()) }
	doc := func(owner string) DocumentInput {
		return DocumentInput{S3Key: key(owner), FileName: "fixed.pdf", FileSize: 99}
	}

	fx := newFixture(t, Options{})
	app := fx.submit(t, dave, "income.pdf")
	fx.svc.SubmitReview(ctx, alice, app.ID, "rejected", "blurry scan")
	_, err := fx.svc.Resubmit(ctx, dave, app.ID, doc(dave.ID))
	expectKind(t, err, apperr.KindForbidden)

	fx = newFixture(t, Options{AllowResubmission: true})
	app = fx.submit(t, dave, "income.pdf")

	_, err = fx.svc.Resubmit(ctx, dave, app.ID, doc(dave.ID))
	expectKind(t, err, apperr.KindBadRequest)

	fx.svc.SubmitReview(ctx, alice, app.ID, "rejected", "blurry scan")

	_, err = fx.svc.Resubmit(ctx, erin, app.ID, doc(erin.ID))
	expectKind(t, err, apperr.KindForbidden)

	_, err = fx.svc.Resubmit(ctx, dave, app.ID, doc(erin.ID))
	expectKind(t, err, apperr.KindBadRequest)

	climb := DocumentInput{S3Key: "documents/" + dave.ID + "/../" + erin.ID + "/1-fixed.pdf", FileName: "fixed.pdf", FileSize: 99}
	_, err = fx.svc.Resubmit(ctx, dave, app.ID, climb)
	expectKind(t, err, apperr.KindBadRequest)

	got, err := fx.svc.Resubmit(ctx, dave, app.ID, doc(dave.ID))
	if err != nil {
		t.Fatalf("Resubmit failed: %v", err)
	}
	if got.Status != models.StatusSubmitted || got.CurrentStep != models.StepJunior || got.Document.FileName != "fixed.pdf" {
		t.Errorf("Unexpected resubmitted application %+v", got)
	}
	if len(got.Reviews) != 1 {
		t.Errorf("Review history should be kept, got %d", len(got.Reviews))
	}

	_, err = fx.svc.SubmitReview(ctx, alice, app.ID, "approved", "")
	expectKind(t, err, apperr.KindDuplicateReview)
	if _, err := fx.svc.SubmitReview(ctx, carol, app.ID, "approved", ""); err != nil {
		t.Fatalf("A different junior reviewer should take the resubmission: %v", err)
	}
}

func TestVerify(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()
	app := fx.submit(t, dave, "income.pdf")
	fx.svc.SubmitReview(ctx, alice, app.ID, "approved", "")
	res, err := fx.svc.SubmitReview(ctx, bob, app.ID, "approved", "")
	if err != nil || res.VerificationCode == "" {
		t.Fatalf("Sealing approval failed: %v", err)
	}

	v, err := fx.svc.Verify(ctx, strings.ToLower(res.VerificationCode))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if v.ApplicantName != "Dave Applicant" || v.JuniorReviewerName != "Alice" || v.ComplianceOfficerName != "Bob" {
		t.Errorf("Unexpected verification %+v", v)
	}
	if v.ApprovedAt.IsZero() || v.Digest == "" {
		t.Errorf("Expected approval time and digest, got %+v", v)
	}

	for _, code := range []string{"", "nonsense", "CRX-ABCD-1-ZZZZZZZZ"} {
		_, err := fx.svc.Verify(ctx, code)
		expectKind(t, err, apperr.KindNotFound)
	}
}
