// Package sealing produces the stamped, verifiable copy of an approved
// document. Sealing is best-effort: TrySeal turns every failure, panics
// included, into an Outcome the approval path can log and move past.
package sealing

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/xelth-com/sealflow/internal/models"
	"github.com/xelth-com/sealflow/internal/storage"
)

// ErrNotSealable is returned for documents that are not PDFs
var ErrNotSealable = errors.New("sealing: document format cannot be sealed")

// Reviewers are the names printed on the stamp
type Reviewers struct {
	JuniorReviewerName    string
	ComplianceOfficerName string
}

// Sealer seals the original document of an application
type Sealer interface {
	Seal(ctx context.Context, app *models.Application, r Reviewers) (models.SealedDocument, error)
}

// IsSealable reports whether fileName names a format the stamp supports
func IsSealable(fileName string) bool {
	return strings.EqualFold(path.Ext(fileName), ".pdf")
}

var pdfSuffix = regexp.MustCompile(`(?i)\.pdf$`)

// SealedKey is the storage key of the sealed copy of key
func SealedKey(key string) string {
	if pdfSuffix.MatchString(key) {
		return pdfSuffix.ReplaceAllString(key, "_VERIFIED.pdf")
	}
	return key + "_VERIFIED.pdf"
}

// Digest is the blake3-256 hex digest stored alongside a sealed copy
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Service stamps documents held in a blob store
type Service struct {
	blobs         storage.BlobStore
	codePrefix    string
	verifyBaseURL string
	now           func() time.Time
}

// NewService creates a sealing service
func NewService(blobs storage.BlobStore, codePrefix, verifyBaseURL string) *Service {
	return &Service{
		blobs:         blobs,
		codePrefix:    codePrefix,
		verifyBaseURL: strings.TrimRight(verifyBaseURL, "/"),
		now:           time.Now,
	}
}

// Seal fetches the original, stamps it and stores the sealed copy. The
// application record is not touched.
func (s *Service) Seal(ctx context.Context, app *models.Application, r Reviewers) (models.SealedDocument, error) {
	if !IsSealable(app.Document.FileName) {
		return models.SealedDocument{}, ErrNotSealable
	}

	src, err := s.blobs.Get(ctx, app.Document.Key)
	if err != nil {
		return models.SealedDocument{}, fmt.Errorf("fetch original: %w", err)
	}

	now := s.now().UTC()
	code := NewVerificationCode(s.codePrefix, app.ID, now)
	info := StampInfo{
		JuniorReviewerName:    r.JuniorReviewerName,
		ComplianceOfficerName: r.ComplianceOfficerName,
		ApprovedAt:            now,
		VerificationCode:      code,
	}
	if s.verifyBaseURL != "" {
		info.VerifyURL = s.verifyBaseURL + "/" + code
	}

	stamped, err := StampPDF(src, info)
	if err != nil {
		return models.SealedDocument{}, err
	}

	key := SealedKey(app.Document.Key)
	if err := s.blobs.Put(ctx, key, stamped, "application/pdf"); err != nil {
		return models.SealedDocument{}, fmt.Errorf("store sealed copy: %w", err)
	}

	return models.SealedDocument{
		Key:              key,
		VerificationCode: code,
		Digest:           Digest(stamped),
		SealedAt:         now,
	}, nil
}

// Outcome is the result of a best-effort seal. Exactly one of Sealed,
// Skipped and Err is set.
type Outcome struct {
	Sealed  *models.SealedDocument
	Skipped bool
	Err     error
}

// TrySeal runs s and never fails the caller. Non-PDF documents are
// skipped without calling s.
func TrySeal(ctx context.Context, s Sealer, app *models.Application, r Reviewers) (out Outcome) {
	if !IsSealable(app.Document.FileName) {
		return Outcome{Skipped: true}
	}

	defer func() {
		if p := recover(); p != nil {
			out = Outcome{Err: fmt.Errorf("sealing panicked: %v", p)}
		}
	}()

	sealed, err := s.Seal(ctx, app, r)
	if errors.Is(err, ErrNotSealable) {
		return Outcome{Skipped: true}
	}
	if err != nil {
		return Outcome{Err: err}
	}
	return Outcome{Sealed: &sealed}
}
