package sealing

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"
	realgofpdi "github.com/phpdave11/gofpdi"
	"github.com/skip2/go-qrcode"
)

// Stamp box geometry in points, anchored at the bottom right of a page
const (
	stampWidth  = 220.0
	stampHeight = 90.0
	stampMargin = 20.0
	qrSize      = 46.0
)

// A4 in points, used when a page reports no MediaBox
const (
	a4Width  = 595.28
	a4Height = 841.89
)

// StampInfo is what the stamp shows
type StampInfo struct {
	JuniorReviewerName    string
	ComplianceOfficerName string
	ApprovedAt            time.Time
	VerificationCode      string
	VerifyURL             string // encoded as a QR code when set
}

// StampPDF returns src with the verification stamp drawn on every page.
// A source gofpdi cannot parse is an error, never a panic.
func StampPDF(src []byte, info StampInfo) (out []byte, err error) {
	if !bytes.HasPrefix(src, []byte("%PDF")) {
		return nil, errors.New("source is not a PDF")
	}

	tmp, err := os.CreateTemp("", "seal-src-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(src); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("import source PDF: %v", r)
		}
	}()

	sizes, err := pageSizes(tmp.Name())
	if err != nil {
		return nil, err
	}

	var qrPng []byte
	if info.VerifyURL != "" {
		qrPng, err = qrcode.Encode(info.VerifyURL, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("encode QR: %w", err)
		}
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if qrPng != nil {
		pdf.RegisterImageOptionsReader("verify_qr", gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qrPng))
	}

	// one importer per stamp, the package-level one is shared process-wide
	imp := gofpdi.NewImporter()
	for i, size := range sizes {
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: size.Wd, Ht: size.Ht})
		tpl := imp.ImportPage(pdf, tmp.Name(), i+1, "/MediaBox")
		imp.UseImportedTemplate(pdf, tpl, 0, 0, size.Wd, size.Ht)
		drawStamp(pdf, size, info, qrPng != nil)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render stamp: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write stamped PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// pageSizes reads the MediaBox of every page
func pageSizes(path string) ([]gofpdf.SizeType, error) {
	imp := realgofpdi.NewImporter()
	imp.SetSourceFile(path)
	n := imp.GetNumPages()
	if n < 1 {
		return nil, errors.New("source PDF has no pages")
	}

	boxes := imp.GetPageSizes()
	sizes := make([]gofpdf.SizeType, n)
	for i := range sizes {
		sizes[i] = gofpdf.SizeType{Wd: a4Width, Ht: a4Height}
		if box, ok := boxes[i+1]["/MediaBox"]; ok && box["w"] > 0 && box["h"] > 0 {
			sizes[i] = gofpdf.SizeType{Wd: box["w"], Ht: box["h"]}
		}
	}
	return sizes, nil
}

func drawStamp(pdf *gofpdf.Fpdf, page gofpdf.SizeType, info StampInfo, withQR bool) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	x := page.Wd - stampWidth - stampMargin
	y := page.Ht - stampHeight - stampMargin

	// Box
	pdf.SetFillColor(230, 242, 230)
	pdf.SetDrawColor(26, 128, 51)
	pdf.SetLineWidth(3)
	pdf.Rect(x, y, stampWidth, stampHeight, "FD")

	// Header
	pdf.SetTextColor(26, 128, 51)
	pdf.SetFont("Arial", "B", 16)
	pdf.Text(x+15, y+22, "VERIFIED")
	pdf.SetLineWidth(1.5)
	pdf.Line(x+10, y+28, x+stampWidth-10, y+28)

	// Details
	textWidth := stampWidth - 20
	if withQR {
		textWidth -= qrSize + 6
	}
	pdf.SetTextColor(51, 51, 51)
	pdf.SetFont("Arial", "", 8)
	pdf.Text(x+10, y+45, fit(pdf, tr("Jr. Reviewer: "+info.JuniorReviewerName), textWidth))
	pdf.Text(x+10, y+57, fit(pdf, tr("CO: "+info.ComplianceOfficerName), textWidth))
	pdf.Text(x+10, y+69, "Date: "+info.ApprovedAt.Format("2 Jan 2006"))

	// Code
	pdf.SetTextColor(77, 77, 77)
	pdf.SetFont("Arial", "B", 7)
	pdf.Text(x+10, y+stampHeight-8, info.VerificationCode)

	if withQR {
		pdf.ImageOptions("verify_qr", x+stampWidth-qrSize-8, y+32, qrSize, qrSize, false,
			gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}
}

// fit truncates s with an ellipsis until it fits in width
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 1 && pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}
