// Package extract converts uploaded files into plain text for ingestion.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const (
	ContentTypePlain    = "text/plain"
	ContentTypeMarkdown = "text/markdown"
	ContentTypePDF      = "application/pdf"
)

var (
	// ErrUnsupportedType is returned for content types that cannot be converted to text.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrPDFUnavailable is returned when PDF extraction is not licensed or could not be initialized.
	ErrPDFUnavailable = errors.New("pdf support not available")
	// ErrMalformedFile is returned when the content does not match its declared type.
	ErrMalformedFile = errors.New("malformed file")
)

// Extractor converts plain text, markdown and PDF content into text.
type Extractor struct {
	markdown goldmark.Markdown
	pdfErr   error
}

// New creates an Extractor. PDF extraction is enabled only when pdfLicenseKey is
// accepted by the PDF library; otherwise PDF content fails with ErrPDFUnavailable.
func New(pdfLicenseKey string) *Extractor {
	e := &Extractor{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
		pdfErr: ErrPDFUnavailable,
	}

	if pdfLicenseKey != "" {
		if err := license.SetMeteredKey(pdfLicenseKey); err != nil {
			e.pdfErr = fmt.Errorf("%w: %v", ErrPDFUnavailable, err)
		} else {
			e.pdfErr = nil
		}
	}

	return e
}

// PDFEnabled reports whether PDF content can be extracted.
func (e *Extractor) PDFEnabled() bool {
	return e.pdfErr == nil
}

// NormalizeContentType lowercases a media type and drops parameters such as charset.
// Returns an empty string when contentType cannot be parsed.
func NormalizeContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter) {
		return ""
	}
	return strings.ToLower(mediaType)
}

// Supported reports whether contentType names a type Extract can convert.
func Supported(contentType string) bool {
	switch NormalizeContentType(contentType) {
	case ContentTypePlain, ContentTypeMarkdown, ContentTypePDF:
		return true
	default:
		return false
	}
}

// Extract returns the text content of data interpreted as contentType.
func (e *Extractor) Extract(contentType string, data []byte) (string, error) {
	switch NormalizeContentType(contentType) {
	case ContentTypePlain:
		return decodeUTF8(data)
	case ContentTypeMarkdown:
		if _, err := decodeUTF8(data); err != nil {
			return "", err
		}
		return e.extractMarkdown(data), nil
	case ContentTypePDF:
		if e.pdfErr != nil {
			return "", e.pdfErr
		}
		return extractPDF(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
}

func decodeUTF8(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text is not valid UTF-8", ErrMalformedFile)
	}
	return string(data), nil
}

// extractPDF joins the text of every page with newlines.
func extractPDF(data []byte) (string, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse pdf: %v", ErrMalformedFile, err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("%w: failed to count pdf pages: %v", ErrMalformedFile, err)
	}

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return "", fmt.Errorf("%w: failed to read page %d: %v", ErrMalformedFile, i, err)
		}

		ex, err := extractor.New(page)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrPDFUnavailable, err)
		}

		text, err := ex.ExtractText()
		if err != nil {
			return "", fmt.Errorf("%w: failed to extract text from page %d: %v", ErrMalformedFile, i, err)
		}
		pages = append(pages, text)
	}

	return strings.Join(pages, "\n"), nil
}
