// Package export renders documents as HTML, Markdown, or PDF.
package export

import (
	"errors"
	"time"
)

// Format is an export output format.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
)

// Request contains parameters for an export operation.
type Request struct {
	Title        string
	Content      string
	Author       string
	LastModified time.Time
	Format       Format
}

// Result contains the rendered export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrUnsupportedFormat indicates the requested format is not known.
	ErrUnsupportedFormat = errors.New("export format unsupported")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)

// ValidFormat reports whether f names a supported export format.
func ValidFormat(f Format) bool {
	switch f {
	case FormatHTML, FormatMarkdown, FormatPDF:
		return true
	}
	return false
}
