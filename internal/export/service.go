package export

import (
	"fmt"
	"strings"
)

// Export renders the document described by req in the requested format.
func Export(req Request) (*Result, error) {
	switch req.Format {
	case FormatHTML:
		html, err := RenderDocumentHTML(TemplateData{
			Title:        req.Title,
			Content:      req.Content,
			Author:       req.Author,
			LastModified: req.LastModified,
		})
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(req.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatMarkdown:
		return &Result{
			Data:     []byte(renderMarkdown(req)),
			Filename: sanitizeFilename(req.Title) + ".md",
			MimeType: "text/markdown; charset=utf-8",
		}, nil
	case FormatPDF:
		html, err := RenderDocumentHTML(TemplateData{
			Title:        req.Title,
			Content:      req.Content,
			Author:       req.Author,
			LastModified: req.LastModified,
		})
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		return exportPDF(html, req.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}

// renderMarkdown produces a minimal markdown rendition of the document.
func renderMarkdown(req Request) string {
	var b strings.Builder
	b.WriteString("# " + req.Title + "\n\n")
	b.WriteString("*" + req.Author + " | " + req.LastModified.Format("Jan 2, 2006") + "*\n\n")
	b.WriteString(strings.TrimSpace(req.Content))
	b.WriteString("\n")
	return b.String()
}

// sanitizeFilename creates a safe filename from a title.
func sanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		case r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	result := b.String()
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "document"
	}
	return result
}
