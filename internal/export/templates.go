package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var documentTemplate = template.Must(template.New("document").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string {
		return t.Format("Jan 2, 2006")
	},
	"paragraphs": splitParagraphs,
}).Parse(documentHTML))

// TemplateData holds data for document template rendering.
type TemplateData struct {
	Title        string
	Content      string
	Author       string
	LastModified time.Time
}

// splitParagraphs breaks plain-text content into paragraphs on blank lines.
func splitParagraphs(content string) []string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	var paragraphs []string
	for _, block := range strings.Split(normalized, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			paragraphs = append(paragraphs, block)
		}
	}
	return paragraphs
}

// RenderDocumentHTML renders the document template with provided data.
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const documentHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    p { white-space: pre-wrap; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.Author}} | {{formatDate .LastModified}}</div>
  {{range paragraphs .Content}}<p>{{.}}</p>
  {{end}}
</body>
</html>`
