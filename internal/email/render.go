package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	TemplateSingleForward = "single_forward.html"
	TemplateBatchSummary  = "batch_summary.html"
	TemplateCandidate     = "candidate_documents.html"
)

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("template parse error: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the named template with data.
func (r *Renderer) Render(name string, data any) (string, error) {
	var body bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&body, name, data); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return body.String(), nil
}
