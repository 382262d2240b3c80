package mail

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
	"github.com/gyber/go-custody"
)

//go:embed templates/*.html
var templatesFS embed.FS

var subjects = map[string]string{
	custody.MailTemplateVerify: "Verification Message",
	custody.MailTemplateReset:  "Reset Password",
}

// Renderer turns mail commands into subject and HTML body
type Renderer struct {
	engine  *django.Engine
	project string
}

// NewRenderer loads the embedded templates
func NewRenderer(project string) (*Renderer, error) {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, err
	}

	engine := django.NewFileSystem(http.FS(sub), ".html")
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("mail: load templates: %w", err)
	}

	if project == "" {
		project = "GYBER"
	}

	return &Renderer{engine: engine, project: project}, nil
}

// Render returns the subject and body for msg
func (r *Renderer) Render(msg custody.MailMessage) (string, string, error) {
	subject, ok := subjects[msg.Template]
	if !ok {
		return "", "", fmt.Errorf("mail: unknown template %q", msg.Template)
	}

	binding := map[string]any{
		"title":   subject,
		"project": r.project,
	}
	for k, v := range msg.Vars {
		binding[k] = v
	}

	var out bytes.Buffer
	if err := r.engine.Render(&out, msg.Template, binding); err != nil {
		return "", "", fmt.Errorf("mail: render %s: %w", msg.Template, err)
	}

	return subject, out.String(), nil
}
