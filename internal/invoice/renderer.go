// Package invoice renders bill documents from billing.Invoice payloads.
package invoice

import (
	"embed"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"

	"github.com/rpggio/cbsbilling/internal/domain/billing"
)

const defaultTemplate = "templates/cbs_server_bill.tex.tmpl"

//go:embed templates/*.tmpl
var templates embed.FS

// Renderer executes a bill template. Templates use {| |} delimiters so they
// do not collide with LaTeX braces, and have the sprig functions plus tex.
type Renderer struct {
	tmpl *template.Template
}

var _ billing.Renderer = (*Renderer)(nil)

// New parses a bill template.
func New(name, text string) (*Renderer, error) {
	tmpl, err := template.New(name).
		Delims("{|", "|}").
		Funcs(sprig.TxtFuncMap()).
		Funcs(template.FuncMap{"tex": EscapeTeX}).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse bill template %s: %w", name, err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Default returns a renderer for the built-in LaTeX bill.
func Default() (*Renderer, error) {
	text, err := templates.ReadFile(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("read built-in template: %w", err)
	}
	return New("cbs_server_bill", string(text))
}

// FromFile returns a renderer for the template at path, or the built-in
// template when path is empty.
func FromFile(path string) (*Renderer, error) {
	if path == "" {
		return Default()
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bill template: %w", err)
	}
	return New(path, string(text))
}

func (r *Renderer) Render(w io.Writer, inv billing.Invoice) error {
	if err := r.tmpl.Execute(w, inv); err != nil {
		return fmt.Errorf("execute bill template: %w", err)
	}
	return nil
}

var texEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

// EscapeTeX escapes the characters LaTeX treats specially.
func EscapeTeX(s string) string {
	return texEscaper.Replace(s)
}
