package email

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"

	"github.com/go-playground/validator/v10"
)

// Template identifica una plantilla embebida.
type Template string

const (
	TemplateVerification Template = "verification"
	TemplateLogin2FA     Template = "login_2fa"
)

func (t Template) String() string {
	return string(t)
}

// ErrInvalidTemplateData indica un payload que no cumple el esquema de la
// plantilla. Es un error de programacion, no del usuario.
var ErrInvalidTemplateData = errors.New("invalid template data")

// OTPMailData es el esquema de las plantillas que entregan un codigo.
type OTPMailData struct {
	Email string `validate:"required,email"`
	Name  string `validate:"required"`
	OTP   string `validate:"len=6,numeric"`
}

//go:embed templates/*.html
var templateFS embed.FS

// Renderer valida y renderiza plantillas HTML.
type Renderer struct {
	tmpl     *template.Template
	validate *validator.Validate
	schemas  map[Template]func(any) bool
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	isOTP := func(data any) bool {
		_, ok := data.(OTPMailData)
		return ok
	}
	return &Renderer{
		tmpl:     tmpl,
		validate: validator.New(),
		schemas: map[Template]func(any) bool{
			TemplateVerification: isOTP,
			TemplateLogin2FA:     isOTP,
		},
	}, nil
}

// Render valida data contra el esquema de t y devuelve el HTML.
func (r *Renderer) Render(t Template, data any) (string, error) {
	matches, ok := r.schemas[t]
	if !ok {
		return "", fmt.Errorf("%w: unknown template %q", ErrInvalidTemplateData, t)
	}
	if !matches(data) {
		return "", fmt.Errorf("%w: unexpected payload %T for %q", ErrInvalidTemplateData, data, t)
	}
	if err := r.validate.Struct(data); err != nil {
		return "", fmt.Errorf("%w for %q: %v", ErrInvalidTemplateData, t, err)
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, t.String()+".html", data); err != nil {
		return "", fmt.Errorf("render %q: %w", t, err)
	}
	return buf.String(), nil
}
