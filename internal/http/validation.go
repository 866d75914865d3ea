package http

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// registerValidators agrega la regla "password" al validador de gin y hace
// que los errores usen el nombre JSON del campo.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return passwordProblem(fl.Field().String()) == ""
		})
	})
}

// passwordProblem devuelve el primer requisito que no cumple la contraseña.
func passwordProblem(pw string) string {
	var hasLetter, hasDigit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r) && r < unicode.MaxASCII:
			hasLetter = true
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			hasDigit = true
		}
	}
	switch {
	case len(pw) < 8:
		return "Password must be at least 8 characters"
	case !hasLetter:
		return "Password must contain at least one letter"
	case !hasDigit:
		return "Password must contain at least one number"
	}
	return ""
}

// bindJSON decodifica y valida el body. Devuelve el mensaje listo para el
// cliente cuando falla.
func bindJSON(c *gin.Context, dst any) (string, bool) {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return "", true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Validation error: Invalid request body", false
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return "Validation error: " + strings.Join(msgs, ", "), false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "firstname":
		return "First name is required"
	case "email":
		return "Invalid email address"
	case "password":
		if fe.Tag() == "required" {
			return "Password must be at least 8 characters"
		}
		if value, ok := fe.Value().(string); ok {
			if msg := passwordProblem(value); msg != "" {
				return msg
			}
		}
		return "Invalid password"
	case "otp":
		if fe.Tag() == "numeric" {
			return "OTP must contain only digits"
		}
		return "OTP must be 6 digits"
	}
	return fe.Field() + " is invalid"
}
