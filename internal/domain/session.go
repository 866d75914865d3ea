package domain

// Identity es todo lo que guarda una sesion: nunca password ni datos personales.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SessionState es el portador de sesion de un request. Entra y sale de las
// llamadas del orquestador; la capa HTTP lo traduce a cookie.
type SessionState struct {
	Handle   string
	Identity *Identity
}

// Authenticated indica si hay una identidad ligada al request.
func (s SessionState) Authenticated() bool {
	return s.Identity != nil
}
