package domain

import "time"

// User es el registro de identidad. FirstName, LastName y Address viajan en
// claro solo en memoria; el repositorio los cifra antes de persistir.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"firstname"`
	LastName         string     `json:"lastname"`
	Address          string     `json:"address"`
	PasswordHash     string     `json:"-"`
	EmailVerified    bool       `json:"emailVerified"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Profile es la unica proyeccion de usuario que se serializa hacia afuera.
type Profile struct {
	ID               string     `json:"id"`
	FirstName        string     `json:"firstname"`
	LastName         string     `json:"lastname"`
	Email            string     `json:"email"`
	LastLoginAt      *time.Time `json:"lastLoginAt"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	Address          string     `json:"address"`
	EmailVerified    bool       `json:"emailVerified"`
}

// Profile construye la proyeccion publica del usuario.
func (u User) Profile() Profile {
	return Profile{
		ID:               u.ID,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Email:            u.Email,
		LastLoginAt:      u.LastLoginAt,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
		Address:          u.Address,
		EmailVerified:    u.EmailVerified,
	}
}

// Identity devuelve el claim minimo que se guarda en sesion.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email}
}
