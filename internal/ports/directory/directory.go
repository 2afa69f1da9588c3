package directory

import (
	"context"
	"errors"

	"ehr-access/internal/domain/identity"
)

var ErrNotFound = errors.New("directory: user not found")

// UserSummary es lo mínimo que este core necesita saber de un usuario.
// El directorio de usuarios es un sistema externo; acá solo leemos.
type UserSummary struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Role      identity.Role
}

// Directory resuelve identidades contra el user store externo.
type Directory interface {
	// FindPatient busca un paciente por email o teléfono (al menos uno requerido).
	FindPatient(ctx context.Context, email, phone string) (UserSummary, error)
	GetUser(ctx context.Context, id string) (UserSummary, error)
}
