package auth

import "ehr-access/internal/domain/identity"

// Claims representa la información extraída del token.
type Claims struct {
	UserID string
	Email  string
	Role   identity.Role
}
