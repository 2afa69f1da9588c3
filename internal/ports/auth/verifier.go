package auth

import "context"

// Verifier verifica un bearer token y devuelve claims o error.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}
