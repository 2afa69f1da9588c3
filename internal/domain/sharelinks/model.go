package sharelinks

import (
	"time"

	"ehr-access/internal/domain/sharetoken"
)

type Duration string

const (
	Duration4h  Duration = "4h"
	Duration24h Duration = "24h"
	Duration7d  Duration = "7d"
)

func (d Duration) Window() (time.Duration, bool) {
	switch d {
	case Duration4h:
		return 4 * time.Hour, true
	case Duration24h:
		return 24 * time.Hour, true
	case Duration7d:
		return 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// ShareLink es la fila persistida de un link efímero. El token en sí es
// autocontenido; la fila existe para el contador de accesos y para que el
// paciente pueda listar qué links emitió.
type ShareLink struct {
	ID          string // = jti del token
	ScopeType   sharetoken.ScopeType
	ScopeID     string
	IssuedBy    string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	AccessCount int64
}

// Redemption es el registro de un escaneo exitoso. RedeemedBy queda vacío
// cuando redime alguien sin sesión (QR público).
type Redemption struct {
	LinkID     string
	RedeemedBy string
	RedeemedAt time.Time
}
