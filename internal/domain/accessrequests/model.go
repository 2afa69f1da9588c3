package accessrequests

import (
	"time"

	"ehr-access/internal/domain/identity"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDenied    Status = "denied"
	StatusCancelled Status = "cancelled"
	StatusRevoked   Status = "revoked"
	StatusExpired   Status = "expired"
)

// PendingTTL: una solicitud sin respuesta vence a los 7 días.
const PendingTTL = 7 * 24 * time.Hour

const MaxMessageLen = 500

type Action string

const (
	ActionApprove Action = "approve"
	ActionDeny    Action = "deny"
)

type RevokeTiming string

const (
	TimingImmediate RevokeTiming = "immediate"
	Timing4h        RevokeTiming = "4h"
	Timing8h        RevokeTiming = "8h"
)

func (t RevokeTiming) Offset() (time.Duration, bool) {
	switch t {
	case TimingImmediate:
		return 0, true
	case Timing4h:
		return 4 * time.Hour, true
	case Timing8h:
		return 8 * time.Hour, true
	default:
		return 0, false
	}
}

// AccessRequest es el pedido de un proveedor (doctor / lab assistant) de
// acceso permanente a todos los registros de un paciente. Nunca se borra:
// las transiciones de estado quedan como historial de auditoría.
type AccessRequest struct {
	ID            string
	RequesterID   string
	RequesterRole identity.Role
	PatientID     string
	Message       string

	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time

	// ExpiresAt aplica solo mientras está pending.
	ExpiresAt   time.Time
	RespondedAt *time.Time

	// RevocationEffectiveAt se setea en revoke diferido (4h/8h).
	RevocationEffectiveAt *time.Time
	RevokedAt             *time.Time
}

// EffectiveStatus es LA función de estado. Todo path de lectura y de
// mutación pasa por acá; nadie decide expiración/revocación por su cuenta.
//   - pending vencido => expired (equivale a denied para todo efecto)
//   - approved con revocación programada ya alcanzada => revoked
func EffectiveStatus(r AccessRequest, now time.Time) Status {
	switch r.Status {
	case StatusPending:
		if now.After(r.ExpiresAt) {
			return StatusExpired
		}
	case StatusApproved:
		if r.RevocationEffectiveAt != nil && !now.Before(*r.RevocationEffectiveAt) {
			return StatusRevoked
		}
	}
	return r.Status
}

// Active: pending o approved según estado efectivo. Es lo que bloquea
// crear una segunda solicitud para el mismo par (requester, patient).
func (r AccessRequest) Active(now time.Time) bool {
	s := EffectiveStatus(r, now)
	return s == StatusPending || s == StatusApproved
}
