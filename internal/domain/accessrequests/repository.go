package accessrequests

import (
	"context"
	"errors"
)

// Errores de contrato del repo, compartidos por los adapters pg y memory.
var (
	ErrRepoNotFound = errors.New("access request not found")

	// ErrRepoDuplicateActive: ya existe una fila pending/approved para el par.
	// En Postgres lo garantiza un índice único parcial, no un check-then-insert.
	ErrRepoDuplicateActive = errors.New("active request already exists for pair")

	// ErrRepoStale: el CAS de UpdateFrom no encontró la fila con el estado
	// esperado (otro caller ganó la transición).
	ErrRepoStale = errors.New("request status changed concurrently")
)

type Repository interface {
	Create(ctx context.Context, r AccessRequest) error

	// Update pisa la fila completa (write-through de lazy expiry).
	Update(ctx context.Context, r AccessRequest) error

	// UpdateFrom aplica la fila solo si el estado almacenado sigue siendo
	// expected. Dos responds concurrentes: uno gana, el otro ErrRepoStale.
	UpdateFrom(ctx context.Context, r AccessRequest, expected Status) error

	GetByID(ctx context.Context, id string) (AccessRequest, error)

	// FindActiveByPair busca la fila con estado almacenado pending/approved
	// para (requester, patient). El estado efectivo lo computa el service.
	FindActiveByPair(ctx context.Context, requesterID, patientID string) (AccessRequest, error)

	ListByRequester(ctx context.Context, requesterID string) ([]AccessRequest, error)
	ListByPatient(ctx context.Context, patientID string) ([]AccessRequest, error)
}
