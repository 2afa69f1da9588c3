package records

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("records: record not found")

// Record es la vista read-only de un registro médico del record store externo.
// La persistencia de registros no vive en este servicio.
type Record struct {
	ID          string
	PatientID   string
	CreatedBy   string
	Title       string
	Description string
	RecordType  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store expone las lecturas que necesitan la redención de links y el evaluador.
type Store interface {
	GetRecord(ctx context.Context, id string) (Record, error)
	ListByPatient(ctx context.Context, patientID string) ([]Record, error)
}
