package accesseval

import (
	"context"
	"errors"
	"strings"
	"time"

	"ehr-access/internal/domain/accessrequests"
	"ehr-access/internal/ports/records"
)

var ErrInvalidInput = errors.New("invalid input")

// Evaluator decide si una identidad puede leer registros de un paciente.
// Se llama en cada path de lectura, así que es solo-lectura: computa el
// estado efectivo en memoria y no persiste nada (el write-through de
// expiración vive en los listados del service de solicitudes).
type Evaluator struct {
	grants accessrequests.Repository
	now    func() time.Time
}

func New(grants accessrequests.Repository) *Evaluator {
	return &Evaluator{
		grants: grants,
		now:    time.Now,
	}
}

// CanAccessAllRecords: el propio paciente siempre; un tercero solo con una
// solicitud approved efectiva (la revocación diferida cuenta aunque la fila
// siga diciendo approved).
func (e *Evaluator) CanAccessAllRecords(ctx context.Context, userID, patientID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	patientID = strings.TrimSpace(patientID)
	if userID == "" || patientID == "" {
		return false, ErrInvalidInput
	}

	if userID == patientID {
		return true, nil
	}

	r, err := e.grants.FindActiveByPair(ctx, userID, patientID)
	if err != nil {
		if errors.Is(err, accessrequests.ErrRepoNotFound) {
			return false, nil
		}
		return false, err
	}

	return accessrequests.EffectiveStatus(r, e.now()) == accessrequests.StatusApproved, nil
}

// CanAccessRecord: misma regla, a nivel registro. Las listas sharedWith de
// la data legada son cache desnormalizada de esta misma decisión, no una
// fuente de verdad aparte.
func (e *Evaluator) CanAccessRecord(ctx context.Context, userID string, rec records.Record) (bool, error) {
	return e.CanAccessAllRecords(ctx, userID, rec.PatientID)
}
