package accessrequests

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"ehr-access/internal/domain/identity"
	"ehr-access/internal/ports/directory"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidRole     = errors.New("requester role cannot request access")
	ErrMessageTooLong  = errors.New("message exceeds 500 characters")
	ErrPatientNotFound = errors.New("patient not found")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrDuplicateActive = errors.New("an active request already exists for this patient")
	ErrNotPending      = errors.New("request is not pending")
	ErrNotApproved     = errors.New("request is not approved")
	ErrExpired         = errors.New("request expired")
	ErrInvalidTiming   = errors.New("invalid revoke timing")
)

type Service struct {
	repo Repository
	dir  directory.Directory
	now  func() time.Time
}

func NewService(repo Repository, dir directory.Directory) *Service {
	return &Service{
		repo: repo,
		dir:  dir,
		now:  time.Now,
	}
}

type CreateInput struct {
	RequesterID   string
	RequesterRole identity.Role
	PatientID     string
	PatientEmail  string
	PatientPhone  string
	Message       string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (AccessRequest, error) {
	requesterID := strings.TrimSpace(in.RequesterID)
	if requesterID == "" {
		return AccessRequest{}, ErrInvalidInput
	}
	if !in.RequesterRole.IsProvider() {
		return AccessRequest{}, ErrInvalidRole
	}
	message := strings.TrimSpace(in.Message)
	if len(message) > MaxMessageLen {
		return AccessRequest{}, ErrMessageTooLong
	}

	patientID, err := s.resolvePatient(ctx, in)
	if err != nil {
		return AccessRequest{}, err
	}
	if patientID == requesterID {
		return AccessRequest{}, ErrInvalidInput
	}

	now := s.now()

	// Chequeo temprano con lazy expiry: una fila pending ya vencida (o
	// approved con revocación ya efectiva) no bloquea; le hacemos
	// write-through y seguimos. El índice único parcial del store es el
	// backstop contra el race de dos creates concurrentes.
	if existing, err := s.repo.FindActiveByPair(ctx, requesterID, patientID); err == nil {
		if existing.Active(now) {
			return AccessRequest{}, ErrDuplicateActive
		}
		s.writeThrough(ctx, existing, now)
	}

	r := AccessRequest{
		ID:            uuid.NewString(),
		RequesterID:   requesterID,
		RequesterRole: in.RequesterRole,
		PatientID:     patientID,
		Message:       message,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(PendingTTL),
	}

	if err := s.repo.Create(ctx, r); err != nil {
		if errors.Is(err, ErrRepoDuplicateActive) {
			return AccessRequest{}, ErrDuplicateActive
		}
		return AccessRequest{}, err
	}
	return r, nil
}

// Respond: approve o deny, solo el paciente dueño y solo mientras pending.
// Una pending vencida no es aprobable: ErrExpired, distinto de ErrNotPending
// para que el cliente pueda mostrar "expiró" y no "ya respondida".
func (s *Service) Respond(ctx context.Context, requestID, patientID string, action Action) (AccessRequest, error) {
	if action != ActionApprove && action != ActionDeny {
		return AccessRequest{}, ErrInvalidInput
	}

	r, err := s.getOwnedByPatient(ctx, requestID, patientID)
	if err != nil {
		return AccessRequest{}, err
	}

	now := s.now()
	switch EffectiveStatus(r, now) {
	case StatusPending:
		// sigue viva, respondemos
	case StatusExpired:
		s.writeThrough(ctx, r, now)
		return AccessRequest{}, ErrExpired
	default:
		return AccessRequest{}, ErrNotPending
	}

	r.Status = StatusDenied
	if action == ActionApprove {
		r.Status = StatusApproved
	}
	r.RespondedAt = &now
	r.UpdatedAt = now

	if err := s.repo.UpdateFrom(ctx, r, StatusPending); err != nil {
		if errors.Is(err, ErrRepoStale) {
			return AccessRequest{}, ErrNotPending
		}
		return AccessRequest{}, err
	}
	return r, nil
}

// Cancel: solo el requester y solo mientras pending.
func (s *Service) Cancel(ctx context.Context, requestID, requesterID string) error {
	requestID = strings.TrimSpace(requestID)
	requesterID = strings.TrimSpace(requesterID)
	if requestID == "" || requesterID == "" {
		return ErrInvalidInput
	}

	r, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return ErrNotFound
	}
	if r.RequesterID != requesterID {
		return ErrForbidden
	}

	now := s.now()
	if EffectiveStatus(r, now) != StatusPending {
		s.writeThrough(ctx, r, now)
		return ErrNotPending
	}

	r.Status = StatusCancelled
	r.UpdatedAt = now

	if err := s.repo.UpdateFrom(ctx, r, StatusPending); err != nil {
		if errors.Is(err, ErrRepoStale) {
			return ErrNotPending
		}
		return err
	}
	return nil
}

// Revoke corta acceso aprobado. immediate flipea el estado ya; 4h/8h deja
// la fila approved y graba revocationEffectiveAt — el evaluador honra esa
// marca aunque nadie vuelva a escribir la fila.
func (s *Service) Revoke(ctx context.Context, requestID, patientID string, timing RevokeTiming) (AccessRequest, error) {
	offset, ok := timing.Offset()
	if !ok {
		return AccessRequest{}, ErrInvalidTiming
	}

	r, err := s.getOwnedByPatient(ctx, requestID, patientID)
	if err != nil {
		return AccessRequest{}, err
	}

	now := s.now()
	if EffectiveStatus(r, now) != StatusApproved {
		s.writeThrough(ctx, r, now)
		return AccessRequest{}, ErrNotApproved
	}

	if timing == TimingImmediate {
		r.Status = StatusRevoked
		r.RevokedAt = &now
		r.RevocationEffectiveAt = &now
	} else {
		effective := now.Add(offset)
		r.RevocationEffectiveAt = &effective
	}
	r.UpdatedAt = now

	if err := s.repo.UpdateFrom(ctx, r, StatusApproved); err != nil {
		if errors.Is(err, ErrRepoStale) {
			return AccessRequest{}, ErrNotApproved
		}
		return AccessRequest{}, err
	}
	return r, nil
}

// ListSent: solicitudes enviadas por un proveedor, filtrables por estado
// efectivo (CSV). Aplica lazy expiry antes de devolver.
func (s *Service) ListSent(ctx context.Context, requesterID string, statuses map[Status]struct{}) ([]AccessRequest, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return nil, ErrInvalidInput
	}
	items, err := s.repo.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, items, statuses), nil
}

// ListReceivedPending: solicitudes pendientes contra un paciente.
func (s *Service) ListReceivedPending(ctx context.Context, patientID string) ([]AccessRequest, error) {
	return s.listForPatient(ctx, patientID, map[Status]struct{}{StatusPending: {}})
}

// ListGranted: a quiénes el paciente tiene acceso otorgado (approved efectivo).
func (s *Service) ListGranted(ctx context.Context, patientID string) ([]AccessRequest, error) {
	return s.listForPatient(ctx, patientID, map[Status]struct{}{StatusApproved: {}})
}

func (s *Service) ListReceived(ctx context.Context, patientID string, statuses map[Status]struct{}) ([]AccessRequest, error) {
	return s.listForPatient(ctx, patientID, statuses)
}

func (s *Service) listForPatient(ctx context.Context, patientID string, statuses map[Status]struct{}) ([]AccessRequest, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, items, statuses), nil
}

// settle aplica EffectiveStatus a cada fila, persiste write-through
// best-effort de las que cambiaron, filtra y ordena por creación desc.
func (s *Service) settle(ctx context.Context, items []AccessRequest, statuses map[Status]struct{}) []AccessRequest {
	now := s.now()
	out := make([]AccessRequest, 0, len(items))
	for _, r := range items {
		r = s.writeThrough(ctx, r, now)
		if len(statuses) > 0 {
			if _, ok := statuses[r.Status]; !ok {
				continue
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// writeThrough persiste la transición perezosa si el estado efectivo se
// despegó del almacenado. Best-effort: si el update pierde un race, la
// próxima lectura lo vuelve a intentar.
func (s *Service) writeThrough(ctx context.Context, r AccessRequest, now time.Time) AccessRequest {
	eff := EffectiveStatus(r, now)
	if eff == r.Status {
		return r
	}

	from := r.Status
	r.Status = eff
	r.UpdatedAt = now
	if eff == StatusRevoked && r.RevokedAt == nil {
		r.RevokedAt = r.RevocationEffectiveAt
	}
	_ = s.repo.UpdateFrom(ctx, r, from)
	return r
}

func (s *Service) getOwnedByPatient(ctx context.Context, requestID, patientID string) (AccessRequest, error) {
	requestID = strings.TrimSpace(requestID)
	patientID = strings.TrimSpace(patientID)
	if requestID == "" || patientID == "" {
		return AccessRequest{}, ErrInvalidInput
	}

	r, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return AccessRequest{}, ErrNotFound
	}
	if r.PatientID != patientID {
		return AccessRequest{}, ErrForbidden
	}
	return r, nil
}

func (s *Service) resolvePatient(ctx context.Context, in CreateInput) (string, error) {
	if id := strings.TrimSpace(in.PatientID); id != "" {
		return id, nil
	}

	email := strings.TrimSpace(in.PatientEmail)
	phone := strings.TrimSpace(in.PatientPhone)
	if email == "" && phone == "" {
		return "", ErrInvalidInput
	}

	u, err := s.dir.FindPatient(ctx, email, phone)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return "", ErrPatientNotFound
		}
		return "", err
	}
	if !u.Role.IsPatient() {
		return "", ErrPatientNotFound
	}
	return u.ID, nil
}

// ParseStatusFilter: "approved,denied" => set de estados. Vacío => sin filtro.
func ParseStatusFilter(raw string) map[Status]struct{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := map[Status]struct{}{}
	for _, p := range strings.Split(raw, ",") {
		st := Status(strings.TrimSpace(p))
		if st == "" {
			continue
		}
		out[st] = struct{}{}
	}
	return out
}
