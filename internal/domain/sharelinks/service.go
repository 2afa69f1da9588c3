package sharelinks

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"ehr-access/internal/domain/identity"
	"ehr-access/internal/domain/sharetoken"
	"ehr-access/internal/ports/directory"
	"ehr-access/internal/ports/records"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrForbidden       = errors.New("forbidden")
	ErrMalformed       = errors.New("malformed token")
	ErrExpired         = errors.New("share link expired")
	ErrNotFound        = errors.New("share link not found")
)

type Service struct {
	repo    Repository
	codec   *sharetoken.Codec
	records records.Store
	dir     directory.Directory
	baseURL string
	now     func() time.Time
}

// NewService: baseURL es la URL pública del frontend donde vive /shared/{token}
// (el QR lo renderiza el cliente con esa URL).
func NewService(repo Repository, codec *sharetoken.Codec, rec records.Store, dir directory.Directory, baseURL string) *Service {
	return &Service{
		repo:    repo,
		codec:   codec,
		records: rec,
		dir:     dir,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		now:     time.Now,
	}
}

// IssuedLink es lo que ve el cliente al emitir: token + URL armada + expiry.
type IssuedLink struct {
	ShareLink
	Token    string
	ShareURL string
}

// IssueAll emite un link a todos los registros del emisor. Solo pacientes,
// y solo sobre sí mismos: el scope es el propio ownerID, no viene del body.
func (s *Service) IssueAll(ctx context.Context, ownerID string, ownerRole identity.Role, d Duration) (IssuedLink, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return IssuedLink{}, ErrInvalidInput
	}
	if !ownerRole.IsPatient() {
		return IssuedLink{}, ErrForbidden
	}
	return s.issue(ctx, ownerID, sharetoken.ScopeAllRecords, ownerID, d)
}

// IssueRecord emite un link a un registro puntual. El registro tiene que
// pertenecer al emisor; eso se valida contra el record store externo.
func (s *Service) IssueRecord(ctx context.Context, ownerID, recordID string, d Duration) (IssuedLink, error) {
	ownerID = strings.TrimSpace(ownerID)
	recordID = strings.TrimSpace(recordID)
	if ownerID == "" || recordID == "" {
		return IssuedLink{}, ErrInvalidInput
	}

	rec, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return IssuedLink{}, ErrNotFound
		}
		return IssuedLink{}, err
	}
	if rec.PatientID != ownerID {
		return IssuedLink{}, ErrForbidden
	}
	return s.issue(ctx, ownerID, sharetoken.ScopeRecord, recordID, d)
}

func (s *Service) issue(ctx context.Context, ownerID string, scope sharetoken.ScopeType, scopeID string, d Duration) (IssuedLink, error) {
	window, ok := d.Window()
	if !ok {
		return IssuedLink{}, ErrInvalidDuration
	}

	token, claims, err := s.codec.Encode(scope, scopeID, window)
	if err != nil {
		return IssuedLink{}, err
	}

	l := ShareLink{
		ID:        claims.ID,
		ScopeType: scope,
		ScopeID:   scopeID,
		IssuedBy:  ownerID,
		IssuedAt:  s.now(),
		ExpiresAt: claims.ExpiresAt,
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return IssuedLink{}, err
	}

	return IssuedLink{
		ShareLink: l,
		Token:     token,
		ShareURL:  s.baseURL + "/shared/" + token,
	}, nil
}

// RedemptionResult es el snapshot read-only que devuelve un escaneo.
type RedemptionResult struct {
	Patient     directory.UserSummary
	Records     []records.Record
	AccessCount int64
	ExpiresAt   time.Time
}

// Redeem valida el token y devuelve el snapshot. No es idempotente a
// propósito: cada escaneo exitoso suma exactamente 1 al contador.
// redeemerID puede ir vacío (acceso público); si viene, queda en el log.
func (s *Service) Redeem(ctx context.Context, token, redeemerID string) (RedemptionResult, error) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return RedemptionResult{}, ErrMalformed
	}

	now := s.now()
	if now.After(claims.ExpiresAt) {
		return RedemptionResult{}, ErrExpired
	}

	// La fila tiene que existir: un token con firma válida pero sin fila
	// es anómalo (emisión que nunca se persistió) y se trata como not found.
	if _, err := s.repo.GetByID(ctx, claims.ID); err != nil {
		return RedemptionResult{}, ErrNotFound
	}

	count, err := s.repo.IncrementAccess(ctx, claims.ID, Redemption{
		LinkID:     claims.ID,
		RedeemedBy: strings.TrimSpace(redeemerID),
		RedeemedAt: now,
	})
	if err != nil {
		return RedemptionResult{}, err
	}

	out := RedemptionResult{AccessCount: count, ExpiresAt: claims.ExpiresAt}

	switch claims.ScopeType {
	case sharetoken.ScopeAllRecords:
		out.Patient, err = s.dir.GetUser(ctx, claims.ScopeID)
		if err != nil {
			return RedemptionResult{}, err
		}
		out.Records, err = s.records.ListByPatient(ctx, claims.ScopeID)
		if err != nil {
			return RedemptionResult{}, err
		}
	case sharetoken.ScopeRecord:
		rec, err := s.records.GetRecord(ctx, claims.ScopeID)
		if err != nil {
			return RedemptionResult{}, err
		}
		out.Records = []records.Record{rec}
		out.Patient, err = s.dir.GetUser(ctx, rec.PatientID)
		if err != nil {
			return RedemptionResult{}, err
		}
	}

	return out, nil
}

// ListMine: links emitidos por el paciente, más reciente primero.
func (s *Service) ListMine(ctx context.Context, ownerID string) ([]ShareLink, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrInvalidInput
	}
	items, err := s.repo.ListByIssuer(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].IssuedAt.After(items[j].IssuedAt) })
	return items, nil
}

// ListAccessed: links que este usuario redimió estando autenticado.
func (s *Service) ListAccessed(ctx context.Context, userID string) ([]ShareLink, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListRedeemedBy(ctx, userID)
}
