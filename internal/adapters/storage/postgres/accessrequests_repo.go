package postgres

import (
	"context"
	"database/sql"
	"strings"

	"ehr-access/internal/domain/accessrequests"
	"ehr-access/internal/domain/identity"
)

const accessRequestColumns = `
	id, requester_id, requester_role, patient_id, message, status,
	created_at, updated_at, expires_at,
	responded_at, revocation_effective_at, revoked_at`

type AccessRequestsRepo struct {
	db *sql.DB
}

func NewAccessRequestsRepo(db *sql.DB) *AccessRequestsRepo {
	return &AccessRequestsRepo{db: db}
}

func (r *AccessRequestsRepo) Create(ctx context.Context, req accessrequests.AccessRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_requests (
			id, requester_id, requester_role, patient_id, message, status,
			created_at, updated_at, expires_at,
			responded_at, revocation_effective_at, revoked_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		req.ID,
		req.RequesterID,
		string(req.RequesterRole),
		req.PatientID,
		req.Message,
		string(req.Status),
		req.CreatedAt,
		req.UpdatedAt,
		req.ExpiresAt,
		toNullTime(req.RespondedAt),
		toNullTime(req.RevocationEffectiveAt),
		toNullTime(req.RevokedAt),
	)
	if err != nil {
		// el índice único parcial (status pending/approved) es el backstop
		// del invariante "una solicitud activa por par"
		if isUniqueViolation(err) {
			return accessrequests.ErrRepoDuplicateActive
		}
		return err
	}
	return nil
}

func (r *AccessRequestsRepo) Update(ctx context.Context, req accessrequests.AccessRequest) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_requests
		SET status = $2, updated_at = $3,
		    responded_at = $4, revocation_effective_at = $5, revoked_at = $6
		WHERE id = $1
	`,
		req.ID,
		string(req.Status),
		req.UpdatedAt,
		toNullTime(req.RespondedAt),
		toNullTime(req.RevocationEffectiveAt),
		toNullTime(req.RevokedAt),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return accessrequests.ErrRepoNotFound
	}
	return nil
}

// UpdateFrom: CAS por (id, status). 0 filas afectadas => otro caller ganó.
func (r *AccessRequestsRepo) UpdateFrom(ctx context.Context, req accessrequests.AccessRequest, expected accessrequests.Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_requests
		SET status = $3, updated_at = $4,
		    responded_at = $5, revocation_effective_at = $6, revoked_at = $7
		WHERE id = $1 AND status = $2
	`,
		req.ID,
		string(expected),
		string(req.Status),
		req.UpdatedAt,
		toNullTime(req.RespondedAt),
		toNullTime(req.RevocationEffectiveAt),
		toNullTime(req.RevokedAt),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return accessrequests.ErrRepoStale
	}
	return nil
}

func (r *AccessRequestsRepo) GetByID(ctx context.Context, id string) (accessrequests.AccessRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return accessrequests.AccessRequest{}, accessrequests.ErrRepoNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+accessRequestColumns+`
		FROM access_requests
		WHERE id = $1
	`, id)
	return scanAccessRequest(row)
}

func (r *AccessRequestsRepo) FindActiveByPair(ctx context.Context, requesterID, patientID string) (accessrequests.AccessRequest, error) {
	requesterID = strings.TrimSpace(requesterID)
	patientID = strings.TrimSpace(patientID)
	if requesterID == "" || patientID == "" {
		return accessrequests.AccessRequest{}, accessrequests.ErrRepoNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+accessRequestColumns+`
		FROM access_requests
		WHERE requester_id = $1
		  AND patient_id = $2
		  AND status IN ('pending','approved')
		ORDER BY created_at DESC
		LIMIT 1
	`, requesterID, patientID)
	return scanAccessRequest(row)
}

func (r *AccessRequestsRepo) ListByRequester(ctx context.Context, requesterID string) ([]accessrequests.AccessRequest, error) {
	return r.list(ctx, `
		SELECT `+accessRequestColumns+`
		FROM access_requests
		WHERE requester_id = $1
		ORDER BY created_at DESC
	`, requesterID)
}

func (r *AccessRequestsRepo) ListByPatient(ctx context.Context, patientID string) ([]accessrequests.AccessRequest, error) {
	return r.list(ctx, `
		SELECT `+accessRequestColumns+`
		FROM access_requests
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
}

func (r *AccessRequestsRepo) list(ctx context.Context, query, arg string) ([]accessrequests.AccessRequest, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]accessrequests.AccessRequest, 0)
	for rows.Next() {
		req, err := scanAccessRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccessRequest(row rowScanner) (accessrequests.AccessRequest, error) {
	var req accessrequests.AccessRequest
	var role, status string
	var respondedAt, revocationAt, revokedAt sql.NullTime

	if err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&role,
		&req.PatientID,
		&req.Message,
		&status,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.ExpiresAt,
		&respondedAt,
		&revocationAt,
		&revokedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return accessrequests.AccessRequest{}, accessrequests.ErrRepoNotFound
		}
		return accessrequests.AccessRequest{}, err
	}

	req.RequesterRole = identity.Role(role)
	req.Status = accessrequests.Status(status)
	req.RespondedAt = fromNullTime(respondedAt)
	req.RevocationEffectiveAt = fromNullTime(revocationAt)
	req.RevokedAt = fromNullTime(revokedAt)
	return req, nil
}
