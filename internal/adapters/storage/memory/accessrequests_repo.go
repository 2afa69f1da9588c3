package memory

import (
	"context"
	"sort"
	"sync"

	"ehr-access/internal/domain/accessrequests"
)

// AccessRequestsRepo: implementación en memoria para dev y tests.
// Mismo contrato de errores que el adapter de Postgres.
type AccessRequestsRepo struct {
	mu   sync.RWMutex
	rows map[string]accessrequests.AccessRequest
}

func NewAccessRequestsRepo() *AccessRequestsRepo {
	return &AccessRequestsRepo{rows: make(map[string]accessrequests.AccessRequest)}
}

func (r *AccessRequestsRepo) Create(_ context.Context, req accessrequests.AccessRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// réplica del índice único parcial: un pending/approved por par
	for _, row := range r.rows {
		if row.RequesterID == req.RequesterID && row.PatientID == req.PatientID &&
			(row.Status == accessrequests.StatusPending || row.Status == accessrequests.StatusApproved) {
			return accessrequests.ErrRepoDuplicateActive
		}
	}

	r.rows[req.ID] = req
	return nil
}

func (r *AccessRequestsRepo) Update(_ context.Context, req accessrequests.AccessRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[req.ID]; !ok {
		return accessrequests.ErrRepoNotFound
	}
	r.rows[req.ID] = req
	return nil
}

func (r *AccessRequestsRepo) UpdateFrom(_ context.Context, req accessrequests.AccessRequest, expected accessrequests.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.rows[req.ID]
	if !ok {
		return accessrequests.ErrRepoNotFound
	}
	if cur.Status != expected {
		return accessrequests.ErrRepoStale
	}
	r.rows[req.ID] = req
	return nil
}

func (r *AccessRequestsRepo) GetByID(_ context.Context, id string) (accessrequests.AccessRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.rows[id]
	if !ok {
		return accessrequests.AccessRequest{}, accessrequests.ErrRepoNotFound
	}
	return req, nil
}

func (r *AccessRequestsRepo) FindActiveByPair(_ context.Context, requesterID, patientID string) (accessrequests.AccessRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found accessrequests.AccessRequest
	ok := false
	for _, row := range r.rows {
		if row.RequesterID != requesterID || row.PatientID != patientID {
			continue
		}
		if row.Status != accessrequests.StatusPending && row.Status != accessrequests.StatusApproved {
			continue
		}
		if !ok || row.CreatedAt.After(found.CreatedAt) {
			found = row
			ok = true
		}
	}
	if !ok {
		return accessrequests.AccessRequest{}, accessrequests.ErrRepoNotFound
	}
	return found, nil
}

func (r *AccessRequestsRepo) ListByRequester(_ context.Context, requesterID string) ([]accessrequests.AccessRequest, error) {
	return r.filter(func(row accessrequests.AccessRequest) bool {
		return row.RequesterID == requesterID
	}), nil
}

func (r *AccessRequestsRepo) ListByPatient(_ context.Context, patientID string) ([]accessrequests.AccessRequest, error) {
	return r.filter(func(row accessrequests.AccessRequest) bool {
		return row.PatientID == patientID
	}), nil
}

func (r *AccessRequestsRepo) filter(keep func(accessrequests.AccessRequest) bool) []accessrequests.AccessRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]accessrequests.AccessRequest, 0)
	for _, row := range r.rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
