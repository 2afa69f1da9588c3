package accessrequests

import (
	"context"
	"errors"
	"testing"
	"time"

	"ehr-access/internal/domain/identity"
	"ehr-access/internal/ports/directory"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	byID map[string]AccessRequest
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]AccessRequest{}}
}

func (r *testRepo) Create(ctx context.Context, req AccessRequest) error {
	for _, row := range r.byID {
		if row.RequesterID == req.RequesterID && row.PatientID == req.PatientID &&
			(row.Status == StatusPending || row.Status == StatusApproved) {
			return ErrRepoDuplicateActive
		}
	}
	r.byID[req.ID] = req
	return nil
}

func (r *testRepo) Update(ctx context.Context, req AccessRequest) error {
	if _, ok := r.byID[req.ID]; !ok {
		return ErrRepoNotFound
	}
	r.byID[req.ID] = req
	return nil
}

func (r *testRepo) UpdateFrom(ctx context.Context, req AccessRequest, expected Status) error {
	cur, ok := r.byID[req.ID]
	if !ok {
		return ErrRepoNotFound
	}
	if cur.Status != expected {
		return ErrRepoStale
	}
	r.byID[req.ID] = req
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (AccessRequest, error) {
	req, ok := r.byID[id]
	if !ok {
		return AccessRequest{}, ErrRepoNotFound
	}
	return req, nil
}

func (r *testRepo) FindActiveByPair(ctx context.Context, requesterID, patientID string) (AccessRequest, error) {
	for _, row := range r.byID {
		if row.RequesterID == requesterID && row.PatientID == patientID &&
			(row.Status == StatusPending || row.Status == StatusApproved) {
			return row, nil
		}
	}
	return AccessRequest{}, ErrRepoNotFound
}

func (r *testRepo) ListByRequester(ctx context.Context, requesterID string) ([]AccessRequest, error) {
	out := make([]AccessRequest, 0)
	for _, row := range r.byID {
		if row.RequesterID == requesterID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *testRepo) ListByPatient(ctx context.Context, patientID string) ([]AccessRequest, error) {
	out := make([]AccessRequest, 0)
	for _, row := range r.byID {
		if row.PatientID == patientID {
			out = append(out, row)
		}
	}
	return out, nil
}

// -------------------------
// Test directory
// -------------------------

type testDirectory struct {
	byEmail map[string]directory.UserSummary
}

func (d *testDirectory) FindPatient(ctx context.Context, email, phone string) (directory.UserSummary, error) {
	if u, ok := d.byEmail[email]; ok {
		return u, nil
	}
	return directory.UserSummary{}, directory.ErrNotFound
}

func (d *testDirectory) GetUser(ctx context.Context, id string) (directory.UserSummary, error) {
	for _, u := range d.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return directory.UserSummary{}, directory.ErrNotFound
}

func newTestService(repo *testRepo) *Service {
	dir := &testDirectory{byEmail: map[string]directory.UserSummary{
		"ana@example.com": {ID: "patient-1", FirstName: "Ana", Role: identity.RolePatient},
	}}
	return NewService(repo, dir)
}

// -------------------------
// Tests
// -------------------------

func TestService_Create_SetsPendingAndExpiry(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	r, err := svc.Create(context.Background(), CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientID:     "patient-1",
		Message:       "seguimiento post operatorio",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if r.Status != StatusPending {
		t.Fatalf("expected pending, got %s", r.Status)
	}
	if r.ExpiresAt != now.Add(PendingTTL) {
		t.Fatalf("expected expiry 7 days out, got %v", r.ExpiresAt)
	}
	if r.ID == "" {
		t.Fatalf("expected generated id")
	}
}

func TestService_Create_ResolvesPatientByEmail(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	r, err := svc.Create(context.Background(), CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientEmail:  "ana@example.com",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if r.PatientID != "patient-1" {
		t.Fatalf("expected patient resolved via directory, got %s", r.PatientID)
	}
}

func TestService_Create_UnknownPatientEmail(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientEmail:  "nadie@example.com",
	})
	if err != ErrPatientNotFound {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestService_Create_RejectsPatientRequester(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		RequesterID:   "patient-2",
		RequesterRole: identity.RolePatient,
		PatientID:     "patient-1",
	})
	if err != ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestService_Create_RejectsLongMessage(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	long := make([]byte, MaxMessageLen+1)
	for i := range long {
		long[i] = 'x'
	}

	_, err := svc.Create(context.Background(), CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientID:     "patient-1",
		Message:       string(long),
	})
	if err != ErrMessageTooLong {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
}

func TestService_Create_DuplicateActiveBlocked(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	in := CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientID:     "patient-1",
	}
	if _, err := svc.Create(context.Background(), in); err != nil {
		t.Fatalf("Create #1 error: %v", err)
	}
	if _, err := svc.Create(context.Background(), in); err != ErrDuplicateActive {
		t.Fatalf("expected ErrDuplicateActive, got %v", err)
	}
}

func TestService_Create_ExpiredPendingDoesNotBlock(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	now1 := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now1 }

	first, err := svc.Create(context.Background(), CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientID:     "patient-1",
	})
	if err != nil {
		t.Fatalf("Create #1 error: %v", err)
	}

	// 8 días después: la pending venció, un nuevo pedido tiene que pasar
	svc.now = func() time.Time { return now1.Add(8 * 24 * time.Hour) }

	second, err := svc.Create(context.Background(), CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientID:     "patient-1",
	})
	if err != nil {
		t.Fatalf("Create #2 after expiry error: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected a new request, got same id")
	}

	// y la vieja quedó persistida como expired (write-through)
	old, _ := repo.GetByID(context.Background(), first.ID)
	if old.Status != StatusExpired {
		t.Fatalf("expected old request settled to expired, got %s", old.Status)
	}
}

func TestService_Create_SelfRequestRejected(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		RequesterID:   "patient-1",
		RequesterRole: identity.RoleDoctor,
		PatientID:     "patient-1",
	})
	if err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput for self request, got %v", err)
	}
}

func TestService_Respond_ApproveAndDeny(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	r, _ := svc.Create(context.Background(), CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientID:     "patient-1",
	})

	approved, err := svc.Respond(context.Background(), r.ID, "patient-1", ActionApprove)
	if err != nil {
		t.Fatalf("Respond approve error: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	if approved.RespondedAt == nil || !approved.RespondedAt.Equal(now) {
		t.Fatalf("expected respondedAt set to now")
	}

	// ya no está pending: segunda respuesta choca
	if _, err := svc.Respond(context.Background(), r.ID, "patient-1", ActionDeny); err != ErrNotPending {
		t.Fatalf("expected ErrNotPending on second respond, got %v", err)
	}
}

func TestService_Respond_OnlyOwner(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	r, _ := svc.Create(context.Background(), CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientID:     "patient-1",
	})

	if _, err := svc.Respond(context.Background(), r.ID, "patient-2", ActionApprove); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestService_Respond_ExpiredPending(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	r, _ := svc.Create(context.Background(), CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientID:     "patient-1",
	})

	svc.now = func() time.Time { return now.Add(PendingTTL + time.Hour) }

	if _, err := svc.Respond(context.Background(), r.ID, "patient-1", ActionApprove); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	// el intento de respuesta dejó la fila asentada como expired
	stored, _ := repo.GetByID(context.Background(), r.ID)
	if stored.Status != StatusExpired {
		t.Fatalf("expected stored expired after write-through, got %s", stored.Status)
	}
}

func TestService_Cancel_OnlyRequesterWhilePending(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	r, _ := svc.Create(context.Background(), CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientID:     "patient-1",
	})

	if err := svc.Cancel(context.Background(), r.ID, "doctor-2"); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden for other requester, got %v", err)
	}
	if err := svc.Cancel(context.Background(), r.ID, "doctor-1"); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), r.ID)
	if stored.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", stored.Status)
	}

	if err := svc.Cancel(context.Background(), r.ID, "doctor-1"); err != ErrNotPending {
		t.Fatalf("expected ErrNotPending on second cancel, got %v", err)
	}
}

func TestService_Revoke_Immediate(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	r, _ := svc.Create(context.Background(), CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientID:     "patient-1",
	})
	if _, err := svc.Respond(context.Background(), r.ID, "patient-1", ActionApprove); err != nil {
		t.Fatalf("Respond error: %v", err)
	}

	revoked, err := svc.Revoke(context.Background(), r.ID, "patient-1", TimingImmediate)
	if err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if revoked.Status != StatusRevoked {
		t.Fatalf("expected revoked, got %s", revoked.Status)
	}
	if revoked.RevokedAt == nil || !revoked.RevokedAt.Equal(now) {
		t.Fatalf("expected revokedAt = now")
	}
}

func TestService_Revoke_Delayed(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	r, _ := svc.Create(context.Background(), CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientID:     "patient-1",
	})
	if _, err := svc.Respond(context.Background(), r.ID, "patient-1", ActionApprove); err != nil {
		t.Fatalf("Respond error: %v", err)
	}

	scheduled, err := svc.Revoke(context.Background(), r.ID, "patient-1", Timing4h)
	if err != nil {
		t.Fatalf("Revoke delayed error: %v", err)
	}
	// sigue approved: el corte es futuro
	if scheduled.Status != StatusApproved {
		t.Fatalf("expected still approved, got %s", scheduled.Status)
	}
	want := now.Add(4 * time.Hour)
	if scheduled.RevocationEffectiveAt == nil || !scheduled.RevocationEffectiveAt.Equal(want) {
		t.Fatalf("expected revocationEffectiveAt %v, got %v", want, scheduled.RevocationEffectiveAt)
	}

	// pasado el corte, el estado efectivo es revoked
	if got := EffectiveStatus(scheduled, want.Add(time.Minute)); got != StatusRevoked {
		t.Fatalf("expected revoked past cutoff, got %s", got)
	}
}

func TestService_Revoke_InvalidTiming(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	if _, err := svc.Revoke(context.Background(), "any", "patient-1", RevokeTiming("12h")); err != ErrInvalidTiming {
		t.Fatalf("expected ErrInvalidTiming, got %v", err)
	}
}

func TestService_Revoke_RequiresApproved(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	r, _ := svc.Create(context.Background(), CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientID:     "patient-1",
	})

	if _, err := svc.Revoke(context.Background(), r.ID, "patient-1", TimingImmediate); err != ErrNotApproved {
		t.Fatalf("expected ErrNotApproved on pending, got %v", err)
	}
}

func TestService_ListSent_SettlesExpired(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	r, _ := svc.Create(context.Background(), CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientID:     "patient-1",
	})

	svc.now = func() time.Time { return now.Add(PendingTTL + time.Hour) }

	items, err := svc.ListSent(context.Background(), "doctor-1", nil)
	if err != nil {
		t.Fatalf("ListSent error: %v", err)
	}
	if len(items) != 1 || items[0].Status != StatusExpired {
		t.Fatalf("expected one expired item, got %#v", items)
	}

	stored, _ := repo.GetByID(context.Background(), r.ID)
	if stored.Status != StatusExpired {
		t.Fatalf("expected write-through to persist expired, got %s", stored.Status)
	}
}

func TestService_ListGranted_ExcludesDelayedRevokePastCutoff(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	r, _ := svc.Create(context.Background(), CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientID:     "patient-1",
	})
	if _, err := svc.Respond(context.Background(), r.ID, "patient-1", ActionApprove); err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if _, err := svc.Revoke(context.Background(), r.ID, "patient-1", Timing8h); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}

	// antes del corte: sigue en granted
	items, _ := svc.ListGranted(context.Background(), "patient-1")
	if len(items) != 1 {
		t.Fatalf("expected grant still listed before cutoff, got %d", len(items))
	}

	// después del corte: desaparece y la fila queda revoked
	svc.now = func() time.Time { return now.Add(9 * time.Hour) }
	items, _ = svc.ListGranted(context.Background(), "patient-1")
	if len(items) != 0 {
		t.Fatalf("expected no grants past cutoff, got %d", len(items))
	}
	stored, _ := repo.GetByID(context.Background(), r.ID)
	if stored.Status != StatusRevoked {
		t.Fatalf("expected stored revoked, got %s", stored.Status)
	}
	if stored.RevokedAt == nil || !stored.RevokedAt.Equal(*stored.RevocationEffectiveAt) {
		t.Fatalf("expected revokedAt backfilled from cutoff")
	}
}

func TestParseStatusFilter(t *testing.T) {
	got := ParseStatusFilter(" approved , denied ")
	if len(got) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(got))
	}
	if _, ok := got[StatusApproved]; !ok {
		t.Fatalf("expected approved in filter")
	}
	if ParseStatusFilter("") != nil {
		t.Fatalf("expected nil for empty filter")
	}
}

func TestService_Respond_AlreadySettledMapsToNotPending(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	r, _ := svc.Create(context.Background(), CreateInput{
		RequesterID:   "doctor-1",
		RequesterRole: identity.RoleDoctor,
		PatientID:     "patient-1",
	})

	// otro caller ya cerró la solicitud
	row := repo.byID[r.ID]
	row.Status = StatusCancelled
	repo.byID[r.ID] = row

	_, err := svc.Respond(context.Background(), r.ID, "patient-1", ActionApprove)
	if !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
}
