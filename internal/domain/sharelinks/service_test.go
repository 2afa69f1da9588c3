package sharelinks

import (
	"context"
	"testing"
	"time"

	"ehr-access/internal/domain/identity"
	"ehr-access/internal/domain/sharetoken"
	"ehr-access/internal/ports/directory"
	"ehr-access/internal/ports/records"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	byID        map[string]ShareLink
	redemptions []Redemption
}

func newLinkTestRepo() *testRepo {
	return &testRepo{byID: map[string]ShareLink{}}
}

func (r *testRepo) Create(ctx context.Context, l ShareLink) error {
	r.byID[l.ID] = l
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (ShareLink, error) {
	l, ok := r.byID[id]
	if !ok {
		return ShareLink{}, ErrRepoNotFound
	}
	return l, nil
}

func (r *testRepo) ListByIssuer(ctx context.Context, issuerID string) ([]ShareLink, error) {
	out := make([]ShareLink, 0)
	for _, l := range r.byID {
		if l.IssuedBy == issuerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *testRepo) IncrementAccess(ctx context.Context, id string, entry Redemption) (int64, error) {
	l, ok := r.byID[id]
	if !ok {
		return 0, ErrRepoNotFound
	}
	l.AccessCount++
	r.byID[id] = l
	r.redemptions = append(r.redemptions, entry)
	return l.AccessCount, nil
}

func (r *testRepo) ListRedeemedBy(ctx context.Context, userID string) ([]ShareLink, error) {
	seen := map[string]bool{}
	out := make([]ShareLink, 0)
	for _, e := range r.redemptions {
		if e.RedeemedBy != userID || seen[e.LinkID] {
			continue
		}
		seen[e.LinkID] = true
		if l, ok := r.byID[e.LinkID]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// -------------------------
// Test records / directory
// -------------------------

type testRecords struct {
	byID map[string]records.Record
}

func (s *testRecords) GetRecord(ctx context.Context, id string) (records.Record, error) {
	rec, ok := s.byID[id]
	if !ok {
		return records.Record{}, records.ErrNotFound
	}
	return rec, nil
}

func (s *testRecords) ListByPatient(ctx context.Context, patientID string) ([]records.Record, error) {
	out := make([]records.Record, 0)
	for _, rec := range s.byID {
		if rec.PatientID == patientID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type testDir struct {
	byID map[string]directory.UserSummary
}

func (d *testDir) FindPatient(ctx context.Context, email, phone string) (directory.UserSummary, error) {
	return directory.UserSummary{}, directory.ErrNotFound
}

func (d *testDir) GetUser(ctx context.Context, id string) (directory.UserSummary, error) {
	u, ok := d.byID[id]
	if !ok {
		return directory.UserSummary{}, directory.ErrNotFound
	}
	return u, nil
}

func newLinkTestService(repo *testRepo) *Service {
	codec := sharetoken.NewCodec([]byte("test-secret"))
	recs := &testRecords{byID: map[string]records.Record{
		"rec-1": {ID: "rec-1", PatientID: "patient-1", Title: "Hemograma"},
		"rec-2": {ID: "rec-2", PatientID: "patient-1", Title: "Radiografía"},
		"rec-3": {ID: "rec-3", PatientID: "patient-2", Title: "Ajeno"},
	}}
	dir := &testDir{byID: map[string]directory.UserSummary{
		"patient-1": {ID: "patient-1", FirstName: "Ana", LastName: "García", Role: identity.RolePatient},
		"patient-2": {ID: "patient-2", FirstName: "Beto", Role: identity.RolePatient},
	}}
	return NewService(repo, codec, recs, dir, "https://app.example.com/")
}

// -------------------------
// Tests
// -------------------------

func TestService_IssueAll_PatientOnly(t *testing.T) {
	repo := newLinkTestRepo()
	svc := newLinkTestService(repo)

	issued, err := svc.IssueAll(context.Background(), "patient-1", identity.RolePatient, Duration4h)
	if err != nil {
		t.Fatalf("IssueAll error: %v", err)
	}
	if issued.ScopeType != sharetoken.ScopeAllRecords || issued.ScopeID != "patient-1" {
		t.Fatalf("expected all_records scope over issuer, got %s/%s", issued.ScopeType, issued.ScopeID)
	}
	if issued.Token == "" {
		t.Fatalf("expected signed token")
	}
	if want := "https://app.example.com/shared/" + issued.Token; issued.ShareURL != want {
		t.Fatalf("expected share URL %q, got %q", want, issued.ShareURL)
	}

	if _, err := svc.IssueAll(context.Background(), "doctor-1", identity.RoleDoctor, Duration4h); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden for non patient, got %v", err)
	}
}

func TestService_IssueRecord_OwnershipEnforced(t *testing.T) {
	repo := newLinkTestRepo()
	svc := newLinkTestService(repo)

	issued, err := svc.IssueRecord(context.Background(), "patient-1", "rec-1", Duration24h)
	if err != nil {
		t.Fatalf("IssueRecord error: %v", err)
	}
	if issued.ScopeType != sharetoken.ScopeRecord || issued.ScopeID != "rec-1" {
		t.Fatalf("expected record scope, got %s/%s", issued.ScopeType, issued.ScopeID)
	}

	// registro de otro paciente
	if _, err := svc.IssueRecord(context.Background(), "patient-1", "rec-3", Duration24h); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden for foreign record, got %v", err)
	}
	// registro inexistente
	if _, err := svc.IssueRecord(context.Background(), "patient-1", "rec-x", Duration24h); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Issue_InvalidDuration(t *testing.T) {
	repo := newLinkTestRepo()
	svc := newLinkTestService(repo)

	if _, err := svc.IssueAll(context.Background(), "patient-1", identity.RolePatient, Duration("48h")); err != ErrInvalidDuration {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestService_Redeem_CountsEveryScan(t *testing.T) {
	repo := newLinkTestRepo()
	svc := newLinkTestService(repo)

	issued, err := svc.IssueAll(context.Background(), "patient-1", identity.RolePatient, Duration4h)
	if err != nil {
		t.Fatalf("IssueAll error: %v", err)
	}

	first, err := svc.Redeem(context.Background(), issued.Token, "")
	if err != nil {
		t.Fatalf("Redeem #1 error: %v", err)
	}
	if first.AccessCount != 1 {
		t.Fatalf("expected access count 1, got %d", first.AccessCount)
	}
	if first.Patient.ID != "patient-1" {
		t.Fatalf("expected patient snapshot, got %#v", first.Patient)
	}
	if len(first.Records) != 2 {
		t.Fatalf("expected 2 records for patient-1, got %d", len(first.Records))
	}

	second, err := svc.Redeem(context.Background(), issued.Token, "doctor-9")
	if err != nil {
		t.Fatalf("Redeem #2 error: %v", err)
	}
	if second.AccessCount != 2 {
		t.Fatalf("expected access count 2, got %d", second.AccessCount)
	}

	// el escaneo autenticado quedó en el log
	accessed, _ := svc.ListAccessed(context.Background(), "doctor-9")
	if len(accessed) != 1 || accessed[0].ID != issued.ID {
		t.Fatalf("expected redeemed link in accessed list, got %#v", accessed)
	}
}

func TestService_Redeem_SingleRecordScope(t *testing.T) {
	repo := newLinkTestRepo()
	svc := newLinkTestService(repo)

	issued, err := svc.IssueRecord(context.Background(), "patient-1", "rec-2", Duration7d)
	if err != nil {
		t.Fatalf("IssueRecord error: %v", err)
	}

	got, err := svc.Redeem(context.Background(), issued.Token, "")
	if err != nil {
		t.Fatalf("Redeem error: %v", err)
	}
	if len(got.Records) != 1 || got.Records[0].ID != "rec-2" {
		t.Fatalf("expected only rec-2, got %#v", got.Records)
	}
	if got.Patient.ID != "patient-1" {
		t.Fatalf("expected owner snapshot, got %s", got.Patient.ID)
	}
}

func TestService_Redeem_Expired(t *testing.T) {
	repo := newLinkTestRepo()
	svc := newLinkTestService(repo)

	issued, err := svc.IssueAll(context.Background(), "patient-1", identity.RolePatient, Duration4h)
	if err != nil {
		t.Fatalf("IssueAll error: %v", err)
	}

	svc.now = func() time.Time { return issued.ExpiresAt.Add(time.Millisecond) }

	if _, err := svc.Redeem(context.Background(), issued.Token, ""); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	// un escaneo vencido no suma al contador
	if l, _ := repo.GetByID(context.Background(), issued.ID); l.AccessCount != 0 {
		t.Fatalf("expected access count 0 after expired scan, got %d", l.AccessCount)
	}
}

func TestService_Redeem_MalformedToken(t *testing.T) {
	repo := newLinkTestRepo()
	svc := newLinkTestService(repo)

	if _, err := svc.Redeem(context.Background(), "no-es-un-token", ""); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}

	// firma de otra clave: también malformado, nunca 401
	other := sharetoken.NewCodec([]byte("other-secret"))
	forged, _, err := other.Encode(sharetoken.ScopeAllRecords, "patient-1", time.Hour)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if _, err := svc.Redeem(context.Background(), forged, ""); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed for forged token, got %v", err)
	}
}

func TestService_Redeem_MissingRow(t *testing.T) {
	repo := newLinkTestRepo()
	svc := newLinkTestService(repo)

	issued, err := svc.IssueAll(context.Background(), "patient-1", identity.RolePatient, Duration4h)
	if err != nil {
		t.Fatalf("IssueAll error: %v", err)
	}

	// token válido pero la fila nunca se persistió
	delete(repo.byID, issued.ID)

	if _, err := svc.Redeem(context.Background(), issued.Token, ""); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_ListMine_NewestFirst(t *testing.T) {
	repo := newLinkTestRepo()
	svc := newLinkTestService(repo)

	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	first, _ := svc.IssueAll(context.Background(), "patient-1", identity.RolePatient, Duration4h)

	svc.now = func() time.Time { return base.Add(time.Minute) }
	second, _ := svc.IssueAll(context.Background(), "patient-1", identity.RolePatient, Duration24h)

	items, err := svc.ListMine(context.Background(), "patient-1")
	if err != nil {
		t.Fatalf("ListMine error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 links, got %d", len(items))
	}
	if items[0].ID != second.ID || items[1].ID != first.ID {
		t.Fatalf("expected newest first")
	}
}

func TestDuration_Window(t *testing.T) {
	if w, ok := Duration4h.Window(); !ok || w != 4*time.Hour {
		t.Fatalf("4h: got %v %v", w, ok)
	}
	if w, ok := Duration24h.Window(); !ok || w != 24*time.Hour {
		t.Fatalf("24h: got %v %v", w, ok)
	}
	if w, ok := Duration7d.Window(); !ok || w != 7*24*time.Hour {
		t.Fatalf("7d: got %v %v", w, ok)
	}
	if _, ok := Duration("1h").Window(); ok {
		t.Fatalf("expected unknown duration rejected")
	}
}
