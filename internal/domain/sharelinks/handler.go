package sharelinks

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"ehr-access/internal/middleware"
	"ehr-access/internal/ports/records"
)

func RegisterRoutes(r chi.Router, svc *Service, log zerolog.Logger) {
	r.Route("/share-links", func(sr chi.Router) {
		sr.Post("/all", issueAllHandler(svc, log))
		sr.Post("/records/{recordID}", issueRecordHandler(svc, log))
		sr.Get("/", listMineHandler(svc))
		sr.Get("/accessed", listAccessedHandler(svc))
	})

	// Redención pública: el QR llega sin sesión. Si hay claims igual
	// los usamos para el log de "shared with me".
	r.Get("/shared/{token}", redeemHandler(svc))
}

type issueRequest struct {
	Duration string `json:"duration"`
}

type linkResponse struct {
	ID          string    `json:"id"`
	ScopeType   string    `json:"scopeType"`
	ScopeID     string    `json:"scopeId"`
	IssuedAt    time.Time `json:"issuedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	AccessCount int64     `json:"accessCount"`
}

type issuedResponse struct {
	linkResponse
	Token     string `json:"token"`
	ShareLink string `json:"shareLink"`
}

type patientResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
}

type recordResponse struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patientId"`
	CreatedBy   string    `json:"createdBy"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	RecordType  string    `json:"recordType"`
	CreatedAt   time.Time `json:"createdAt"`
}

type redemptionResponse struct {
	Patient     patientResponse  `json:"patient"`
	Records     []recordResponse `json:"records"`
	AccessCount int64            `json:"accessCount"`
	ExpiresAt   time.Time        `json:"expiresAt"`
}

// IssueAllShareLink godoc
// @Summary  Emitir link efímero a todos los registros del paciente
// @Tags     share-links
// @Accept   json
// @Produce  json
// @Success  201 {object} issuedResponse
// @Router   /share-links/all [post]
func issueAllHandler(svc *Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req issueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		issued, err := svc.IssueAll(r.Context(), claims.UserID, claims.Role, Duration(req.Duration))
		if err != nil {
			writeLinkError(w, r, err, log)
			return
		}
		writeJSON(w, http.StatusCreated, toIssuedResponse(issued))
	}
}

func issueRecordHandler(svc *Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req issueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		issued, err := svc.IssueRecord(r.Context(), claims.UserID, chi.URLParam(r, "recordID"), Duration(req.Duration))
		if err != nil {
			writeLinkError(w, r, err, log)
			return
		}
		writeJSON(w, http.StatusCreated, toIssuedResponse(issued))
	}
}

func listMineHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListMine(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]linkResponse, 0, len(items))
		for _, l := range items {
			out = append(out, toLinkResponse(l))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func listAccessedHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListAccessed(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]linkResponse, 0, len(items))
		for _, l := range items {
			out = append(out, toLinkResponse(l))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// RedeemShareLink godoc
// @Summary  Redimir un share token (público, sin sesión)
// @Tags     share-links
// @Produce  json
// @Success  200 {object} redemptionResponse
// @Failure  404 "token malformado"
// @Failure  401 "token vencido"
// @Router   /shared/{token} [get]
func redeemHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redeemerID := ""
		if claims, ok := middleware.GetClaims(r.Context()); ok {
			redeemerID = claims.UserID
		}

		result, err := svc.Redeem(r.Context(), chi.URLParam(r, "token"), redeemerID)
		if err != nil {
			switch err {
			case ErrMalformed, ErrNotFound:
				http.Error(w, "not found", http.StatusNotFound)
			case ErrExpired:
				http.Error(w, "share link expired", http.StatusUnauthorized)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		out := redemptionResponse{
			Patient: patientResponse{
				ID:        result.Patient.ID,
				FirstName: result.Patient.FirstName,
				LastName:  result.Patient.LastName,
				Email:     result.Patient.Email,
			},
			Records:     make([]recordResponse, 0, len(result.Records)),
			AccessCount: result.AccessCount,
			ExpiresAt:   result.ExpiresAt,
		}
		for _, rec := range result.Records {
			out.Records = append(out.Records, toRecordResponse(rec))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeLinkError(w http.ResponseWriter, r *http.Request, err error, log zerolog.Logger) {
	switch {
	case err == ErrInvalidInput, err == ErrInvalidDuration:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err == ErrForbidden:
		log.Warn().Str("path", r.URL.Path).Msg("ownership mismatch on share link")
		http.Error(w, "forbidden", http.StatusForbidden)
	case err == ErrNotFound:
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toLinkResponse(l ShareLink) linkResponse {
	return linkResponse{
		ID:          l.ID,
		ScopeType:   string(l.ScopeType),
		ScopeID:     l.ScopeID,
		IssuedAt:    l.IssuedAt,
		ExpiresAt:   l.ExpiresAt,
		AccessCount: l.AccessCount,
	}
}

func toIssuedResponse(i IssuedLink) issuedResponse {
	return issuedResponse{
		linkResponse: toLinkResponse(i.ShareLink),
		Token:        i.Token,
		ShareLink:    i.ShareURL,
	}
}

func toRecordResponse(rec records.Record) recordResponse {
	return recordResponse{
		ID:          rec.ID,
		PatientID:   rec.PatientID,
		CreatedBy:   rec.CreatedBy,
		Title:       rec.Title,
		Description: rec.Description,
		RecordType:  rec.RecordType,
		CreatedAt:   rec.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
