package accessrequests

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"ehr-access/internal/middleware"
)

func RegisterRoutes(r chi.Router, svc *Service, log zerolog.Logger) {
	r.Route("/access-requests", func(ar chi.Router) {
		ar.Post("/", createRequestHandler(svc, log))
		ar.Get("/my-requests", listMyRequestsHandler(svc))
		ar.Get("/pending", listPendingHandler(svc))
		ar.Get("/granted", listGrantedHandler(svc))

		ar.Route("/{requestID}", func(rr chi.Router) {
			rr.Put("/respond", respondHandler(svc, log))
			rr.Put("/cancel", cancelHandler(svc, log))
			rr.Delete("/", cancelHandler(svc, log))
			rr.Put("/revoke", revokeHandler(svc, log))
		})
	})
}

type createRequest struct {
	PatientID    string `json:"patientId"`
	PatientEmail string `json:"patientEmail"`
	PatientPhone string `json:"patientPhone"`
	Message      string `json:"message"`
}

type respondRequest struct {
	Action string `json:"action"`
}

type revokeRequest struct {
	Timing string `json:"timing"`
}

type requestResponse struct {
	ID                    string     `json:"id"`
	RequesterID           string     `json:"requesterId"`
	RequesterRole         string     `json:"requesterRole"`
	PatientID             string     `json:"patientId"`
	Message               string     `json:"message,omitempty"`
	Status                Status     `json:"status"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
	ExpiresAt             *time.Time `json:"expiresAt,omitempty"`
	RespondedAt           *time.Time `json:"respondedAt,omitempty"`
	RevocationEffectiveAt *time.Time `json:"revocationEffectiveAt,omitempty"`
	RevokedAt             *time.Time `json:"revokedAt,omitempty"`
}

// CreateAccessRequest godoc
// @Summary  Pedir acceso permanente a los registros de un paciente
// @Tags     access-requests
// @Accept   json
// @Produce  json
// @Success  201 {object} requestResponse
// @Router   /access-requests [post]
func createRequestHandler(svc *Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		created, err := svc.Create(r.Context(), CreateInput{
			RequesterID:   claims.UserID,
			RequesterRole: claims.Role,
			PatientID:     req.PatientID,
			PatientEmail:  req.PatientEmail,
			PatientPhone:  req.PatientPhone,
			Message:       req.Message,
		})
		if err != nil {
			writeRequestError(w, r, err, log)
			return
		}

		writeJSON(w, http.StatusCreated, toRequestResponse(created))
	}
}

func listMyRequestsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListSent(r.Context(), claims.UserID, ParseStatusFilter(r.URL.Query().Get("status")))
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, paginate(r, items))
	}
}

func listPendingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListReceivedPending(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, paginate(r, items))
	}
}

func listGrantedHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListGranted(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, paginate(r, items))
	}
}

// RespondAccessRequest godoc
// @Summary  Aprobar o denegar una solicitud pendiente
// @Tags     access-requests
// @Router   /access-requests/{requestID}/respond [put]
func respondHandler(svc *Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req respondRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		updated, err := svc.Respond(r.Context(), chi.URLParam(r, "requestID"), claims.UserID, Action(strings.TrimSpace(req.Action)))
		if err != nil {
			writeRequestError(w, r, err, log)
			return
		}
		writeJSON(w, http.StatusOK, toRequestResponse(updated))
	}
}

func cancelHandler(svc *Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.Cancel(r.Context(), chi.URLParam(r, "requestID"), claims.UserID); err != nil {
			writeRequestError(w, r, err, log)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// RevokeAccess godoc
// @Summary  Revocar acceso aprobado (inmediato o diferido 4h/8h)
// @Tags     access-requests
// @Router   /access-requests/{requestID}/revoke [put]
func revokeHandler(svc *Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req revokeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		updated, err := svc.Revoke(r.Context(), chi.URLParam(r, "requestID"), claims.UserID, RevokeTiming(strings.TrimSpace(req.Timing)))
		if err != nil {
			writeRequestError(w, r, err, log)
			return
		}
		writeJSON(w, http.StatusOK, toRequestResponse(updated))
	}
}

func writeRequestError(w http.ResponseWriter, r *http.Request, err error, log zerolog.Logger) {
	switch {
	case err == ErrInvalidInput, err == ErrInvalidRole, err == ErrMessageTooLong, err == ErrInvalidTiming:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err == ErrNotFound, err == ErrPatientNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case err == ErrForbidden:
		// mismatch de ownership: cliente desactualizado o probing
		log.Warn().Str("path", r.URL.Path).Msg("ownership mismatch on access request")
		http.Error(w, "forbidden", http.StatusForbidden)
	case err == ErrExpired:
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case err == ErrDuplicateActive, err == ErrNotPending, err == ErrNotApproved:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toRequestResponse(r AccessRequest) requestResponse {
	out := requestResponse{
		ID:                    r.ID,
		RequesterID:           r.RequesterID,
		RequesterRole:         string(r.RequesterRole),
		PatientID:             r.PatientID,
		Message:               r.Message,
		Status:                r.Status,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
		RespondedAt:           r.RespondedAt,
		RevocationEffectiveAt: r.RevocationEffectiveAt,
		RevokedAt:             r.RevokedAt,
	}
	if r.Status == StatusPending {
		exp := r.ExpiresAt
		out.ExpiresAt = &exp
	}
	return out
}

func paginate(r *http.Request, items []AccessRequest) []requestResponse {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if skip < 0 {
		skip = 0
	}
	if skip > len(items) {
		skip = len(items)
	}
	end := len(items)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}

	out := make([]requestResponse, 0, end-skip)
	for _, it := range items[skip:end] {
		out = append(out, toRequestResponse(it))
	}
	return out
}

// writeJSON está duplicado a propósito en los handlers de cada módulo;
// si aparece en más lugares, recién ahí lo extraemos a un helper común.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
