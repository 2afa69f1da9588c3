package accesseval

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ehr-access/internal/middleware"
	"ehr-access/internal/ports/records"
)

// RegisterRoutes expone el evaluador como chequeo explícito para otras
// superficies (el record store lo consulta antes de servir lecturas).
func RegisterRoutes(r chi.Router, ev *Evaluator, recs records.Store) {
	r.Route("/access", func(ar chi.Router) {
		ar.Get("/patients/{patientID}", checkPatientHandler(ev))
		ar.Get("/records/{recordID}", checkRecordHandler(ev, recs))
	})
}

type decisionResponse struct {
	Allowed bool `json:"allowed"`
}

func checkPatientHandler(ev *Evaluator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		allowed, err := ev.CanAccessAllRecords(r.Context(), claims.UserID, chi.URLParam(r, "patientID"))
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, decisionResponse{Allowed: allowed})
	}
}

func checkRecordHandler(ev *Evaluator, recs records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		rec, err := recs.GetRecord(r.Context(), chi.URLParam(r, "recordID"))
		if err != nil {
			if errors.Is(err, records.ErrNotFound) {
				http.Error(w, "record not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		allowed, err := ev.CanAccessRecord(r.Context(), claims.UserID, rec)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, decisionResponse{Allowed: allowed})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
