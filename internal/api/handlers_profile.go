package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/memorybox/coordination-server/internal/profile"
)

func listTherapistsHandler(svc *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		therapists, err := svc.ListTherapists(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, therapists)
	}
}

func getTherapistHandler(svc *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_therapist_id", "id must be a valid UUID")
			return
		}

		p, err := svc.GetTherapist(r.Context(), id)
		if err != nil {
			handleProfileError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}

// upsertTherapistHandler saves the authenticated therapist's own profile.
func upsertTherapistHandler(svc *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())

		var p profile.TherapistProfile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		p.ID = actor.ID

		saved, err := svc.UpsertTherapist(r.Context(), &p)
		if err != nil {
			handleProfileError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, saved)
	}
}

func upsertCaregiverHandler(svc *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())

		var c profile.Caregiver
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		c.ID = actor.ID

		saved, err := svc.UpsertCaregiver(r.Context(), &c)
		if err != nil {
			handleProfileError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, saved)
	}
}

func getCaregiverHandler(svc *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_caregiver_id", "id must be a valid UUID")
			return
		}

		c, err := svc.GetCaregiver(r.Context(), id)
		if err != nil {
			handleProfileError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, c)
	}
}

func createPatientHandler(svc *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())

		var p profile.PatientRecord
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		p.CaregiverID = actor.ID

		saved, err := svc.CreatePatient(r.Context(), &p)
		if err != nil {
			handleProfileError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, saved)
	}
}

func updatePatientHandler(svc *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		var p profile.PatientRecord
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		p.ID = id
		p.CaregiverID = actor.ID

		saved, err := svc.UpdatePatient(r.Context(), &p)
		if err != nil {
			handleProfileError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, saved)
	}
}

func deletePatientHandler(svc *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		if err := svc.DeletePatient(r.Context(), id); err != nil {
			handleProfileError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func listPatientsHandler(svc *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())

		patients, err := svc.ListPatients(r.Context(), actor.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, patients)
	}
}

func handleProfileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profile.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, profile.ErrTherapistNotFound):
		writeError(w, http.StatusNotFound, "therapist_not_found", err.Error())
	case errors.Is(err, profile.ErrCaregiverNotFound):
		writeError(w, http.StatusNotFound, "caregiver_not_found", err.Error())
	case errors.Is(err, profile.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
