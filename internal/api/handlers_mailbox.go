package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/memorybox/coordination-server/internal/mailbox"
)

// sendRescheduleRequestHandler lets a caregiver ask a therapist to move an
// appointment. The patient id comes from the token, never the body.
func sendRescheduleRequestHandler(svc *mailbox.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())

		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		therapistID, err := uuid.Parse(req.TherapistID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_therapist_id", "therapist_id must be a valid UUID")
			return
		}

		cr, err := svc.SendRescheduleRequest(r.Context(), therapistID, actor.ID, req.Message)
		if err != nil {
			handleMailboxError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toChangeRequestResponse(cr))
	}
}

func sendTherapistNoticeHandler(svc *mailbox.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())

		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		cr, err := svc.SendTherapistNotice(r.Context(), actor.ID, patientID, req.Message)
		if err != nil {
			handleMailboxError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toChangeRequestResponse(cr))
	}
}

func respondToRequestHandler(svc *mailbox.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_id", "id must be a valid UUID")
			return
		}

		var req ResolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		cr, err := svc.Respond(r.Context(), id, actor.ID, mailbox.Decision(req.Decision))
		if err != nil {
			handleMailboxError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toChangeRequestResponse(cr))
	}
}

func acknowledgeNoticeHandler(svc *mailbox.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_id", "id must be a valid UUID")
			return
		}

		var req ResolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		cr, err := svc.Acknowledge(r.Context(), id, actor.ID, mailbox.Ack(req.Decision))
		if err != nil {
			handleMailboxError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toChangeRequestResponse(cr))
	}
}

func therapistInboxHandler(svc *mailbox.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())

		items, err := svc.TherapistInbox(r.Context(), actor.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toChangeRequestResponses(items))
	}
}

func patientInboxHandler(svc *mailbox.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())

		items, err := svc.PatientInbox(r.Context(), actor.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toChangeRequestResponses(items))
	}
}

func handleMailboxError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mailbox.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "request_not_found", err.Error())
	case errors.Is(err, mailbox.ErrNotAddressee):
		writeError(w, http.StatusForbidden, "not_addressee", err.Error())
	case errors.Is(err, mailbox.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, mailbox.ErrEmptyMessage):
		writeError(w, http.StatusUnprocessableEntity, "empty_message", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
