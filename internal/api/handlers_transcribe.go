package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/memorybox/coordination-server/internal/transcribe"
)

func transcribeHandler(t transcribe.Transcriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if t == nil {
			writeError(w, http.StatusServiceUnavailable, "transcription_unavailable", "transcription is not configured")
			return
		}

		var req TranscribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		transcript, err := t.Transcribe(r.Context(), req.AudioData, req.MimeType)
		if err != nil {
			switch {
			case errors.Is(err, transcribe.ErrEmptyAudio),
				errors.Is(err, transcribe.ErrBadAudioPayload):
				writeError(w, http.StatusBadRequest, "invalid_audio", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "transcription_failed", "failed to transcribe audio")
			}
			return
		}

		writeJSON(w, http.StatusOK, TranscribeResponse{Transcript: transcript})
	}
}
