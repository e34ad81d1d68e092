package transcribe

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestDecodeAudio(t *testing.T) {
	payload := []byte("fake audio bytes")
	encoded := base64.StdEncoding.EncodeToString(payload)

	t.Run("bare base64", func(t *testing.T) {
		raw, err := decodeAudio(encoded)
		if err != nil {
			t.Fatalf("decodeAudio: %v", err)
		}
		if string(raw) != string(payload) {
			t.Errorf("payload mismatch: %q", raw)
		}
	})

	t.Run("data url prefix stripped", func(t *testing.T) {
		raw, err := decodeAudio("data:audio/webm;base64," + encoded)
		if err != nil {
			t.Fatalf("decodeAudio: %v", err)
		}
		if string(raw) != string(payload) {
			t.Errorf("payload mismatch: %q", raw)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, err := decodeAudio(""); !errors.Is(err, ErrEmptyAudio) {
			t.Fatalf("expected ErrEmptyAudio, got %v", err)
		}
	})

	t.Run("empty data url", func(t *testing.T) {
		if _, err := decodeAudio("data:audio/webm;base64,"); !errors.Is(err, ErrEmptyAudio) {
			t.Fatalf("expected ErrEmptyAudio, got %v", err)
		}
	})

	t.Run("not base64", func(t *testing.T) {
		if _, err := decodeAudio("!!not-base64!!"); !errors.Is(err, ErrBadAudioPayload) {
			t.Fatalf("expected ErrBadAudioPayload, got %v", err)
		}
	})
}
