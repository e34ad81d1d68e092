package transcribe

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var (
	ErrEmptyAudio      = errors.New("audio data is empty")
	ErrBadAudioPayload = errors.New("audio data is not valid base64")
)

const transcriptionPrompt = "Transcribe the following audio content into text."

// Transcriber converts a recorded audio clip into text. The photo-recognition
// speech exercise posts clips here and compares the transcript to the
// expected answer on the client.
type Transcriber interface {
	Transcribe(ctx context.Context, audioData, mimeType string) (string, error)
}

type GeminiService struct {
	model *genai.GenerativeModel
}

func NewGeminiService(ctx context.Context, apiKey string) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiService{
		model: client.GenerativeModel("models/gemini-1.5-flash-latest"),
	}, nil
}

// Transcribe accepts the audio either as a bare base64 string or as a data
// URL ("data:audio/webm;base64,...") and returns the model's transcript.
func (s *GeminiService) Transcribe(ctx context.Context, audioData, mimeType string) (string, error) {
	raw, err := decodeAudio(audioData)
	if err != nil {
		return "", err
	}

	resp, err := s.model.GenerateContent(ctx,
		genai.Text(transcriptionPrompt),
		genai.Blob{MIMEType: mimeType, Data: raw},
	)
	if err != nil {
		return "", fmt.Errorf("gemini transcription: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}

	return strings.TrimSpace(sb.String()), nil
}

func decodeAudio(audioData string) ([]byte, error) {
	if audioData == "" {
		return nil, ErrEmptyAudio
	}

	// Browsers send FileReader results as data URLs; strip the prefix.
	if idx := strings.Index(audioData, ","); idx >= 0 && strings.HasPrefix(audioData, "data:") {
		audioData = audioData[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(audioData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAudioPayload, err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyAudio
	}

	return raw, nil
}
