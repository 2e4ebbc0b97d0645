package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/voxd/voxd/internal/audio"
	"github.com/voxd/voxd/pkg/logger"
)

// errorBodyLimit caps how much of an upstream error body is surfaced.
const errorBodyLimit = 500

// Result is the transcription of one utterance.
type Result struct {
	Text        string    `json:"text"`
	Language    string    `json:"language"`
	GeneratedAt time.Time `json:"-"`
}

// Transcriber turns a recorded utterance into text.
type Transcriber interface {
	Transcribe(ctx context.Context, utt audio.Utterance) (*Result, error)
}

// WhisperClient talks to a whisper-style HTTP transcription service.
type WhisperClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewWhisperClient(baseURL string, log *logger.Logger) *WhisperClient {
	return &WhisperClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: log.Named("whisper"),
	}
}

// Transcribe posts the utterance as a WAV upload and parses the response.
// Services that answer with bare text instead of JSON are accepted as-is.
func (w *WhisperClient) Transcribe(ctx context.Context, utt audio.Utterance) (*Result, error) {
	if utt.Empty() {
		return nil, fmt.Errorf("no audio to transcribe")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio_file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(utt.WAV()); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	requestURL := fmt.Sprintf("%s/asr?encode=true&task=transcribe&language=en&output=json", w.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := responseBody
		if len(detail) > errorBodyLimit {
			detail = detail[:errorBodyLimit]
		}
		w.logger.Errorf("transcription service error (status %d): %s", resp.StatusCode, detail)
		return nil, fmt.Errorf("transcription service returned status %d: %s", resp.StatusCode, detail)
	}
	if len(responseBody) == 0 {
		return nil, fmt.Errorf("transcription service returned empty response")
	}

	var result Result
	if err := json.Unmarshal(responseBody, &result); err != nil {
		// some whisper deployments answer with the bare transcript
		w.logger.Debugf("response is not JSON, treating as plain text: %q", responseBody)
		return &Result{
			Text:        string(responseBody),
			Language:    "en",
			GeneratedAt: time.Now(),
		}, nil
	}

	result.GeneratedAt = time.Now()
	w.logger.Debugf("transcription: %s (language: %s)", result.Text, result.Language)
	return &result, nil
}
