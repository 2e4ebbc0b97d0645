package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxd/voxd/internal/audio"
	"github.com/voxd/voxd/pkg/logger"
)

func TestWhisperClientParsesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if !strings.HasPrefix(r.URL.Path, "/asr") {
			t.Errorf("path = %s, want /asr", r.URL.Path)
		}
		file, _, err := r.FormFile("audio_file")
		if err != nil {
			t.Errorf("missing audio_file part: %v", err)
		} else {
			file.Close()
		}
		w.Write([]byte(`{"text": "hello there", "language": "en"}`))
	}))
	defer srv.Close()

	client := NewWhisperClient(srv.URL, logger.New(true))
	result, err := client.Transcribe(context.Background(), testUtterance())
	if err != nil {
		t.Fatalf("Transcribe = %v", err)
	}
	if result.Text != "hello there" {
		t.Fatalf("text = %q", result.Text)
	}
	if result.Language != "en" {
		t.Fatalf("language = %q", result.Language)
	}
}

func TestWhisperClientPlainTextFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("just the words"))
	}))
	defer srv.Close()

	client := NewWhisperClient(srv.URL, logger.New(true))
	result, err := client.Transcribe(context.Background(), testUtterance())
	if err != nil {
		t.Fatalf("Transcribe = %v", err)
	}
	if result.Text != "just the words" {
		t.Fatalf("text = %q", result.Text)
	}
}

func TestWhisperClientSurfacesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model not loaded"))
	}))
	defer srv.Close()

	client := NewWhisperClient(srv.URL, logger.New(true))
	_, err := client.Transcribe(context.Background(), testUtterance())
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
	if !strings.Contains(err.Error(), "status 500") || !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("error should carry the upstream status and body: %v", err)
	}
}

func TestWhisperClientTruncatesLongErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer srv.Close()

	client := NewWhisperClient(srv.URL, logger.New(true))
	_, err := client.Transcribe(context.Background(), testUtterance())
	if err == nil {
		t.Fatal("expected an error for a 502 response")
	}
	if len(err.Error()) > errorBodyLimit+100 {
		t.Fatalf("error not truncated: %d chars", len(err.Error()))
	}
}

func TestWhisperClientRejectsEmptyUtterance(t *testing.T) {
	client := NewWhisperClient("http://unused", logger.New(true))
	if _, err := client.Transcribe(context.Background(), audio.Utterance{}); err == nil {
		t.Fatal("empty utterance must not hit the network")
	}
}
