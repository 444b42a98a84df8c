package whisper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/newscast/pkg/provider/stt"
)

// ---- Constructor ----

func TestNew_EmptyURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty serverURL")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	p, err := New("http://localhost:8080/", WithModel("small"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.serverURL != "http://localhost:8080" {
		t.Errorf("serverURL = %q", p.serverURL)
	}
	if p.model != "small" {
		t.Errorf("model = %q", p.model)
	}
}

// ---- Transcribe ----

func TestTranscribe_MultipartUpload(t *testing.T) {
	var (
		gotLang, gotModel, gotFormat string
		gotFile                      []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path = %q, want /inference", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotLang = r.FormValue("language")
		gotModel = r.FormValue("model")
		gotFormat = r.FormValue("response_format")
		f, _, err := r.FormFile("file")
		if err == nil {
			gotFile, _ = io.ReadAll(f)
			f.Close()
		}
		_, _ = io.WriteString(w, `{"text":"  Namaste duniya \n"}`)
	}))
	defer srv.Close()

	p, _ := New(srv.URL, WithModel("small"), WithHTTPClient(srv.Client()))
	tr, err := p.Transcribe(context.Background(), stt.Clip{WAV: []byte("RIFFdata"), Language: "hi-IN"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "Namaste duniya" {
		t.Errorf("text = %q", tr.Text)
	}
	if gotLang != "hi" || gotModel != "small" || gotFormat != "json" {
		t.Errorf("fields = lang %q model %q format %q", gotLang, gotModel, gotFormat)
	}
	if string(gotFile) != "RIFFdata" {
		t.Errorf("file = %q", gotFile)
	}
}

func TestTranscribe_EmptyClip(t *testing.T) {
	p, _ := New("http://localhost:1")
	if _, err := p.Transcribe(context.Background(), stt.Clip{}); !errors.Is(err, stt.ErrEmptyClip) {
		t.Errorf("err = %v, want ErrEmptyClip", err)
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	p, _ := New(srv.URL)
	if _, err := p.Transcribe(context.Background(), stt.Clip{WAV: []byte("x")}); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestTranscribe_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()
	p, _ := New(srv.URL)
	if _, err := p.Transcribe(context.Background(), stt.Clip{WAV: []byte("x")}); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
