package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/MrWong99/newscast/pkg/provider/image"
)

func TestFirstImage(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "Here is your cover"},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}},
			}},
		}},
	}
	img, err := firstImage(resp)
	if err != nil {
		t.Fatalf("firstImage: %v", err)
	}
	if img.MIMEType != "image/png" || len(img.Data) != 4 {
		t.Errorf("image = %+v", img)
	}
}

func TestFirstImage_None(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "sorry"}}}}},
	}
	if _, err := firstImage(resp); !errors.Is(err, image.ErrNoImage) {
		t.Errorf("err = %v, want ErrNoImage", err)
	}
	if _, err := firstImage(nil); !errors.Is(err, image.ErrNoImage) {
		t.Errorf("nil err = %v, want ErrNoImage", err)
	}
}

func TestGenerate_HTTP(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		data := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"inlineData":{"mimeType":"image/png","data":"`+data+`"}}]}}]}`)
	}))
	defer srv.Close()

	p, err := New(context.Background(), "test-key", "", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	img, err := p.Generate(context.Background(), "neon podcast cover")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(img.Data) != "png-bytes" {
		t.Errorf("data = %q", img.Data)
	}
	if !strings.Contains(body, "1:1") || !strings.Contains(body, "neon podcast cover") {
		t.Errorf("request body = %s", body)
	}
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	p := &Provider{model: DefaultModel, aspectRatio: "1:1"}
	if _, err := p.Generate(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}
