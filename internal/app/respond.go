package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/MrWong99/newscast/internal/observe"
	"github.com/MrWong99/newscast/internal/studio"
	"github.com/MrWong99/newscast/internal/voice"
	"github.com/MrWong99/newscast/internal/voicelab"
	"github.com/MrWong99/newscast/pkg/audio/playback"
)

const (
	// maxJSONBody caps JSON request bodies.
	maxJSONBody = 1 << 20

	// maxAudioBody caps uploaded audio clips and microphone chunks.
	maxAudioBody = 32 << 20
)

var (
	// errBadRequest marks errors caused by a malformed request.
	errBadRequest = errors.New("bad request")

	// errBackend marks a failed call to a remote provider outside of
	// generation.
	errBackend = errors.New("backend unavailable")
)

func badRequest(err error) error {
	return fmt.Errorf("%w: %w", errBadRequest, err)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and writes it as JSON. Generation
// failures are reported with the single generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if errors.Is(err, studio.ErrGeneration) {
		msg = studio.GenerationFailedMessage
	}

	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	observe.Logger(r.Context()).Log(r.Context(), level, "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"err", err,
	)
	writeJSON(w, status, errorBody{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, studio.ErrNoArticles),
		errors.Is(err, studio.ErrEmptyArticle),
		studio.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, studio.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, studio.ErrPermission),
		errors.Is(err, voicelab.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, studio.ErrNotFound),
		errors.Is(err, voice.ErrUnknownVoice):
		return http.StatusNotFound
	case errors.Is(err, studio.ErrBusy),
		errors.Is(err, voicelab.ErrBusy),
		errors.Is(err, voicelab.ErrNotRecording),
		errors.Is(err, playback.ErrInvalidTransition),
		errors.Is(err, playback.ErrNoAsset),
		errors.Is(err, ErrListenersClosed):
		return http.StatusConflict
	case errors.Is(err, studio.ErrGeneration),
		errors.Is(err, errBackend):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(fmt.Errorf("decode body: %w", err))
	}
	return nil
}

// readAudio returns an uploaded clip and its file name. It accepts a
// multipart form with a "file" field or a raw body named by the "filename"
// query parameter or the Content-Disposition header.
func readAudio(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return "", nil, badRequest(fmt.Errorf("read form file: %w", err))
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", nil, badRequest(fmt.Errorf("read form file: %w", err))
		}
		return baseName(hdr.Filename), data, nil
	}

	name := r.URL.Query().Get("filename")
	if name == "" {
		if _, params, err := mime.ParseMediaType(r.Header.Get("Content-Disposition")); err == nil {
			name = params["filename"]
		}
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, badRequest(fmt.Errorf("read body: %w", err))
	}
	if len(data) == 0 {
		return "", nil, badRequest(errors.New("empty body"))
	}
	return baseName(name), data, nil
}

func baseName(name string) string {
	if name == "" {
		return ""
	}
	return filepath.Base(name)
}

// writeFile serves a generated artifact as a download.
func writeFile(w http.ResponseWriter, name, contentType string, data []byte) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(data)))
	if name != "" {
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
