package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/MrWong99/newscast/internal/observe"
	"github.com/MrWong99/newscast/internal/resilience"
	"github.com/MrWong99/newscast/internal/studio"
	"github.com/MrWong99/newscast/internal/voice"
	"github.com/MrWong99/newscast/pkg/audio/playback"
)

// ─── Articles ────────────────────────────────────────────────────────────────

type articleRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (a *App) listArticles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.shell.Articles())
}

func (a *App) addArticle(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	article, err := a.shell.AddArticle(req.Title, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, article)
}

func (a *App) removeArticle(w http.ResponseWriter, r *http.Request) {
	if err := a.shell.RemoveArticle(r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Studio ──────────────────────────────────────────────────────────────────

// optionsRequest carries a partial update; absent fields keep their value.
type optionsRequest struct {
	Language   *string `json:"language"`
	Model      *string `json:"model"`
	DirectRead *bool   `json:"direct_read"`
}

func (a *App) studioView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.shell.View())
}

func (a *App) setOptions(w http.ResponseWriter, r *http.Request) {
	var req optionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Language != nil {
		if err := a.shell.SetLanguage(*req.Language); err != nil {
			writeError(w, r, badRequest(err))
			return
		}
	}
	if req.Model != nil {
		if err := a.shell.SetModel(*req.Model); err != nil {
			writeError(w, r, badRequest(err))
			return
		}
	}
	if req.DirectRead != nil {
		a.shell.SetDirectRead(*req.DirectRead)
	}
	writeJSON(w, http.StatusOK, a.shell.View())
}

// generate starts the pipeline on the app context so it survives the
// request, and answers 202 right away.
func (a *App) generate(w http.ResponseWriter, r *http.Request) {
	done, err := a.shell.StartGenerate(a.ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log := observe.Logger(r.Context())
	go func() {
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("generation failed", "err", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, a.shell.View())
}

func (a *App) restart(w http.ResponseWriter, _ *http.Request) {
	a.shell.Restart()
	writeJSON(w, http.StatusOK, a.shell.View())
}

// download serves a generated artifact of the shell.
func (a *App) download(get func(*studio.Shell) (studio.Download, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := get(a.shell)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeFile(w, d.Name, d.ContentType, d.Data)
	}
}

// ─── Voices ──────────────────────────────────────────────────────────────────

type selectResponse struct {
	Voice    voice.Preset      `json:"voice"`
	Settings playback.Settings `json:"settings"`
}

func (a *App) listVoices(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" {
		writeJSON(w, http.StatusOK, a.voices.Search(q))
		return
	}
	writeJSON(w, http.StatusOK, a.voices.Visible())
}

func (a *App) selectVoice(w http.ResponseWriter, r *http.Request) {
	preset, err := a.shell.Select(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, selectResponse{Voice: preset, Settings: a.shell.Settings()})
}

func (a *App) previewVoice(w http.ResponseWriter, r *http.Request) {
	p, err := a.shell.Preview(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("X-Default-Speed", strconv.FormatFloat(p.Speed, 'f', -1, 64))
	w.Header().Set("X-Default-Pitch", strconv.Itoa(p.Pitch))
	writeFile(w, "", "audio/wav", p.WAV)
}

// ─── Dictation ───────────────────────────────────────────────────────────────

type dictationResponse struct {
	Text string `json:"text"`
}

func (a *App) dictate(w http.ResponseWriter, r *http.Request) {
	name, data, err := readAudio(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	text, err := a.shell.Dictate(r.Context(), name, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dictationResponse{Text: text})
}

// ─── Admin ───────────────────────────────────────────────────────────────────

type loginRequest struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

type statsResponse struct {
	observe.Stats
	Voices       int `json:"voices"`
	HiddenVoices int `json:"hidden_voices"`
	CustomVoices int `json:"custom_voices"`
	Articles     int `json:"articles"`

	Circuits []resilience.Snapshot `json:"circuits"`
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.shell.OpenAdmin(); err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.shell.Login(req.ID, req.Secret); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.shell.View())
}

func (a *App) logout(w http.ResponseWriter, _ *http.Request) {
	a.shell.Logout()
	writeJSON(w, http.StatusOK, a.shell.View())
}

func (a *App) adminVoices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.voices.List())
}

func (a *App) toggleVoice(w http.ResponseWriter, r *http.Request) {
	preset, err := a.voices.ToggleHidden(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preset)
}

// backendVoice is one voice offered by the configured TTS backend.
type backendVoice struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Provider string            `json:"provider"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// backendVoices lists what the TTS backend can speak with, so an admin can
// check a preset's base voice against it.
func (a *App) backendVoices(w http.ResponseWriter, r *http.Request) {
	if a.providers.TTS == nil {
		writeError(w, r, fmt.Errorf("tts backend: %w", studio.ErrNotFound))
		return
	}
	profiles, err := a.providers.TTS.ListVoices(r.Context())
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: list voices: %w", errBackend, err))
		return
	}
	out := make([]backendVoice, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, backendVoice{ID: p.ID, Name: p.Name, Provider: p.Provider, Metadata: p.Metadata})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) adminStats(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{
		Stats:    a.metrics.Stats(),
		Articles: len(a.shell.Articles()),
		Circuits: make([]resilience.Snapshot, 0, len(a.breakers)),
	}
	for _, b := range a.breakers {
		resp.Circuits = append(resp.Circuits, b.Snapshot())
	}
	for _, p := range a.voices.List() {
		resp.Voices++
		if p.IsHidden {
			resp.HiddenVoices++
		}
		if p.IsCustom {
			resp.CustomVoices++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// resetCircuits closes every provider breaker, e.g. after a key rotation.
func (a *App) resetCircuits(w http.ResponseWriter, _ *http.Request) {
	out := make([]resilience.Snapshot, 0, len(a.breakers))
	for _, b := range a.breakers {
		b.Reset()
		out = append(out, b.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) adminListeners(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.listeners.List())
}

func (a *App) disconnectListener(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !a.listeners.Disconnect(id) {
		writeError(w, r, fmt.Errorf("listener %q: %w", id, studio.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
