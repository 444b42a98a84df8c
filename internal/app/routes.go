package app

import (
	"net/http"

	"github.com/MrWong99/newscast/internal/observe"
	"github.com/MrWong99/newscast/internal/studio"
)

// routes builds the API mux.
func (a *App) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// ── Articles ─────────────────────────────────────────────────────────
	mux.HandleFunc("GET /api/articles", a.listArticles)
	mux.HandleFunc("POST /api/articles", a.addArticle)
	mux.HandleFunc("DELETE /api/articles/{id}", a.removeArticle)

	// ── Studio ───────────────────────────────────────────────────────────
	mux.HandleFunc("GET /api/studio", a.studioView)
	mux.HandleFunc("PUT /api/studio/options", a.setOptions)
	mux.HandleFunc("POST /api/studio/generate", a.generate)
	mux.HandleFunc("POST /api/studio/restart", a.restart)
	mux.HandleFunc("GET /api/studio/transcript", a.download((*studio.Shell).Transcript))
	mux.HandleFunc("GET /api/studio/audio", a.download((*studio.Shell).AudioWAV))

	// ── Voices ───────────────────────────────────────────────────────────
	mux.HandleFunc("GET /api/voices", a.listVoices)
	mux.HandleFunc("POST /api/voices/{id}/select", a.selectVoice)
	mux.HandleFunc("POST /api/voices/{id}/preview", a.previewVoice)

	// ── Playback ─────────────────────────────────────────────────────────
	mux.HandleFunc("GET /api/playback", a.playbackSnapshot)
	mux.HandleFunc("POST /api/playback/play", a.play)
	mux.HandleFunc("POST /api/playback/pause", a.pause)
	mux.HandleFunc("POST /api/playback/toggle", a.togglePlayback)
	mux.HandleFunc("POST /api/playback/stop", a.stop)
	mux.HandleFunc("PUT /api/playback/settings", a.updateSettings)
	mux.HandleFunc("POST /api/playback/speed", a.nudgeSpeed)
	mux.HandleFunc("PUT /api/playback/volume", a.setVolume)
	mux.HandleFunc("POST /api/playback/mute", a.toggleMute)
	mux.HandleFunc("GET /api/playback/visualization", a.visualization)
	mux.HandleFunc("GET /api/playback/stream", a.stream)

	// ── Voice lab ────────────────────────────────────────────────────────
	mux.HandleFunc("GET /api/voicelab", a.labStatus)
	mux.HandleFunc("POST /api/voicelab/start", a.startRecording)
	mux.HandleFunc("POST /api/voicelab/chunk", a.recordChunk)
	mux.HandleFunc("POST /api/voicelab/stop", a.stopRecording)
	mux.HandleFunc("POST /api/voicelab/upload", a.uploadSample)
	mux.HandleFunc("POST /api/voicelab/reset", a.resetLab)

	// ── Dictation ────────────────────────────────────────────────────────
	mux.HandleFunc("POST /api/dictation", a.dictate)

	// ── Admin ────────────────────────────────────────────────────────────
	mux.HandleFunc("POST /api/admin/login", a.login)
	mux.HandleFunc("POST /api/admin/logout", a.logout)
	mux.Handle("GET /api/admin/voices", a.requireAdmin(a.adminVoices))
	mux.Handle("POST /api/admin/voices/{id}/toggle", a.requireAdmin(a.toggleVoice))
	mux.Handle("GET /api/admin/backend-voices", a.requireAdmin(a.backendVoices))
	mux.Handle("GET /api/admin/stats", a.requireAdmin(a.adminStats))
	mux.Handle("GET /api/admin/listeners", a.requireAdmin(a.adminListeners))
	mux.Handle("DELETE /api/admin/listeners/{id}", a.requireAdmin(a.disconnectListener))
	mux.Handle("POST /api/admin/circuits/reset", a.requireAdmin(a.resetCircuits))

	// ── Ops ──────────────────────────────────────────────────────────────
	a.health.Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler())

	return mux
}

// requireAdmin rejects requests unless the shell is in the admin dashboard.
func (a *App) requireAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.shell.IsAdmin() {
			writeError(w, r, studio.ErrPermission)
			return
		}
		next(w, r)
	})
}
