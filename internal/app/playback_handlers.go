package app

import (
	"net/http"

	"github.com/coder/websocket"

	"github.com/MrWong99/newscast/pkg/audio/playback"
)

type speedRequest struct {
	Delta float64 `json:"delta"`
}

type volumeRequest struct {
	Volume float64 `json:"volume"`
}

type visualizationResponse struct {
	Bins []int `json:"bins"`
}

func (a *App) playbackSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.player.Snapshot())
}

// transport runs one engine transition and answers with the new snapshot.
func (a *App) transport(w http.ResponseWriter, r *http.Request, op func() error) {
	if err := op(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.player.Snapshot())
}

func (a *App) play(w http.ResponseWriter, r *http.Request) {
	a.transport(w, r, a.player.Play)
}

func (a *App) pause(w http.ResponseWriter, r *http.Request) {
	a.transport(w, r, a.player.Pause)
}

func (a *App) togglePlayback(w http.ResponseWriter, r *http.Request) {
	a.transport(w, r, a.player.Toggle)
}

func (a *App) stop(w http.ResponseWriter, r *http.Request) {
	a.transport(w, r, func() error { a.player.Stop(); return nil })
}

// updateSettings goes through the shell so the selected settings survive a
// reload of the engine with the next broadcast.
func (a *App) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req playback.Settings
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.shell.UpdateSettings(req))
}

func (a *App) nudgeSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.shell.NudgeSpeed(req.Delta))
}

func (a *App) setVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a.player.SetVolume(req.Volume)
	writeJSON(w, http.StatusOK, a.player.Snapshot())
}

func (a *App) toggleMute(w http.ResponseWriter, _ *http.Request) {
	a.player.ToggleMute()
	writeJSON(w, http.StatusOK, a.player.Snapshot())
}

func (a *App) visualization(w http.ResponseWriter, r *http.Request) {
	bins := a.player.SampleVisualization()
	a.metrics.RecordVisualizationSample(r.Context())
	resp := visualizationResponse{Bins: make([]int, len(bins))}
	for i, b := range bins {
		resp.Bins[i] = int(b)
	}
	writeJSON(w, http.StatusOK, resp)
}

// stream upgrades to a websocket and forwards rendered audio until the
// client leaves.
func (a *App) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		// Accept has already written the handshake error.
		return
	}
	defer conn.CloseNow()

	if err := a.listeners.Serve(r.Context(), conn, r.RemoteAddr); err != nil {
		conn.Close(websocket.StatusTryAgainLater, err.Error())
		a.log.Debug("stream ended", "remote_addr", r.RemoteAddr, "err", err)
	}
}
